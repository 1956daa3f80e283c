package notify

import (
	"context"
	"errors"

	"attorney-splits/internal/splits/application"
)

// MultiNotifier dispatches report notices to multiple notifiers.
type MultiNotifier struct {
	notifiers []application.ReportNotifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil notifiers are skipped.
func NewMultiNotifier(notifiers ...application.ReportNotifier) *MultiNotifier {
	out := make([]application.ReportNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return &MultiNotifier{notifiers: out}
}

// NotifyReport forwards the notice to every notifier, even after one fails.
func (m *MultiNotifier) NotifyReport(ctx context.Context, notice application.ReportNotice) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.NotifyReport(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
