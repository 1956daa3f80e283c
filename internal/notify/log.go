package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"attorney-splits/internal/splits/application"
)

// LogNotifier writes report notices to the service log.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyReport(_ context.Context, notice application.ReportNotice) error {
	n.logger.WithFields(logrus.Fields{
		"run_id":   notice.RunID,
		"firm_id":  notice.FirmID,
		"source":   notice.Source,
		"matters":  notice.Matters,
		"dropped":  notice.Dropped,
		"warnings": len(notice.Warnings),
	}).Info("report notice")
	return nil
}
