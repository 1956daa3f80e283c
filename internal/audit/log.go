package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogLogger writes audit entries to a logrus logger when no database is configured.
type LogLogger struct {
	logger *logrus.Logger
}

// NewLogLogger constructs a LogLogger.
func NewLogLogger(logger *logrus.Logger) *LogLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogLogger{logger: logger}
}

// Log writes the entry as a structured log line.
func (l *LogLogger) Log(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	l.logger.WithFields(logrus.Fields{
		"audit_id":      entry.ID,
		"firm_id":       entry.FirmID,
		"actor":         entry.Actor,
		"role":          entry.Role,
		"action":        entry.Action,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"metadata":      string(entry.Metadata),
		"ip":            entry.IP,
	}).Info("audit")
	return nil
}
