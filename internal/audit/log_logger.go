package audit

import (
	"context"
	"errors"
	"log"
	"time"
)

// LogLogger writes audit entries to a standard logger. It is used when no
// database is configured.
type LogLogger struct {
	logger *log.Logger
}

// NewLogLogger constructs a logger-backed audit sink.
func NewLogLogger(logger *log.Logger) *LogLogger {
	if logger == nil {
		return nil
	}
	return &LogLogger{logger: logger}
}

// Log writes an audit entry as a single log line.
func (l *LogLogger) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	if l == nil || l.logger == nil {
		return errors.New("audit log: nil logger")
	}
	entry = prepare(entry, time.Now())
	dataset := "template"
	if entry.DatasetKey != nil {
		dataset = formatInt(*entry.DatasetKey)
	}
	l.logger.Printf("audit: id=%s action=%s resource=%s/%s dataset=%s actor=%q role=%s ip=%s digest=%s",
		entry.ID, entry.Action, entry.ResourceType, entry.ResourceID, dataset, entry.Actor, entry.Role, entry.IP, entry.PayloadDigest)
	return nil
}
