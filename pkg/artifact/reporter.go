// Package artifact delivers structured result records to whatever sink the
// deployment points at.
package artifact

import (
	"context"

	"go.uber.org/zap"
)

// Reporter consumes a tabular result record under a stable artifact key.
// The header and row are ordered and the same length; the reporter is a pure
// sink, nothing flows back to the caller beyond the error.
type Reporter interface {
	Table(ctx context.Context, key string, header []string, row []string) error
}

// LogReporter writes artifact tables to the structured log.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Table(_ context.Context, key string, header []string, row []string) error {
	fields := make([]zap.Field, 0, len(header)+1)
	fields = append(fields, zap.String("artifact_key", key))
	for i := range header {
		if i < len(row) {
			fields = append(fields, zap.String(header[i], row[i]))
		}
	}
	r.log.Info("job artifact", fields...)
	return nil
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Table(context.Context, string, []string, []string) error { return nil }
