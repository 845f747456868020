package progress

import (
	"go.uber.org/zap"

	"github.com/kozaktomas/face-finder/internal/scan"
)

// Log writes scan events to a zap logger. Per-photo events are logged at debug level.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Report(e scan.Event) {
	log := l.log.With(zap.String("owner_id", e.OwnerID))
	switch e.Type {
	case scan.EventInitializing:
		log.Info("scan initializing", zap.Int("total", e.Total), zap.Int("batches", e.Batches))
	case scan.EventBatchStarting:
		log.Info("batch starting", zap.Int("batch", e.Batch), zap.Int("batches", e.Batches), zap.Int("size", e.BatchSize))
	case scan.EventProcessing:
		log.Debug("photo processed", zap.String("photo_id", e.PhotoID), zap.Int("processed", e.Processed), zap.Int("total", e.Total))
	case scan.EventMatchFound:
		fields := []zap.Field{zap.String("photo_id", e.PhotoID)}
		if e.Match != nil {
			fields = append(fields, zap.Float64("confidence", e.Match.Confidence), zap.String("match_type", string(e.Match.MatchType)))
		}
		log.Debug("match found", fields...)
	case scan.EventError:
		log.Warn("photo comparison failed", zap.String("photo_id", e.PhotoID), zap.String("error", e.Error))
	case scan.EventCompleted, scan.EventCancelled, scan.EventFailed:
		fields := []zap.Field{zap.String("event", string(e.Type))}
		if e.Summary != nil {
			fields = append(fields,
				zap.Int("matches", e.Summary.Matches),
				zap.Int("errors", e.Summary.Errors),
				zap.Int("processed", e.Summary.Processed),
				zap.Bool("from_cache", e.Summary.FromCache),
			)
		}
		if e.Error != "" {
			fields = append(fields, zap.String("error", e.Error))
		}
		log.Info("scan finished", fields...)
	}
}

// Multi reports every event to each non-nil reporter in order.
type Multi []scan.Reporter

func (m Multi) Report(e scan.Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}
