package journal

import (
	"context"

	"go.uber.org/zap"
)

// LogStorage — хранилище по умолчанию, когда database.url не задан: решения пишутся в лог.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("decisions")}
}

func (s *LogStorage) WriteBatch(_ context.Context, decisions []Decision) error {
	for _, d := range decisions {
		fields := []zap.Field{
			zap.String("id", d.ID),
			zap.String("alert_id", d.AlertID),
			zap.String("app", d.AppName),
			zap.String("ip", d.IP),
			zap.String("action", string(d.Action)),
			zap.String("severity", d.Severity),
			zap.Time("decided_at", d.DecidedAt),
		}
		if d.ReportID != nil {
			fields = append(fields, zap.Int64("report_id", *d.ReportID))
		}
		if d.Error != "" {
			fields = append(fields, zap.String("error", d.Error))
		}
		s.logger.Info("alert decision", fields...)
	}
	return nil
}
