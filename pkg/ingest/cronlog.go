package ingest

import (
	"go.uber.org/zap"
)

// zapCronLogger adapts zap.Logger to cron.Logger so the scheduler's own
// recovery/delay-wrapper logging lands in the same structured log stream
// as the rest of the engine.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
