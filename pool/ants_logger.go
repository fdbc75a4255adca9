package pool

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// antsLogger adapts a zap logger to the ants.Logger printf interface.
// ants only logs abnormal worker exits, so everything lands at error
// level.
type antsLogger struct {
	logger *zap.SugaredLogger
}

var _ ants.Logger = (*antsLogger)(nil)

func (l *antsLogger) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Errorf(format, args...)
}

func newAntsLogger(logger *zap.Logger) *antsLogger {
	return &antsLogger{
		logger: logger.Named("ants").Sugar(),
	}
}
