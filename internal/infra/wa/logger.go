package wa

import (
	walog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLogger lets whatsmeow write through the process logger.
type zapLogger struct {
	log *zap.SugaredLogger
}

// NewLogger adapts a zap logger to whatsmeow's logging interface.
func NewLogger(log *zap.Logger, module string) walog.Logger {
	return &zapLogger{log: log.Named(module).Sugar()}
}

func (l *zapLogger) Warnf(msg string, args ...interface{})  { l.log.Warnf(msg, args...) }
func (l *zapLogger) Errorf(msg string, args ...interface{}) { l.log.Errorf(msg, args...) }
func (l *zapLogger) Infof(msg string, args ...interface{})  { l.log.Infof(msg, args...) }
func (l *zapLogger) Debugf(msg string, args ...interface{}) { l.log.Debugf(msg, args...) }

func (l *zapLogger) Sub(module string) walog.Logger {
	return &zapLogger{log: l.log.Named(module)}
}

