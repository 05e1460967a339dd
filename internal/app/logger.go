package app

import "go.uber.org/zap"

// zapLogger adapts a *zap.SugaredLogger to the narrow Info/Warn/Error
// shape internal/gateway and internal/room each declare locally, so
// neither package needs to import zap itself.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func newZapLogger(l *zap.Logger) *zapLogger {
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Info(msg string, fields ...interface{})  { z.sugar.Infow(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...interface{})  { z.sugar.Warnw(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...interface{}) { z.sugar.Errorw(msg, fields...) }
