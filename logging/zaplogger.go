package logging

import "go.uber.org/zap"

// NewDevLogger returns a zap logger that prints dev friendly output.
func NewDevLogger() Logger {
	l, _ := zap.NewDevelopment(zap.AddCallerSkip(2))
	return &zapLogger{z: l.Sugar()}
}

// NewProdLogger returns a zap logger that outputs JSON.
func NewProdLogger() Logger {
	l, _ := zap.NewProduction(zap.AddCallerSkip(2))
	return &zapLogger{z: l.Sugar()}
}

// zapLogger adapts a zap sugared logger to the Logger interface.
type zapLogger struct {
	z *zap.SugaredLogger
}

func (z *zapLogger) Debug(args ...interface{})                    { z.z.Debug(args...) }
func (z *zapLogger) Debugw(msg string, kv ...interface{})         { z.z.Debugw(msg, kv...) }
func (z *zapLogger) Debugf(msg string, args ...interface{})       { z.z.Debugf(msg, args...) }
func (z *zapLogger) Info(args ...interface{})                     { z.z.Info(args...) }
func (z *zapLogger) Infow(msg string, kv ...interface{})          { z.z.Infow(msg, kv...) }
func (z *zapLogger) Infof(msg string, args ...interface{})        { z.z.Infof(msg, args...) }
func (z *zapLogger) Warn(args ...interface{})                     { z.z.Warn(args...) }
func (z *zapLogger) Warnw(msg string, kv ...interface{})          { z.z.Warnw(msg, kv...) }
func (z *zapLogger) Warnf(msg string, args ...interface{})        { z.z.Warnf(msg, args...) }
func (z *zapLogger) Error(args ...interface{})                    { z.z.Error(args...) }
func (z *zapLogger) Errorw(msg string, kv ...interface{})         { z.z.Errorw(msg, kv...) }
func (z *zapLogger) Errorf(msg string, args ...interface{})       { z.z.Errorf(msg, args...) }
func (z *zapLogger) Fatal(args ...interface{})                    { z.z.Fatal(args...) }
func (z *zapLogger) Fatalw(msg string, kv ...interface{})         { z.z.Fatalw(msg, kv...) }
func (z *zapLogger) Fatalf(msg string, args ...interface{})       { z.z.Fatalf(msg, args...) }

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{z: z.z.Named(name)}
}

func (z *zapLogger) With(field string, value interface{}) Logger {
	return &zapLogger{z: z.z.With(field, value)}
}

// noop discards all log output. Returned by FromContext when no logger is
// attached, such as in unit tests.
type noop struct{}

func (noop) Debug(...interface{})                  {}
func (noop) Debugw(string, ...interface{})         {}
func (noop) Debugf(string, ...interface{})         {}
func (noop) Info(...interface{})                   {}
func (noop) Infow(string, ...interface{})          {}
func (noop) Infof(string, ...interface{})          {}
func (noop) Warn(...interface{})                   {}
func (noop) Warnw(string, ...interface{})          {}
func (noop) Warnf(string, ...interface{})          {}
func (noop) Error(...interface{})                  {}
func (noop) Errorw(string, ...interface{})         {}
func (noop) Errorf(string, ...interface{})         {}
func (noop) Fatal(...interface{})                  {}
func (noop) Fatalw(string, ...interface{})         {}
func (noop) Fatalf(string, ...interface{})         {}
func (noop) Named(string) Logger                   { return noop{} }
func (noop) With(string, interface{}) Logger       { return noop{} }
