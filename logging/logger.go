// Package logging defines the minimal printf-style logging contract used
// across the gateway, together with a zap-backed default.  Components accept
// a Logger and fall back to a no-op so tests stay quiet.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger is a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New returns the default production logger scoped to a component.
func New(component string) Logger {
	base := zap.Must(zap.NewProduction())
	return FromZap(base, component)
}

// FromZap adapts a zap logger to the Logger interface, optionally scoping it
// to a component.
func FromZap(base *zap.Logger, component string) Logger {
	if base == nil {
		return Nop()
	}
	if component != "" {
		base = base.With(zap.String("component", component))
	}
	return &zapLogger{sugar: base.Sugar()}
}

func (l *zapLogger) Debug(format string, args ...any) {
	l.sugar.Debug(fmt.Sprintf(format, args...))
}

func (l *zapLogger) Info(format string, args ...any) {
	l.sugar.Info(fmt.Sprintf(format, args...))
}

func (l *zapLogger) Warn(format string, args ...any) {
	l.sugar.Warn(fmt.Sprintf(format, args...))
}

func (l *zapLogger) Error(format string, args ...any) {
	l.sugar.Error(fmt.Sprintf(format, args...))
}

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if logger == nil {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
