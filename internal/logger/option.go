package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel overrides the level gate of an inner core.
type coreWithLevel struct {
	zapcore.Core

	// level replaces the inner core's minimum level.
	level zapcore.Level
}

// Enabled checks the override level instead of the wrapped core's.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check attaches this core to the checked entry when the entry level passes
// the override, leaving the entry untouched otherwise.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With adds fields to the wrapped core and keeps the override level.
//
//nolint:ireturn,nolintlint // zapcore.Core is what zap expects here.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel derives a logger whose own level differs from the shared core's.
// Useful for quieting a single noisy subsystem.
//
//nolint:ireturn,nolintlint // zap.Option is what zap expects here.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &coreWithLevel{core, lvl}
		})
}
