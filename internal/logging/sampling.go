package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below error level; errors and above
// always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	errorsOnly := &rangeCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	belowError := &rangeCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	return zapcore.NewTee(
		errorsOnly,
		zapcore.NewSamplerWithOptions(belowError, cfg.Tick, cfg.Initial, cfg.Thereafter),
	)
}

// rangeCore passes entries whose level lies in [min, max].
type rangeCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *rangeCore) Enabled(l zapcore.Level) bool {
	return l >= c.min && l <= c.max && c.Core.Enabled(l)
}

func (c *rangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *rangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &rangeCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
