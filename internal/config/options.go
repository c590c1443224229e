package config

import (
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/hooks"
)

// EngineOptions converts c to engine options.
func (c Config) EngineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithFlushDelay(c.FlushDebounce),
		engine.WithInteractionThreshold(c.SlowInteraction),
	}
	if c.Immediate() {
		opts = append(opts, engine.WithImmediate())
	}
	return opts
}

// FeedOptions converts c to signal feed options.
func (c Config) FeedOptions() []engine.FeedOption {
	return []engine.FeedOption{engine.WithLongTaskThreshold(c.LongTask)}
}

// HookOptions converts c to instrumentor options.
func (c Config) HookOptions() []hooks.Option {
	return []hooks.Option{hooks.WithSlowThreshold(c.SlowEffect)}
}
