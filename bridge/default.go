package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/olive-bridge/engine"
)

var (
	defaultShim *Shim
	defaultOnce sync.Once
)

// Default returns the process-wide shim. locate is called once, on first
// use, to find the directory the shim was loaded from. Configuration
// errors do not prevent the shim from existing; they make every call fail
// instead. An unknown log level only falls back to "info".
func Default(locate func() string) *Shim {
	defaultOnce.Do(func() {
		var dir string
		if locate != nil {
			dir = locate()
		}
		defaultShim = newFromEnv(dir)
	})
	return defaultShim
}

func newFromEnv(dir string) *Shim {
	cfg, cfgErr := ConfigFromEnv(dir)

	logger, logErr := NewLogger(cfg.LogLevel)
	if logErr != nil {
		cfg.LogLevel = "info"
		logger, _ = NewLogger(cfg.LogLevel)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if logErr != nil {
		logger.Warn("unknown log level, using info",
			zap.String("env", EnvLogLevel),
			zap.Error(logErr))
	}
	engine.SetLogger(logger.Named("guest"))

	logger.Debug("shim initialized",
		zap.String("dir", dir),
		zap.String("component", cfg.ComponentFile()),
		zap.String("backend", string(cfg.Backend)))

	opts := []Option{WithLogger(logger)}
	if cfgErr != nil {
		logger.Error("invalid shim configuration", zap.Error(cfgErr))
		opts = append(opts, WithConfigError(cfgErr))
	}
	return New(cfg, opts...)
}
