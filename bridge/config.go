package bridge

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/errors"
	"github.com/wippyai/olive-bridge/native"
)

// Backend selects how the analysis component is loaded
type Backend string

const (
	BackendWasm   Backend = "wasm"
	BackendNative Backend = "native"
)

// ParseBackend normalizes a user-supplied backend name. The result is
// checked by Config.Validate.
func ParseBackend(s string) Backend {
	return Backend(strings.ToLower(strings.TrimSpace(s)))
}

// ComponentBaseName is the file name stem of the analysis component
const ComponentBaseName = "OliveMatrixLibCore"

// Environment overrides read by ConfigFromEnv
const (
	EnvComponent        = "OLIVEBRIDGE_COMPONENT"
	EnvBackend          = "OLIVEBRIDGE_BACKEND"
	EnvType             = "OLIVEBRIDGE_TYPE"
	EnvMethod           = "OLIVEBRIDGE_METHOD"
	EnvMemoryLimitPages = "OLIVEBRIDGE_MEMORY_LIMIT_PAGES"
	EnvLogLevel         = "OLIVEBRIDGE_LOG_LEVEL"
)

// Config controls where the component is found and what is resolved in it
type Config struct {
	// Dir is the directory holding the shim; the component is looked up here.
	Dir string

	// ComponentPath overrides Dir + the backend's file name.
	ComponentPath string

	Backend    Backend
	TypeName   string
	MethodName string

	// MemoryLimitPages caps guest memory for the wasm backend. 0 means no cap.
	MemoryLimitPages uint32

	// LogLevel is a zap level name, or "off".
	LogLevel string
}

// DefaultConfig returns the configuration for a shim living in dir
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		Backend:    BackendWasm,
		TypeName:   olivebridge.DefaultTypeName,
		MethodName: olivebridge.DefaultMethodName,
		LogLevel:   "info",
	}
}

// ConfigFromEnv returns DefaultConfig(dir) with OLIVEBRIDGE_* overrides applied.
func ConfigFromEnv(dir string) (Config, error) {
	return configFromLookup(dir, os.LookupEnv)
}

func configFromLookup(dir string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig(dir)

	if v, ok := lookup(EnvComponent); ok && v != "" {
		cfg.ComponentPath = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		cfg.Backend = ParseBackend(v)
	}
	if v, ok := lookup(EnvType); ok && v != "" {
		cfg.TypeName = v
	}
	if v, ok := lookup(EnvMethod); ok && v != "" {
		cfg.MethodName = v
	}
	if v, ok := lookup(EnvMemoryLimitPages); ok && v != "" {
		pages, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Cause(err).
				Detail("%s=%q is not a page count", EnvMemoryLimitPages, v).
				Build()
		}
		cfg.MemoryLimitPages = uint32(pages)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values no backend can use
func (c Config) Validate() error {
	switch c.Backend {
	case BackendWasm, BackendNative:
	default:
		return errors.InvalidInput(errors.PhaseConfig, "unknown backend "+strconv.Quote(string(c.Backend)))
	}
	if c.TypeName == "" {
		return errors.InvalidInput(errors.PhaseConfig, "type name is empty")
	}
	if c.MethodName == "" {
		return errors.InvalidInput(errors.PhaseConfig, "method name is empty")
	}
	return nil
}

// ComponentFile returns the path the component is loaded from
func (c Config) ComponentFile() string {
	if c.ComponentPath != "" {
		return c.ComponentPath
	}
	return filepath.Join(c.Dir, ComponentFileName(c.Backend))
}

// ComponentFileName returns the component's file name for a backend
func ComponentFileName(b Backend) string {
	if b == BackendNative {
		return native.LibraryName(ComponentBaseName)
	}
	return ComponentBaseName + ".wasm"
}
