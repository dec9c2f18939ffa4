package runtime

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/engine"
	"github.com/wippyai/olive-bridge/errors"
)

// Runtime is the WebAssembly analysis backend. It implements olivebridge.Loader.
type Runtime struct {
	engine *engine.WazeroEngine
	logger *zap.Logger
}

// New creates a runtime with default engine configuration
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a runtime with custom engine configuration
func NewWithConfig(ctx context.Context, cfg *engine.Config) (*Runtime, error) {
	eng, err := engine.NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Load("", "create engine", err)
	}

	return &Runtime{
		engine: eng,
		logger: engine.Logger(),
	}, nil
}

// WithLogger sets the logger used for load and call diagnostics
func (r *Runtime) WithLogger(l *zap.Logger) *Runtime {
	if l != nil {
		r.logger = l
	}
	return r
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load reads and compiles the component at path and resolves typeName in it.
func (r *Runtime) Load(ctx context.Context, path, typeName string) (olivebridge.Type, error) {
	mod, err := r.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	typ, err := mod.Type(typeName)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return typ, nil
}

// LoadFile reads and compiles the component at path
func (r *Runtime) LoadFile(ctx context.Context, path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ComponentNotFound(path, err)
		}
		return nil, errors.Load(path, "read component", err)
	}
	return r.LoadBytes(ctx, path, wasm)
}

// LoadBytes compiles a component binary. name is used in diagnostics.
func (r *Runtime) LoadBytes(ctx context.Context, name string, wasm []byte) (*Module, error) {
	wazeroModule, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load(name, "compile component", err)
	}

	r.logger.Debug("component compiled",
		zap.String("component", name),
		zap.Int("size", len(wasm)),
		zap.Int("exports", len(wazeroModule.ExportNames())))

	return &Module{
		runtime:      r,
		wazeroModule: wazeroModule,
		name:         name,
	}, nil
}

var _ olivebridge.Loader = (*Runtime)(nil)
