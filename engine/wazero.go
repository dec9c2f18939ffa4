package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
)

// WazeroEngine compiles and instantiates analysis components using wazero
type WazeroEngine struct {
	runtime      wazero.Runtime
	cfg          Config
	hostInitErr  error
	hostInitMu   sync.Mutex
	hostInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// Mounts maps host directories to guest paths for WASI filesystem access.
	// nil means DefaultMounts(); an empty non-nil map mounts nothing.
	Mounts map[string]string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// DisableWASI skips the wasi_snapshot_preview1 host module. Components
	// importing WASI then fail to instantiate.
	DisableWASI bool
}

// DefaultMounts mounts the host root at the guest root so absolute raster
// paths resolve unchanged inside the component.
func DefaultMounts() map[string]string {
	return map[string]string{"/": "/"}
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var c Config
	if cfg != nil {
		c = *cfg
		if c.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
		}
	}
	if c.Mounts == nil {
		c.Mounts = DefaultMounts()
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, cfg: c}, nil
}

// LoadModule compiles a core WebAssembly module.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}

	return &WazeroModule{
		engine:   e,
		runtime:  e.runtime,
		compiled: compiled,
		exports:  compiled.ExportedFunctions(),
	}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// InitHostModules instantiates the WASI and olive host modules once for this
// engine's runtime. Safe for concurrent calls.
func (e *WazeroEngine) InitHostModules(ctx context.Context) error {
	if e.hostInitDone.Load() {
		return e.hostInitErr
	}

	e.hostInitMu.Lock()
	defer e.hostInitMu.Unlock()

	if e.hostInitDone.Load() {
		return e.hostInitErr
	}

	e.hostInitErr = instantiateHostModules(ctx, e.runtime, e.cfg)
	e.hostInitDone.Store(true)
	return e.hostInitErr
}

// WazeroModule is a compiled component module
type WazeroModule struct {
	engine   *WazeroEngine
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	exports  map[string]api.FunctionDefinition
}

// ExportNames returns the names of all exported functions, sorted
func (m *WazeroModule) ExportNames() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportedFunction returns the definition of an exported function without
// instantiating the module.
func (m *WazeroModule) ExportedFunction(name string) (api.FunctionDefinition, bool) {
	def, ok := m.exports[name]
	return def, ok
}

// Instantiate creates a fresh anonymous instance. Instances of the same
// module never share memory.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	if err := m.engine.InitHostModules(ctx); err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions("_initialize").
		WithFSConfig(fsConfig(m.engine.cfg.Mounts))

	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}

	wazInst := &WazeroInstance{
		module:   m,
		instance: instance,
	}

	if mem := instance.Memory(); mem != nil {
		wazInst.memory = &WazeroMemory{mem: mem}
	}

	// Exports are keyed by export name; FunctionDefinition.Name() is the
	// name-section name and may differ or be empty.
	wazInst.alloc = &wazeroAllocator{}
	defs := instance.ExportedFunctionDefinitions()
	for _, name := range allocatorExports {
		if def, ok := defs[name]; ok {
			wazInst.alloc.allocFn = instance.ExportedFunction(name)
			wazInst.alloc.isSimpleAlloc = len(def.ParamTypes()) < 4
			break
		}
	}

	return wazInst, nil
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func fsConfig(mounts map[string]string) wazero.FSConfig {
	fs := wazero.NewFSConfig()
	for host, guest := range mounts {
		fs = fs.WithDirMount(host, guest)
	}
	return fs
}

// WazeroInstance is a running component instance.
// It is NOT safe for concurrent use from multiple goroutines.
type WazeroInstance struct {
	module   *WazeroModule
	instance api.Module
	memory   *WazeroMemory
	alloc    *wazeroAllocator
}

// GetExportedFunction returns an exported function by name, or nil.
func (i *WazeroInstance) GetExportedFunction(name string) api.Function {
	if i.instance == nil {
		return nil
	}
	return i.instance.ExportedFunction(name)
}

// Call invokes an exported function with raw core values.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.GetExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}
	return fn.Call(ctx, params...)
}

// Memory returns the guest memory, or nil if the module exports none.
func (i *WazeroInstance) Memory() olivebridge.Memory {
	if i.memory == nil {
		return nil
	}
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Allocator returns the guest allocator bound to ctx.
func (i *WazeroInstance) Allocator(ctx context.Context) olivebridge.Allocator {
	i.alloc.ctx = ctx
	return i.alloc
}

// WriteString copies s into freshly allocated guest memory and returns its
// pointer and length. An empty string is passed as (0, 0).
func (i *WazeroInstance) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	if i.memory == nil {
		return 0, 0, fmt.Errorf("module exports no memory")
	}
	ptr, err := i.Allocator(ctx).Alloc(uint32(len(s)), 1)
	if err != nil {
		return 0, 0, err
	}
	if err := i.memory.Write(ptr, []byte(s)); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	err := i.instance.Close(ctx)
	i.instance = nil
	i.memory = nil
	i.alloc = nil
	return err
}

// wazeroAllocator implements olivebridge.Allocator using guest exports
type wazeroAllocator struct {
	allocFn       api.Function
	ctx           context.Context
	isSimpleAlloc bool
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, fmt.Errorf("no allocator available")
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		res []uint64
		err error
	)
	if a.isSimpleAlloc {
		res, err = a.allocFn.Call(ctx, uint64(size))
	} else {
		res, err = a.allocFn.Call(ctx, 0, 0, uint64(align), uint64(size))
	}
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("allocator returned no pointer")
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("allocator returned null")
	}
	Logger().Debug("guest alloc", zap.Uint32("ptr", ptr), zap.Uint32("size", size))
	return ptr, nil
}

// WazeroMemory wraps wazero memory to implement olivebridge.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) ReadF64(offset uint32) (float64, error) {
	val, ok := m.mem.ReadFloat64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	ok := m.mem.WriteUint32Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	ok := m.mem.WriteUint64Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that WazeroMemory implements olivebridge.Memory and MemorySizer
var _ olivebridge.Memory = (*WazeroMemory)(nil)
var _ olivebridge.MemorySizer = (*WazeroMemory)(nil)

// Compile-time check that wazeroAllocator implements olivebridge.Allocator
var _ olivebridge.Allocator = (*wazeroAllocator)(nil)
