package bridge

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/engine"
	"github.com/wippyai/olive-bridge/errors"
	"github.com/wippyai/olive-bridge/ffi"
	"github.com/wippyai/olive-bridge/native"
	"github.com/wippyai/olive-bridge/runtime"
)

// FailureStatus is returned to the native caller on any failure
const FailureStatus int32 = -1

const loadKey = "component"

// handle is the cached, resolved component type
type handle struct {
	typ  olivebridge.Type
	path string
}

// LoaderFactory creates the backend loader on first use
type LoaderFactory func(ctx context.Context, cfg Config, logger *zap.Logger) (olivebridge.Loader, error)

// Shim is the native boundary. It is safe for concurrent use.
type Shim struct {
	cfg    Config
	cfgErr error
	logger *zap.Logger

	newLoader LoaderFactory

	mu     sync.Mutex // guards loader and publishing cached
	loader olivebridge.Loader

	cached atomic.Pointer[handle]
	group  singleflight.Group
}

// Option configures a Shim
type Option func(*Shim)

// WithLogger sets the diagnostics logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Shim) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoader uses l instead of the backend selected by Config.Backend
func WithLoader(l olivebridge.Loader) Option {
	return func(s *Shim) {
		s.newLoader = func(context.Context, Config, *zap.Logger) (olivebridge.Loader, error) {
			return l, nil
		}
	}
}

// WithLoaderFactory overrides how the backend loader is created
func WithLoaderFactory(f LoaderFactory) Option {
	return func(s *Shim) {
		if f != nil {
			s.newLoader = f
		}
	}
}

// WithConfigError makes every call fail with err. Used when the
// configuration could not be read but a shim must still exist.
func WithConfigError(err error) Option {
	return func(s *Shim) {
		s.cfgErr = err
	}
}

// New creates a shim. Nothing is loaded until the first call.
func New(cfg Config, opts ...Option) *Shim {
	s := &Shim{
		cfg:       cfg,
		logger:    zap.NewNop(),
		newLoader: BackendLoader,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfgErr == nil {
		s.cfgErr = cfg.Validate()
	}
	return s
}

// Config returns the shim configuration
func (s *Shim) Config() Config {
	return s.cfg
}

// BackendLoader creates the loader named by cfg.Backend
func BackendLoader(ctx context.Context, cfg Config, logger *zap.Logger) (olivebridge.Loader, error) {
	switch cfg.Backend {
	case BackendNative:
		return native.NewLoader(logger), nil
	case BackendWasm, "":
		rt, err := runtime.NewWithConfig(ctx, &engine.Config{MemoryLimitPages: cfg.MemoryLimitPages})
		if err != nil {
			return nil, err
		}
		return rt.WithLogger(logger), nil
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown backend "+string(cfg.Backend))
	}
}

// Loaded reports whether the component has been loaded and cached
func (s *Shim) Loaded() bool {
	return s.cached.Load() != nil
}

// ensureLoaded returns the cached type, loading it on first use.
// Concurrent first callers share one load attempt; a failed attempt is not
// cached, so the next call starts over.
func (s *Shim) ensureLoaded(ctx context.Context) (*handle, error) {
	if h := s.cached.Load(); h != nil {
		return h, nil
	}

	v, err, shared := s.group.Do(loadKey, func() (any, error) {
		if h := s.cached.Load(); h != nil {
			return h, nil
		}
		h, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight component load")
	}
	return v.(*handle), nil
}

func (s *Shim) load(ctx context.Context) (*handle, error) {
	if s.cfgErr != nil {
		return nil, s.cfgErr
	}

	path := s.cfg.ComponentFile()
	s.logger.Info("loading analysis component",
		zap.String("path", path),
		zap.String("backend", string(s.cfg.Backend)),
		zap.String("type", s.cfg.TypeName))

	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ComponentNotFound(path, err)
		}
		return nil, errors.Load(path, "stat component", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loader == nil {
		loader, err := s.newLoader(ctx, s.cfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.loader = loader
	}

	typ, err := s.loader.Load(ctx, path, s.cfg.TypeName)
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, errors.TypeNotFound(path, s.cfg.TypeName)
	}

	s.logger.Info("analysis component loaded",
		zap.String("path", path),
		zap.String("type", typ.Name()))
	h := &handle{typ: typ, path: path}
	s.cached.Store(h)
	return h, nil
}

// Analyze runs one analysis and returns its outcome. A method without an
// integer result yields Status 0 with HasStatus false.
func (s *Shim) Analyze(ctx context.Context, req olivebridge.Request) (olivebridge.Outcome, error) {
	h, err := s.ensureLoaded(ctx)
	if err != nil {
		return olivebridge.Outcome{}, err
	}

	inst, err := h.typ.New(ctx)
	if err != nil {
		return olivebridge.Outcome{}, err
	}
	if inst == nil {
		return olivebridge.Outcome{}, errors.NoInstance(h.typ.Name())
	}
	defer func() {
		if cerr := inst.Close(ctx); cerr != nil {
			s.logger.Warn("closing analysis instance", zap.Error(cerr))
		}
	}()

	m, err := h.typ.Method(s.cfg.MethodName)
	if err != nil {
		return olivebridge.Outcome{}, err
	}
	if m == nil {
		return olivebridge.Outcome{}, errors.MethodNotFound(h.typ.Name(), s.cfg.MethodName)
	}

	s.logger.Debug("invoking analysis", zap.String("method", m.Name()))
	out, err := m.Invoke(ctx, inst, req)
	if err != nil {
		return olivebridge.Outcome{}, err
	}
	if !out.HasStatus {
		out.Status = 0
	}
	return out, nil
}

// Raw holds the arguments exactly as the native caller passed them
type Raw struct {
	DSM, NDVI, Shapefile unsafe.Pointer
	FCovOut, MeanNDVIOut unsafe.Pointer
	Denoise              bool
	AreaThreshold        int32
}

// InvokeRaw is the native entry point. It never panics and never returns an
// error: failures yield FailureStatus with both outputs set to 0.0.
func (s *Shim) InvokeRaw(ctx context.Context, raw Raw) (status int32) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Panic(errors.PhaseInvoke, r)
			zeroOutputs(raw)
			status = s.fail(err)
		}
	}()

	req := olivebridge.Request{
		DSMPath:       ffi.GoString(raw.DSM),
		NDVIPath:      ffi.GoString(raw.NDVI),
		ShapefilePath: ffi.GoString(raw.Shapefile),
		Denoise:       raw.Denoise,
		AreaThreshold: raw.AreaThreshold,
	}
	s.logger.Info("analysis requested",
		zap.String("dsm", req.DSMPath),
		zap.String("ndvi", req.NDVIPath),
		zap.String("shapefile", req.ShapefilePath),
		zap.Bool("denoise", req.Denoise),
		zap.Int32("area_threshold", req.AreaThreshold))

	out, err := s.Analyze(ctx, req)
	if err != nil {
		zeroOutputs(raw)
		return s.fail(err)
	}

	ffi.WriteFloat64(raw.FCovOut, out.FCov)
	ffi.WriteFloat64(raw.MeanNDVIOut, out.MeanNDVI)

	s.logger.Info("analysis complete",
		zap.Int32("status", out.Status),
		zap.Bool("has_status", out.HasStatus),
		zap.Float64("fcov", out.FCov),
		zap.Float64("mean_ndvi", out.MeanNDVI))
	return out.Status
}

func (s *Shim) fail(err error) int32 {
	status := Status(err)
	s.logger.Error("analysis failed",
		zap.String("kind", string(errors.KindOf(err))),
		zap.Int32("status", status),
		zap.Error(err))
	return status
}

// Status converts a boundary error to the native status: nil is 0, any
// error is FailureStatus.
func Status(err error) int32 {
	if err != nil {
		return FailureStatus
	}
	return 0
}

func zeroOutputs(raw Raw) {
	ffi.WriteUint64(raw.FCovOut, 0)
	ffi.WriteUint64(raw.MeanNDVIOut, 0)
}

// Close releases the backend if it holds resources. The shim must not be
// used afterwards.
func (s *Shim) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached.Store(nil)
	loader := s.loader
	s.loader = nil
	if c, ok := loader.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
