package bridge

import (
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/errors"
	"github.com/wippyai/olive-bridge/internal/wasmtest"
)

// garbage is written to output slots before a call so tests can tell
// whether the shim overwrote them.
const garbage = 9.75

type call struct {
	fcov, mean float64
	status     int32
}

func cstr(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

func invoke(s *Shim, dsm, ndvi, shp string, denoise bool, area int32) call {
	fcov, mean := garbage, garbage
	status := s.InvokeRaw(context.Background(), Raw{
		DSM:           cstr(dsm),
		NDVI:          cstr(ndvi),
		Shapefile:     cstr(shp),
		FCovOut:       unsafe.Pointer(&fcov),
		MeanNDVIOut:   unsafe.Pointer(&mean),
		Denoise:       denoise,
		AreaThreshold: area,
	})
	return call{fcov: fcov, mean: mean, status: status}
}

func scenario(s *Shim) call {
	return invoke(s, "/a.tif", "/b.tif", "/c.zip", true, 50)
}

func assertFailure(t *testing.T, c call) {
	t.Helper()
	if c.status != -1 {
		t.Errorf("status = %d, want -1", c.status)
	}
	if math.Float64bits(c.fcov) != 0 || math.Float64bits(c.mean) != 0 {
		t.Errorf("outputs = (%v, %v), want zero bits", c.fcov, c.mean)
	}
}

// writeWasm writes a component into a temp dir and returns the dir
func writeWasm(t *testing.T, a wasmtest.Analysis) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ComponentFileName(BackendWasm)), a.Build(), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

// wasmShim writes a component into a temp dir and returns a shim over it
func wasmShim(t *testing.T, a wasmtest.Analysis, opts ...Option) *Shim {
	t.Helper()
	s := New(DefaultConfig(writeWasm(t, a)), opts...)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// touchComponent creates an empty component file so the stat check passes
func touchComponent(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	if err := os.WriteFile(cfg.ComponentFile(), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestInvokeRaw_MissingComponent(t *testing.T) {
	s := New(DefaultConfig(t.TempDir()))
	assertFailure(t, scenario(s))
	if s.Loaded() {
		t.Error("failed load must not be cached")
	}
}

func TestInvokeRaw_Success(t *testing.T) {
	s := wasmShim(t, wasmtest.Success())

	c := scenario(s)
	if c.status != 0 {
		t.Fatalf("status = %d, want 0", c.status)
	}
	if math.Float64bits(c.fcov) != math.Float64bits(0.42) {
		t.Errorf("fcov bits = %x, want %x", math.Float64bits(c.fcov), math.Float64bits(0.42))
	}
	if math.Float64bits(c.mean) != math.Float64bits(0.67) {
		t.Errorf("mean bits = %x, want %x", math.Float64bits(c.mean), math.Float64bits(0.67))
	}
	if !s.Loaded() {
		t.Error("component should be cached")
	}
}

func TestInvokeRaw_WasmOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		a      wasmtest.Analysis
		status int32
		fail   bool
	}{
		{"status passes through", wasmtest.Analysis{Status: 7, FCov: 1, Mean: 2}, 7, false},
		{"negative status", wasmtest.Analysis{Status: -3}, -3, false},
		{"area threshold reaches method", wasmtest.Analysis{Source: wasmtest.StatusAreaThreshold}, 50, false},
		{"paths reach method", wasmtest.Analysis{Source: wasmtest.StatusShapefileLen}, int32(len("/c.zip")), false},
		{"no integer result", wasmtest.Analysis{NoResult: true, FCov: 0.5}, 0, false},
		{"float result", wasmtest.Analysis{F64Result: true}, 0, false},
		{"missing type", wasmtest.Analysis{NoType: true}, -1, true},
		{"missing method", wasmtest.Analysis{NoMethod: true}, -1, true},
		{"constructor returns null", wasmtest.Analysis{NullInstance: true}, -1, true},
		{"trap", wasmtest.Analysis{Trap: true}, -1, true},
		{"signature mismatch", wasmtest.Analysis{WrongSignature: true}, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := wasmShim(t, tt.a)
			c := scenario(s)
			if tt.fail {
				assertFailure(t, c)
				return
			}
			if c.status != tt.status {
				t.Errorf("status = %d, want %d", c.status, tt.status)
			}
			if c.fcov != tt.a.FCov || c.mean != tt.a.Mean {
				t.Errorf("outputs = (%v, %v), want (%v, %v)", c.fcov, c.mean, tt.a.FCov, tt.a.Mean)
			}
		})
	}
}

func TestInvokeRaw_RepeatedCalls(t *testing.T) {
	s := wasmShim(t, wasmtest.Analysis{Source: wasmtest.StatusAreaThreshold})
	for i := int32(0); i < 5; i++ {
		if c := invoke(s, "", "", "", false, i); c.status != i {
			t.Errorf("call %d status = %d", i, c.status)
		}
	}
}

// fake backend

type fakeLoader struct {
	calls atomic.Int32
	gate  chan struct{}
	errs  []error // returned by successive calls, then typ
	typ   olivebridge.Type
}

func (l *fakeLoader) Load(_ context.Context, _, _ string) (olivebridge.Type, error) {
	n := int(l.calls.Add(1))
	if l.gate != nil {
		<-l.gate
	}
	if n <= len(l.errs) {
		return nil, l.errs[n-1]
	}
	return l.typ, nil
}

type fakeType struct {
	newErr  error
	nilInst bool
	method  *fakeMethod
	closed  atomic.Int32
}

func (t *fakeType) Name() string { return "Fake.Type" }

func (t *fakeType) New(context.Context) (olivebridge.Instance, error) {
	if t.newErr != nil {
		return nil, t.newErr
	}
	if t.nilInst {
		return nil, nil
	}
	return &fakeInstance{typ: t}, nil
}

func (t *fakeType) Method(name string) (olivebridge.Method, error) {
	if t.method == nil || name != olivebridge.DefaultMethodName {
		return nil, errors.MethodNotFound(t.Name(), name)
	}
	return t.method, nil
}

type fakeInstance struct {
	typ *fakeType
}

func (i *fakeInstance) Close(context.Context) error {
	i.typ.closed.Add(1)
	return nil
}

type fakeMethod struct {
	out   olivebridge.Outcome
	err   error
	panic any

	mu  sync.Mutex
	got []olivebridge.Request
}

func (m *fakeMethod) Name() string { return olivebridge.DefaultMethodName }

func (m *fakeMethod) Invoke(_ context.Context, _ olivebridge.Instance, req olivebridge.Request) (olivebridge.Outcome, error) {
	m.mu.Lock()
	m.got = append(m.got, req)
	m.mu.Unlock()
	if m.panic != nil {
		panic(m.panic)
	}
	return m.out, m.err
}

func (m *fakeMethod) last() olivebridge.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.got[len(m.got)-1]
}

func okType() *fakeType {
	return &fakeType{method: &fakeMethod{out: olivebridge.Outcome{FCov: 0.42, MeanNDVI: 0.67, HasStatus: true}}}
}

func TestInvokeRaw_FakeBackend(t *testing.T) {
	tests := []struct {
		name   string
		typ    *fakeType
		status int32
		fail   bool
	}{
		{"success", okType(), 0, false},
		{"status", &fakeType{method: &fakeMethod{out: olivebridge.Outcome{Status: 12, HasStatus: true}}}, 12, false},
		{"status ignored without HasStatus", &fakeType{method: &fakeMethod{out: olivebridge.Outcome{Status: 12}}}, 0, false},
		{"constructor error", &fakeType{newErr: stderrors.New("ctor threw")}, -1, true},
		{"nil instance", &fakeType{nilInst: true}, -1, true},
		{"missing method", &fakeType{}, -1, true},
		{"method error", &fakeType{method: &fakeMethod{err: stderrors.New("raised")}}, -1, true},
		{"method panic", &fakeType{method: &fakeMethod{panic: "boom"}}, -1, true},
		{"method panic with error", &fakeType{method: &fakeMethod{panic: stderrors.New("nil deref")}}, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(touchComponent(t), WithLoader(&fakeLoader{typ: tt.typ}))
			c := scenario(s)
			if tt.fail {
				assertFailure(t, c)
			} else if c.status != tt.status {
				t.Errorf("status = %d, want %d", c.status, tt.status)
			}
			if !tt.typ.nilInst && tt.typ.newErr == nil && tt.typ.closed.Load() != 1 {
				t.Errorf("instance closed %d times, want 1", tt.typ.closed.Load())
			}
		})
	}
}

func TestInvokeRaw_LoaderReturnsNilType(t *testing.T) {
	s := New(touchComponent(t), WithLoader(&fakeLoader{}))
	assertFailure(t, scenario(s))
}

func TestInvokeRaw_LoaderPanics(t *testing.T) {
	s := New(touchComponent(t), WithLoaderFactory(func(context.Context, Config, *zap.Logger) (olivebridge.Loader, error) {
		panic("factory exploded")
	}))
	assertFailure(t, scenario(s))
	if s.Loaded() {
		t.Error("panicking load must not be cached")
	}
}

func TestInvokeRaw_RetryAfterFailure(t *testing.T) {
	loader := &fakeLoader{
		errs: []error{errors.TypeNotFound("x", "Fake.Type"), errors.Load("x", "compile", stderrors.New("bad"))},
		typ:  okType(),
	}
	s := New(touchComponent(t), WithLoader(loader))

	assertFailure(t, scenario(s))
	assertFailure(t, scenario(s))
	if c := scenario(s); c.status != 0 || c.fcov != 0.42 {
		t.Errorf("third call = %+v", c)
	}
	for i := 0; i < 3; i++ {
		scenario(s)
	}
	if got := loader.calls.Load(); got != 3 {
		t.Errorf("loader calls = %d, want 3", got)
	}
}

func TestInvokeRaw_ComponentAppearsLater(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	loader := &fakeLoader{typ: okType()}
	s := New(cfg, WithLoader(loader))

	assertFailure(t, scenario(s))
	if loader.calls.Load() != 0 {
		t.Error("loader must not run when the component is absent")
	}

	if err := os.WriteFile(cfg.ComponentFile(), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if c := scenario(s); c.status != 0 {
		t.Errorf("status = %d after component appeared", c.status)
	}
}

func TestInvokeRaw_ConcurrentFirstCalls(t *testing.T) {
	loader := &fakeLoader{gate: make(chan struct{}), typ: okType()}
	s := New(touchComponent(t), WithLoader(loader))

	const n = 16
	results := make(chan call, n)
	var started sync.WaitGroup
	started.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			started.Done()
			results <- scenario(s)
		}()
	}
	started.Wait()
	close(loader.gate)

	for i := 0; i < n; i++ {
		if c := <-results; c.status != 0 || c.fcov != 0.42 || c.mean != 0.67 {
			t.Errorf("call = %+v", c)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
}

type closingLoader struct {
	fakeLoader
	closed atomic.Int32
}

func (l *closingLoader) Close(context.Context) error {
	l.closed.Add(1)
	return nil
}

func TestClose_WaitsForInFlightLoad(t *testing.T) {
	gate := make(chan struct{})
	var mu sync.Mutex
	var loaders []*closingLoader
	factory := func(context.Context, Config, *zap.Logger) (olivebridge.Loader, error) {
		l := &closingLoader{fakeLoader: fakeLoader{gate: gate, typ: okType()}}
		mu.Lock()
		loaders = append(loaders, l)
		mu.Unlock()
		return l, nil
	}
	s := New(touchComponent(t), WithLoaderFactory(factory))

	first := make(chan call, 1)
	go func() { first <- scenario(s) }()
	for {
		mu.Lock()
		started := len(loaders) == 1 && loaders[0].calls.Load() == 1
		mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()
	select {
	case <-closed:
		t.Fatal("Close returned while a load was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	if c := <-first; c.status != 0 || c.fcov != 0.42 {
		t.Errorf("in-flight call = %+v", c)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Loaded() {
		t.Error("Close must drop the cached type")
	}
	if got := loaders[0].closed.Load(); got != 1 {
		t.Errorf("loader closed %d times, want 1", got)
	}

	if c := scenario(s); c.status != 0 {
		t.Errorf("call after Close = %+v", c)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(loaders) != 2 {
		t.Errorf("loaders created = %d, want 2", len(loaders))
	}
}

func TestInvokeRaw_NilAndInvalidPointers(t *testing.T) {
	typ := okType()
	s := New(touchComponent(t), WithLoader(&fakeLoader{typ: typ}))

	status := s.InvokeRaw(context.Background(), Raw{
		DSM:           nil,
		NDVI:          cstr("/b\xfe.tif"),
		Shapefile:     cstr(""),
		Denoise:       true,
		AreaThreshold: -1,
	})
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}

	got := typ.method.last()
	want := olivebridge.Request{Denoise: true, AreaThreshold: -1}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestInvokeRaw_NilOutputsOnFailure(t *testing.T) {
	s := New(DefaultConfig(t.TempDir()))
	if status := s.InvokeRaw(context.Background(), Raw{}); status != -1 {
		t.Errorf("status = %d, want -1", status)
	}
}

func TestInvokeRaw_ConfigError(t *testing.T) {
	loader := &fakeLoader{typ: okType()}
	cfg := touchComponent(t)
	cfg.Backend = "jvm"
	s := New(cfg, WithLoader(loader))

	assertFailure(t, scenario(s))
	if loader.calls.Load() != 0 {
		t.Error("loader must not run with an invalid config")
	}
}

func TestInvokeRaw_FailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(DefaultConfig(t.TempDir()), WithLogger(zap.New(core)))

	assertFailure(t, scenario(s))

	if logs.FilterMessage("analysis requested").Len() != 1 {
		t.Error("request not logged")
	}
	failed := logs.FilterMessage("analysis failed").All()
	if len(failed) != 1 {
		t.Fatalf("failure entries = %d, want 1", len(failed))
	}
	if kind := failed[0].ContextMap()["kind"]; kind != string(errors.KindComponentNotFound) {
		t.Errorf("kind = %v", kind)
	}
}

func TestAnalyze(t *testing.T) {
	s := New(touchComponent(t), WithLoader(&fakeLoader{typ: okType()}))
	out, err := s.Analyze(context.Background(), olivebridge.Request{DSMPath: "/a.tif"})
	if err != nil {
		t.Fatal(err)
	}
	if out.FCov != 0.42 || out.MeanNDVI != 0.67 || !out.HasStatus {
		t.Errorf("out = %+v", out)
	}

	_, err = New(DefaultConfig(t.TempDir())).Analyze(context.Background(), olivebridge.Request{})
	if errors.KindOf(err) != errors.KindComponentNotFound {
		t.Errorf("err = %v", err)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != 0 {
		t.Error("Status(nil) != 0")
	}
	if Status(stderrors.New("x")) != -1 {
		t.Error("Status(err) != -1")
	}
	if Status(errors.Panic(errors.PhaseInvoke, "p")) != FailureStatus {
		t.Error("Status(panic) != FailureStatus")
	}
}

func TestEntryPoint(t *testing.T) {
	var calls atomic.Int32
	var target byte
	ep := NewEntryPoint(func() unsafe.Pointer {
		calls.Add(1)
		return unsafe.Pointer(&target)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ep.Address() != unsafe.Pointer(&target) {
				t.Error("unstable address")
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", calls.Load())
	}
	if NewEntryPoint(nil).Address() != nil {
		t.Error("nil provider should yield nil")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv(EnvLogLevel, "off")
	dir := t.TempDir()

	var located atomic.Int32
	locate := func() string {
		located.Add(1)
		return dir
	}
	a := Default(locate)
	b := Default(locate)
	if a != b {
		t.Error("Default should return one shim")
	}
	if located.Load() != 1 {
		t.Errorf("locate calls = %d", located.Load())
	}
	if a.Config().Dir != dir {
		t.Errorf("Dir = %q", a.Config().Dir)
	}
	assertFailure(t, scenario(a))
}

func TestNewFromEnv_BadConfig(t *testing.T) {
	t.Setenv(EnvLogLevel, "off")
	t.Setenv(EnvBackend, "jvm")
	s := newFromEnv(t.TempDir())
	assertFailure(t, scenario(s))
}

func TestNewFromEnv_UnknownLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "verbose")
	s := newFromEnv(writeWasm(t, wasmtest.Success()))
	defer s.Close(context.Background())

	if s.Config().LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", s.Config().LogLevel)
	}
	c := scenario(s)
	if c.status != 0 || c.fcov != 0.42 || c.mean != 0.67 {
		t.Errorf("call = %+v, want status 0 with (0.42, 0.67)", c)
	}
}
