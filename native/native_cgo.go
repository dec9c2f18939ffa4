//go:build cgo && !noffi && !windows

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdbool.h>
#include <stdlib.h>

typedef void* (*olive_new_fn)(void);
typedef void (*olive_free_fn)(void*);
typedef int (*olive_run_fn)(void*, const char*, const char*, const char*, double*, double*, bool, int);

static void* olive_call_new(void* fn) {
	return ((olive_new_fn)fn)();
}

static void olive_call_free(void* fn, void* self) {
	((olive_free_fn)fn)(self);
}

static int olive_call_run(void* fn, void* self, const char* dsm, const char* ndvi,
		const char* shp, double* fcov, double* mean, bool denoise, int area) {
	return ((olive_run_fn)fn)(self, dsm, ndvi, shp, fcov, mean, denoise, area);
}

static void* olive_dlopen(const char* path) {
	dlerror();
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void* olive_dlsym(void* handle, const char* name) {
	dlerror();
	return dlsym(handle, name);
}

static const char* olive_dlerror(void) {
	return dlerror();
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/errors"
)

// Supported reports whether this build can load shared libraries
const Supported = true

// Load opens the library at path and resolves typeName by its constructor
// symbol. The library stays loaded for the life of the process.
func (l *Loader) Load(_ context.Context, path, typeName string) (olivebridge.Type, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.olive_dlopen(cpath)
	if handle == nil {
		return nil, errors.Load(path, "dlopen", fmt.Errorf("%s", dlerror()))
	}

	ctor := lookup(handle, Symbol(typeName, "new"))
	if ctor == nil {
		C.dlclose(handle)
		return nil, errors.TypeNotFound(path, typeName)
	}

	l.logger.Debug("shared library loaded",
		zap.String("library", path),
		zap.String("type", typeName))

	return &Type{
		loader: l,
		handle: handle,
		name:   typeName,
		newFn:  ctor,
		freeFn: lookup(handle, Symbol(typeName, "free")),
	}, nil
}

func lookup(handle unsafe.Pointer, symbol string) unsafe.Pointer {
	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))
	return C.olive_dlsym(handle, csym)
}

func dlerror() string {
	if msg := C.olive_dlerror(); msg != nil {
		return C.GoString(msg)
	}
	return "unknown dlopen error"
}

// Type is a type resolved in a shared library
type Type struct {
	loader *Loader
	handle unsafe.Pointer
	name   string
	newFn  unsafe.Pointer
	freeFn unsafe.Pointer
}

func (t *Type) Name() string {
	return t.name
}

// New calls the library constructor. A NULL result is an instantiation failure.
func (t *Type) New(_ context.Context) (olivebridge.Instance, error) {
	self := C.olive_call_new(t.newFn)
	if self == nil {
		return nil, errors.NoInstance(t.name)
	}
	return &Object{typ: t, self: self}, nil
}

func (t *Type) Method(name string) (olivebridge.Method, error) {
	if name == "new" || name == "free" {
		return nil, errors.MethodNotFound(t.name, name)
	}
	sym := Symbol(t.name, name)
	fn := lookup(t.handle, sym)
	if fn == nil {
		return nil, errors.MethodNotFound(t.name, name)
	}
	return &Method{typ: t, name: name, symbol: sym, fn: fn}, nil
}

// Object is a library-owned instance
type Object struct {
	typ  *Type
	self unsafe.Pointer
	once sync.Once
}

// Close releases the instance through the optional free symbol
func (o *Object) Close(_ context.Context) error {
	o.once.Do(func() {
		if o.typ.freeFn != nil && o.self != nil {
			C.olive_call_free(o.typ.freeFn, o.self)
		}
		o.self = nil
	})
	return nil
}

// Method is a resolved library method
type Method struct {
	typ    *Type
	name   string
	symbol string
	fn     unsafe.Pointer
}

func (m *Method) Name() string {
	return m.name
}

func (m *Method) Invoke(_ context.Context, inst olivebridge.Instance, req olivebridge.Request) (olivebridge.Outcome, error) {
	obj, ok := inst.(*Object)
	if !ok || obj == nil || obj.typ != m.typ {
		return olivebridge.Outcome{}, errors.InvalidInput(errors.PhaseInvoke, fmt.Sprintf("instance %T does not belong to %s", inst, m.typ.name))
	}
	if obj.self == nil {
		return olivebridge.Outcome{}, errors.NotInitialized(errors.PhaseInvoke, "instance")
	}

	dsm := C.CString(req.DSMPath)
	defer C.free(unsafe.Pointer(dsm))
	ndvi := C.CString(req.NDVIPath)
	defer C.free(unsafe.Pointer(ndvi))
	shp := C.CString(req.ShapefilePath)
	defer C.free(unsafe.Pointer(shp))

	var fcov, mean C.double
	m.typ.loader.logger.Debug("invoking symbol", zap.String("symbol", m.symbol))
	status := C.olive_call_run(m.fn, obj.self, dsm, ndvi, shp, &fcov, &mean,
		C.bool(req.Denoise), C.int(req.AreaThreshold))

	return olivebridge.Outcome{
		FCov:      float64(fcov),
		MeanNDVI:  float64(mean),
		Status:    int32(status),
		HasStatus: true,
	}, nil
}

var (
	_ olivebridge.Loader = (*Loader)(nil)
	_ olivebridge.Type   = (*Type)(nil)
	_ olivebridge.Method = (*Method)(nil)
)
