package bridge

import (
	"sync"
	"unsafe"
)

// EntryPoint hands out the address of the native entry function. The
// provider runs once; every call returns the same address.
type EntryPoint struct {
	once    sync.Once
	provide func() unsafe.Pointer
	addr    unsafe.Pointer
}

// NewEntryPoint creates a token around provide
func NewEntryPoint(provide func() unsafe.Pointer) *EntryPoint {
	return &EntryPoint{provide: provide}
}

// Address returns the cached entry address, computing it on first use
func (e *EntryPoint) Address() unsafe.Pointer {
	e.once.Do(func() {
		if e.provide != nil {
			e.addr = e.provide()
		}
	})
	return e.addr
}
