// Package ffi converts raw caller-owned pointers at the native boundary.
//
// Nothing here uses cgo; pointers arrive as unsafe.Pointer so the package
// can be tested with Go memory.
package ffi

import (
	"math"
	"unicode/utf8"
	"unsafe"
)

// maxStringLen bounds the NUL scan of a path argument
const maxStringLen = 1 << 20

// GoString decodes a NUL-terminated UTF-8 string. A nil pointer, bytes that
// are not valid UTF-8, or a string without a terminator within the scan
// limit decode to "".
func GoString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for ; n < maxStringLen; n++ {
		if *(*byte)(unsafe.Add(p, n)) == 0 {
			break
		}
	}
	if n == maxStringLen {
		return ""
	}
	b := unsafe.Slice((*byte)(p), n)
	if !utf8.Valid(b) {
		return ""
	}
	return string(b)
}

// WriteUint64 stores v at p in native byte order. A nil p is ignored.
func WriteUint64(p unsafe.Pointer, v uint64) {
	if p == nil {
		return
	}
	b := unsafe.Slice((*byte)(p), 8)
	*(*[8]byte)(b) = *(*[8]byte)(unsafe.Pointer(&v))
}

// ReadUint64 loads 8 bytes at p in native byte order. A nil p reads as 0.
func ReadUint64(p unsafe.Pointer) uint64 {
	if p == nil {
		return 0
	}
	var v uint64
	*(*[8]byte)(unsafe.Pointer(&v)) = *(*[8]byte)(p)
	return v
}

// WriteFloat64 stores the IEEE-754 bit pattern of f at p.
func WriteFloat64(p unsafe.Pointer, f float64) {
	WriteUint64(p, math.Float64bits(f))
}

// ReadFloat64 is the inverse of WriteFloat64.
func ReadFloat64(p unsafe.Pointer) float64 {
	return math.Float64frombits(ReadUint64(p))
}
