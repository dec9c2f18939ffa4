//go:build cgo

package main

import (
	"os"
	"path/filepath"
)

// shimDir returns the directory holding this shared library, or the
// executable's directory when the library path cannot be determined.
func shimDir() string {
	if p := modulePath(); p != "" {
		if abs, err := filepath.Abs(p); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(p)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	return "."
}
