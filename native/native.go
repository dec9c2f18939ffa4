// Package native loads the analysis component as a C shared library.
//
// A type "A.B" maps to the symbol prefix "A_B":
//
//	void* A_B_new(void);
//	void  A_B_free(void*);                 optional
//	int   A_B_<Method>(void* self, const char* dsm, const char* ndvi,
//	                   const char* shapefile, double* fcov, double* mean,
//	                   bool denoise, int area_threshold);
//
// Builds without cgo, or with the noffi tag, get a stub whose Load always
// fails with an unsupported error.
package native

import (
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Loader implements olivebridge.Loader for shared libraries
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a shared-library loader. A nil logger disables logging.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LibraryName returns the platform file name of a shared library:
// libX.so on Linux and other Unix, libX.dylib on macOS, X.dll on Windows.
func LibraryName(base string) string {
	switch runtime.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin", "ios":
		return "lib" + base + ".dylib"
	default:
		return "lib" + base + ".so"
	}
}

// SymbolPrefix maps a fully-qualified type name to its C symbol prefix
func SymbolPrefix(typeName string) string {
	return strings.NewReplacer(".", "_", "-", "_", ":", "_").Replace(typeName)
}

// Symbol returns the C symbol of a type member
func Symbol(typeName, member string) string {
	return SymbolPrefix(typeName) + "_" + member
}
