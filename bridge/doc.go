// Package bridge implements the native boundary of the analysis shim.
//
// A Shim decodes raw caller arguments, loads the analysis component once
// and caches it, constructs an instance per call, invokes the configured
// method and writes both results back through the caller's pointers.
//
// # Status Codes
//
//	component status  method returned an integer
//	0                 method returned no integer
//	-1                any failure (outputs are set to 0.0)
//
// # Loading
//
// The first call resolves the component. Concurrent first calls share one
// attempt through singleflight. A failed attempt is not cached.
//
// # Configuration
//
// DefaultConfig places the component next to the shim. ConfigFromEnv applies
// the OLIVEBRIDGE_* overrides:
//
//	OLIVEBRIDGE_COMPONENT           explicit component path
//	OLIVEBRIDGE_BACKEND             wasm (default) or native
//	OLIVEBRIDGE_TYPE                entry type name
//	OLIVEBRIDGE_METHOD              analysis method name
//	OLIVEBRIDGE_MEMORY_LIMIT_PAGES  wasm guest memory cap in 64KiB pages
//	OLIVEBRIDGE_LOG_LEVEL           zap level, or "off"
package bridge
