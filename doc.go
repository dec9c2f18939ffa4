// Package olivebridge is a native boundary shim for an external DSM/NDVI
// analysis component.
//
// A native host calls one exported C function (or the function pointer
// returned by GetRunAnalysisFunctionPointer). The shim decodes the raw
// arguments, loads the analysis component that sits next to the shim,
// resolves the entry type and method by name, invokes it and writes the
// two results back through caller-owned pointers.
//
// # Architecture Overview
//
//	olivebridge/         Root package with the backend contract and guest Memory interfaces
//	├── bridge/          The boundary: config, guarded lazy load, Invoke, status codes
//	├── runtime/         WebAssembly backend (type/method resolution over wazero)
//	├── engine/          Low-level wazero integration, host modules, guest memory
//	├── native/          Shared-library backend (cgo dlopen/dlsym)
//	├── ffi/             Raw pointer marshaling
//	├── errors/          Structured error types
//	└── cmd/
//	    ├── olivebridge/ c-shared entry point
//	    └── olive-run/   developer CLI
//
// # Quick Start
//
// Build the shared library:
//
//	go build -buildmode=c-shared -o libolivebridge.so ./cmd/olivebridge
//
// Place OliveMatrixLibCore.wasm next to it and call from C:
//
//	double fcov, mean;
//	int rc = RunOliveMatrixAnalysis("/a.tif", "/b.tif", "/c.zip", &fcov, &mean, true, 50);
//
// From Go, use the bridge package directly:
//
//	shim := bridge.New(bridge.DefaultConfig(dir))
//	out, err := shim.Analyze(ctx, olivebridge.Request{DSMPath: "/a.tif"})
//
// # Status Codes
//
// The native entry point returns the component's own status, 0 when the
// component returns no integer, or -1 on any failure. Both outputs are
// zeroed whenever -1 is returned. Failure details are only logged.
//
// # Thread Safety
//
// The entry point may be called from several native threads at once.
// Component loading is serialized; invocations run on fresh instances and
// need no locking.
package olivebridge
