// Package engine provides the low-level WebAssembly runtime for analysis
// components.
//
// This package wraps wazero: it compiles a component module, instantiates
// it with WASI and the olive diagnostics host module, and exposes guest
// memory and the guest allocator.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Creates and manages the wazero runtime and host modules
//	WazeroModule   - A compiled component; inspects exports, creates instances
//	WazeroInstance - A running instance with memory, allocator and exports
//
// # Instantiation Flow
//
//  1. WazeroEngine.LoadModule() compiles the module binary
//  2. WazeroModule.ExportNames() and ExportedFunction() inspect exports
//  3. WazeroModule.Instantiate() creates an anonymous WazeroInstance
//  4. WazeroInstance.Call() invokes exports with core values
//
// # Export Conventions
//
// Types are exported as "<type>#<member>" functions. "<type>#new" returns
// an object handle, "<type>#drop" releases it. Analysis methods follow
// AnalysisSignature, declared with WIT types and lowered by Flatten:
//
//	WIT Type        Core Representation
//	───────────────────────────────────
//	bool, u8-u32    i32
//	u64, s64        i64
//	f32             f32
//	f64             f64
//	string          (ptr, len) as i32×2
//
// # Host Modules
//
// wasi_snapshot_preview1 is provided by wazero with Config.Mounts as
// preopens. The "olive" module exports log(level, ptr, len), which is
// forwarded to Logger().
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is not; create one per goroutine.
package engine
