// Package runtime provides the WebAssembly analysis backend.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	typ, err := rt.Load(ctx, "/opt/olive/OliveMatrixLibCore.wasm", olivebridge.DefaultTypeName)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	obj, err := typ.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obj.Close(ctx)
//
//	m, err := typ.Method(olivebridge.DefaultMethodName)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := m.Invoke(ctx, obj, olivebridge.Request{DSMPath: "/data/dsm.tif"})
//
// # Resolution
//
//	Runtime.Load   - read + compile the file, resolve the type by export prefix
//	Type.New       - fresh guest instance, call "<type>#new", handle 0 fails
//	Type.Method    - look up "<type>#<method>", check AnalysisSignature
//	Method.Invoke  - copy paths into guest memory, call, read both f64 outputs
//
// Every Type.New creates a separate guest instance, so objects never share
// guest memory and calls on different objects need no locking.
package runtime
