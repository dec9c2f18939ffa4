package engine

import (
	"context"
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/olive-bridge/internal/wasmtest"
)

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{DisableWASI: true, Mounts: map[string]string{}}, "no wasi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
			if engine.cfg.Mounts == nil {
				t.Error("mounts should default when nil")
			}
		})
	}
}

func TestDefaultMounts(t *testing.T) {
	m := DefaultMounts()
	if m["/"] != "/" {
		t.Errorf("DefaultMounts = %v", m)
	}
}

func TestLoadModule_Invalid(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	if _, err := engine.LoadModule(ctx, []byte("not wasm")); err == nil {
		t.Error("expected compile error")
	}
}

func TestModule_Exports(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, wasmtest.Success().Build())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	defer mod.Close(ctx)

	names := mod.ExportNames()
	types := TypeNames(names)
	if len(types) != 1 || types[0] != wasmtest.DefaultTypeName {
		t.Fatalf("TypeNames = %v", types)
	}

	def, ok := mod.ExportedFunction(ExportName(wasmtest.DefaultTypeName, wasmtest.DefaultMethodName))
	if !ok {
		t.Fatal("method export not found")
	}
	match, err := AnalysisSignature.MatchParams(def)
	if err != nil || !match {
		t.Errorf("MatchParams = %v, %v; params %s", match, err, FormatValueTypes(def.ParamTypes()))
	}
	if !StatusResult(def) {
		t.Error("expected i32 status result")
	}
}

func TestModule_SignatureShapes(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	tests := []struct {
		name      string
		a         wasmtest.Analysis
		match     bool
		hasStatus bool
	}{
		{"status", wasmtest.Success(), true, true},
		{"no result", wasmtest.Analysis{NoResult: true}, true, false},
		{"f64 result", wasmtest.Analysis{F64Result: true}, true, false},
		{"wrong params", wasmtest.Analysis{WrongSignature: true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := engine.LoadModule(ctx, tt.a.Build())
			if err != nil {
				t.Fatalf("LoadModule: %v", err)
			}
			defer mod.Close(ctx)

			def, ok := mod.ExportedFunction(ExportName(wasmtest.DefaultTypeName, wasmtest.DefaultMethodName))
			if !ok {
				t.Fatal("method export not found")
			}
			match, err := AnalysisSignature.MatchParams(def)
			if err != nil {
				t.Fatal(err)
			}
			if match != tt.match {
				t.Errorf("MatchParams = %v, want %v", match, tt.match)
			}
			if got := StatusResult(def); got != tt.hasStatus {
				t.Errorf("StatusResult = %v, want %v", got, tt.hasStatus)
			}
		})
	}
}

func TestInstance_CallAndMemory(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	for _, simple := range []bool{false, true} {
		a := wasmtest.Analysis{FCov: 0.42, Mean: 0.67, Source: wasmtest.StatusDSMFirstByte, SimpleAlloc: simple}
		mod, err := engine.LoadModule(ctx, a.Build())
		if err != nil {
			t.Fatalf("LoadModule: %v", err)
		}

		inst, err := mod.Instantiate(ctx)
		if err != nil {
			t.Fatalf("Instantiate: %v", err)
		}
		if inst.Memory() == nil || inst.MemorySize() == 0 {
			t.Fatal("expected exported memory")
		}

		ptr, length, err := inst.WriteString(ctx, "Z.tif")
		if err != nil {
			t.Fatalf("WriteString: %v", err)
		}
		if length != 5 || ptr == 0 {
			t.Fatalf("WriteString = (%d, %d)", ptr, length)
		}

		out, err := inst.Allocator(ctx).Alloc(OutputAreaSize, 8)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		res, err := inst.Call(ctx, ExportName(wasmtest.DefaultTypeName, wasmtest.DefaultMethodName),
			1, uint64(ptr), uint64(length), 0, 0, 0, 0, uint64(out), uint64(out+8), 1, api.EncodeI32(50))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if got := api.DecodeI32(res[0]); got != 'Z' {
			t.Errorf("status = %d, want %d", got, 'Z')
		}

		bits, err := inst.Memory().ReadU64(out)
		if err != nil {
			t.Fatal(err)
		}
		if bits != math.Float64bits(0.42) {
			t.Errorf("fcov bits = %x", bits)
		}
		mean, err := inst.Memory().ReadF64(out + 8)
		if err != nil || mean != 0.67 {
			t.Errorf("mean = %v, %v", mean, err)
		}

		if err := inst.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
		if err := inst.Close(ctx); err != nil {
			t.Errorf("second Close: %v", err)
		}
		mod.Close(ctx)
	}
}

func TestInstance_WriteEmptyString(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, wasmtest.Success().Build())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)

	ptr, length, err := inst.WriteString(ctx, "")
	if err != nil || ptr != 0 || length != 0 {
		t.Errorf("WriteString(\"\") = (%d, %d, %v)", ptr, length, err)
	}
}

func TestInstance_Isolation(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, wasmtest.Success().Build())
	if err != nil {
		t.Fatal(err)
	}

	a, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(ctx)

	if err := a.Memory().WriteU32(64, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	v, err := b.Memory().ReadU32(64)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("instances share memory: %x", v)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, wasmtest.Success().Build())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)

	mem := inst.Memory()
	size := inst.MemorySize()
	if _, err := mem.Read(size-2, 4); err == nil {
		t.Error("expected read error")
	}
	if err := mem.Write(size, []byte{1}); err == nil {
		t.Error("expected write error")
	}
	if _, err := mem.ReadU64(size - 4); err == nil {
		t.Error("expected ReadU64 error")
	}
	if err := mem.WriteU64(size-4, 1); err == nil {
		t.Error("expected WriteU64 error")
	}
}

func TestInstance_NoAllocator(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, wasmtest.NewModule().Memory(1).Encode())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)

	if _, _, err := inst.WriteString(ctx, "x"); err == nil {
		t.Error("expected allocator error")
	}
	if _, err := inst.Call(ctx, "missing"); err == nil {
		t.Error("expected missing export error")
	}
}

func TestInstance_AllocatorByExportName(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	tests := []struct {
		name string
		a    wasmtest.Analysis
	}{
		{"no name section", wasmtest.Analysis{}},
		{"realloc named differently", wasmtest.Analysis{AllocName: "bump"}},
		{"alloc named differently", wasmtest.Analysis{AllocName: "bump", SimpleAlloc: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := engine.LoadModule(ctx, tt.a.Build())
			if err != nil {
				t.Fatal(err)
			}
			defer mod.Close(ctx)

			inst, err := mod.Instantiate(ctx)
			if err != nil {
				t.Fatal(err)
			}
			defer inst.Close(ctx)

			ptr, length, err := inst.WriteString(ctx, "/a.tif")
			if err != nil {
				t.Fatalf("WriteString: %v", err)
			}
			got, err := inst.Memory().Read(ptr, length)
			if err != nil || string(got) != "/a.tif" {
				t.Errorf("guest string = %q, %v", got, err)
			}
		})
	}
}
