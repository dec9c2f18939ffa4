// Package wasmtest builds small core WebAssembly modules for tests.
package wasmtest

import (
	"sort"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// Value types used by fixtures
const (
	I32 = wasm.ValueTypeI32
	F64 = wasm.ValueTypeF64
)

// Module assembles a wabin module. Imports must be added before functions
// so function indices stay stable.
type Module struct {
	mod   wasm.Module
	names wasm.NameMap
}

// NewModule returns an empty module
func NewModule() *Module {
	return &Module{}
}

// Memory declares a memory of pages and exports it as "memory"
func (m *Module) Memory(pages uint32) *Module {
	m.mod.MemorySection = &wasm.Memory{Min: pages}
	m.mod.ExportSection = append(m.mod.ExportSection, &wasm.Export{
		Type: wasm.ExternTypeMemory,
		Name: "memory",
	})
	return m
}

// Global adds a mutable i32 global and returns its index
func (m *Module) Global(init int32) wasm.Index {
	m.mod.GlobalSection = append(m.mod.GlobalSection, &wasm.Global{
		Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
		Init: i32Const(init),
	})
	return wasm.Index(len(m.mod.GlobalSection) - 1)
}

// Data adds an active data segment at offset in memory 0
func (m *Module) Data(offset int32, data []byte) *Module {
	m.mod.DataSection = append(m.mod.DataSection, &wasm.DataSegment{
		OffsetExpression: i32Const(offset),
		Init:             data,
	})
	return m
}

// ImportFunc imports a host function and returns its function index
func (m *Module) ImportFunc(module, name string, params, results []wasm.ValueType) wasm.Index {
	if len(m.mod.FunctionSection) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	m.mod.ImportSection = append(m.mod.ImportSection, &wasm.Import{
		Type:     wasm.ExternTypeFunc,
		Module:   module,
		Name:     name,
		DescFunc: m.typeIndex(params, results),
	})
	return m.mod.ImportFuncCount() - 1
}

// Func defines a function, exports it when export is not empty, and returns
// its function index.
func (m *Module) Func(export string, params, results []wasm.ValueType, body *Code) wasm.Index {
	m.mod.FunctionSection = append(m.mod.FunctionSection, m.typeIndex(params, results))
	m.mod.CodeSection = append(m.mod.CodeSection, &wasm.Code{Body: body.Bytes()})

	idx := m.mod.ImportFuncCount() + wasm.Index(len(m.mod.FunctionSection)) - 1
	if export != "" {
		m.mod.ExportSection = append(m.mod.ExportSection, &wasm.Export{
			Type:  wasm.ExternTypeFunc,
			Name:  export,
			Index: idx,
		})
	}
	return idx
}

// Name records a debug name for a function in the name section
func (m *Module) Name(idx wasm.Index, name string) *Module {
	m.names = append(m.names, &wasm.NameAssoc{Index: idx, Name: name})
	return m
}

// Encode returns the module in binary format
func (m *Module) Encode() []byte {
	mod := m.mod
	if len(m.names) > 0 {
		names := append(wasm.NameMap(nil), m.names...)
		sort.Slice(names, func(i, j int) bool { return names[i].Index < names[j].Index })
		mod.NameSection = &wasm.NameSection{FunctionNames: names}
	}
	return binary.EncodeModule(&mod)
}

func (m *Module) typeIndex(params, results []wasm.ValueType) wasm.Index {
	for i, ft := range m.mod.TypeSection {
		if ft.EqualsSignature(params, results) {
			return wasm.Index(i)
		}
	}
	m.mod.TypeSection = append(m.mod.TypeSection, &wasm.FunctionType{Params: params, Results: results})
	return wasm.Index(len(m.mod.TypeSection) - 1)
}

func i32Const(v int32) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(v)}
}
