package wasmtest

import "strings"

// DefaultTypeName matches the entry type the bridge resolves by default
const DefaultTypeName = "OliveMatrixLib.OliveMatrixLibCore"

// DefaultMethodName matches the method the bridge invokes by default
const DefaultMethodName = "RunAnalysis"

// heapBase is where the bump allocator starts handing out memory
const heapBase = 1024

// logOffset is where the log message data segment is placed
const logOffset = 16

// StatusSource selects what an analysis method returns as its status
type StatusSource int

const (
	StatusConst StatusSource = iota
	StatusDSMLen
	StatusNDVILen
	StatusShapefileLen
	StatusAreaThreshold
	StatusDenoise
	StatusDSMFirstByte
)

// Analysis configures a fake analysis component
type Analysis struct {
	TypeName string // DefaultTypeName if empty
	Method   string // DefaultMethodName if empty

	FCov   float64
	Mean   float64
	Status int32
	Source StatusSource

	NoType         bool   // export nothing for the type
	NoMethod       bool   // export the type without the analysis method
	NoConstructor  bool
	NullInstance   bool // constructor returns 0
	WithDrop       bool
	NoResult       bool   // method returns nothing
	F64Result      bool   // method returns f64 instead of a status
	Trap           bool   // method hits unreachable
	WrongSignature bool   // method takes a single i32
	SimpleAlloc    bool   // export alloc(size) instead of cabi_realloc
	AllocName      string // name-section name of the allocator, unlike its export name
	BadConstructor bool   // #new takes a parameter
	BadDrop        bool   // #drop takes nothing and returns i32
	LogMessage     string
	LogLevel       int32
}

// Success returns the configuration of a well-behaved component returning
// status 0 with fcov 0.42 and mean 0.67.
func Success() Analysis {
	return Analysis{FCov: 0.42, Mean: 0.67}
}

// Build encodes the component
func (a Analysis) Build() []byte {
	typeName := a.TypeName
	if typeName == "" {
		typeName = DefaultTypeName
	}
	method := a.Method
	if method == "" {
		method = DefaultMethodName
	}

	m := NewModule().Memory(1)
	heap := m.Global(heapBase)

	var logFn uint32
	if a.LogMessage != "" {
		logFn = m.ImportFunc("olive", "log", []byte{I32, I32, I32}, nil)
		m.Data(logOffset, []byte(a.LogMessage))
	}

	alloc := a.allocator(m, heap)
	if a.AllocName != "" {
		m.Name(alloc, a.AllocName)
	}

	if a.NoType {
		return m.Encode()
	}

	if !a.NoConstructor {
		handle := int32(1)
		if a.NullInstance {
			handle = 0
		}
		if a.BadConstructor {
			m.Func(typeName+"#new", []byte{I32}, []byte{I32}, new(Code).I32Const(handle))
		} else {
			m.Func(typeName+"#new", nil, []byte{I32}, new(Code).I32Const(handle))
		}
	}

	if a.WithDrop {
		m.Func(typeName+"#drop", []byte{I32}, nil, nil)
	}
	if a.BadDrop {
		m.Func(typeName+"#drop", nil, []byte{I32}, new(Code).I32Const(0))
	}

	if a.NoMethod {
		// keep the type visible through an unrelated member
		m.Func(typeName+"#Version", nil, []byte{I32}, new(Code).I32Const(1))
		return m.Encode()
	}

	a.method(m, typeName+"#"+method, logFn)
	return m.Encode()
}

func (a Analysis) allocator(m *Module, heap uint32) uint32 {
	if a.SimpleAlloc {
		// alloc(size) -> ptr
		return m.Func("alloc", []byte{I32}, []byte{I32}, bumpAlloc(heap, 0))
	}
	// cabi_realloc(old, old_size, align, size) -> ptr
	return m.Func("cabi_realloc", []byte{I32, I32, I32, I32}, []byte{I32}, bumpAlloc(heap, 3))
}

// bumpAlloc returns the current heap pointer and advances it by local sizeIdx
func bumpAlloc(heap, sizeIdx uint32) *Code {
	return new(Code).
		GlobalGet(heap).
		GlobalGet(heap).
		LocalGet(sizeIdx).
		I32Add().
		GlobalSet(heap)
}

func (a Analysis) method(m *Module, export string, logFn uint32) {
	if a.WrongSignature {
		m.Func(export, []byte{I32}, []byte{I32}, new(Code).I32Const(0))
		return
	}

	params := []byte(strings.Repeat(string([]byte{I32}), 11))
	var results []byte
	switch {
	case a.F64Result:
		results = []byte{F64}
	case !a.NoResult:
		results = []byte{I32}
	}

	c := new(Code)
	if a.LogMessage != "" {
		c.I32Const(a.LogLevel).I32Const(logOffset).I32Const(int32(len(a.LogMessage))).Call(logFn)
	}
	if a.Trap {
		c.Unreachable()
	}
	c.LocalGet(7).F64Const(a.FCov).F64Store()
	c.LocalGet(8).F64Const(a.Mean).F64Store()

	switch {
	case a.F64Result:
		c.F64Const(1.5)
	case a.NoResult:
	default:
		a.status(c)
	}

	m.Func(export, params, results, c)
}

func (a Analysis) status(c *Code) {
	switch a.Source {
	case StatusDSMLen:
		c.LocalGet(2)
	case StatusNDVILen:
		c.LocalGet(4)
	case StatusShapefileLen:
		c.LocalGet(6)
	case StatusAreaThreshold:
		c.LocalGet(10)
	case StatusDenoise:
		c.LocalGet(9)
	case StatusDSMFirstByte:
		c.LocalGet(1).I32Load8U()
	default:
		c.I32Const(a.Status)
	}
}
