package engine

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

const (
	CabiRealloc = "cabi_realloc"

	// Legacy names from pre-standardization component model implementations
	legacyRealloc = "canonical_abi_realloc"
	legacyAlloc   = "allocate"
	simpleAlloc   = "alloc"
)

// allocatorExports lists allocator export names in lookup order
var allocatorExports = []string{CabiRealloc, legacyRealloc, legacyAlloc, simpleAlloc}

// OutputAreaSize is the guest buffer holding the two f64 results (fcov, mean).
const OutputAreaSize = 16

// Signature is a WIT-level function shape checked against a core export.
type Signature struct {
	Params  []wit.Type
	Results []wit.Type
}

// AnalysisSignature is the shape of an analysis method export:
// self handle, three path strings, two output pointers, denoise flag,
// area threshold. An optional s32 status is allowed as result.
var AnalysisSignature = Signature{
	Params: []wit.Type{
		wit.U32{},    // self
		wit.String{}, // dsm
		wit.String{}, // ndvi
		wit.String{}, // shapefile
		wit.U32{},    // fcov out
		wit.U32{},    // mean out
		wit.Bool{},   // denoise
		wit.S32{},    // area threshold
	},
	Results: []wit.Type{wit.S32{}},
}

// ConstructorSignature is the shape of T#new.
var ConstructorSignature = Signature{Results: []wit.Type{wit.U32{}}}

// DropSignature is the shape of T#drop.
var DropSignature = Signature{Params: []wit.Type{wit.U32{}}}

// Flatten lowers WIT types to the core value types of a wasm function.
// Composite kinds other than records are not used by analysis exports and
// are rejected.
func Flatten(types []wit.Type) ([]api.ValueType, error) {
	var out []api.ValueType
	for _, t := range types {
		flat, err := flattenOne(t)
		if err != nil {
			return nil, err
		}
		out = append(out, flat...)
	}
	return out, nil
}

func flattenOne(t wit.Type) ([]api.ValueType, error) {
	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}, nil
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}, nil
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}, nil
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}, nil
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.Record:
			var out []api.ValueType
			for _, f := range kind.Fields {
				flat, err := flattenOne(f.Type)
				if err != nil {
					return nil, err
				}
				out = append(out, flat...)
			}
			return out, nil
		case *wit.List:
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
		case *wit.Enum, *wit.Flags:
			return []api.ValueType{api.ValueTypeI32}, nil
		}
	}
	return nil, fmt.Errorf("unsupported type %T", t)
}

// MatchParams reports whether def's parameters are exactly sig's flattened params.
func (sig Signature) MatchParams(def api.FunctionDefinition) (bool, error) {
	want, err := Flatten(sig.Params)
	if err != nil {
		return false, err
	}
	return equalValueTypes(want, def.ParamTypes()), nil
}

// MatchResults reports whether def's results are exactly sig's flattened results.
func (sig Signature) MatchResults(def api.FunctionDefinition) (bool, error) {
	want, err := Flatten(sig.Results)
	if err != nil {
		return false, err
	}
	return equalValueTypes(want, def.ResultTypes()), nil
}

// Match reports whether def has exactly sig's params and results.
func (sig Signature) Match(def api.FunctionDefinition) (bool, error) {
	ok, err := sig.MatchParams(def)
	if err != nil || !ok {
		return false, err
	}
	return sig.MatchResults(def)
}

// String renders the flattened core shape, e.g. "(i32) -> (i32)".
func (sig Signature) String() string {
	params, err := Flatten(sig.Params)
	if err != nil {
		return err.Error()
	}
	results, err := Flatten(sig.Results)
	if err != nil {
		return err.Error()
	}
	return FormatSignature(params, results)
}

// StatusResult reports whether def returns the analysis status.
// Any other result shape is treated as "no status".
func StatusResult(def api.FunctionDefinition) bool {
	ok, _ := AnalysisSignature.MatchResults(def)
	return ok
}

// FormatSignature renders a core function shape as "(i32, i32) -> (i32)".
func FormatSignature(params, results []api.ValueType) string {
	return FormatValueTypes(params) + " -> " + FormatValueTypes(results)
}

// FormatValueTypes renders core types as "(i32, i32)" for diagnostics.
func FormatValueTypes(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func equalValueTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
