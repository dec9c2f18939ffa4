package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the call the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // shim configuration
	PhaseLoad        Phase = "load"        // component discovery and loading
	PhaseResolve     Phase = "resolve"     // type and method lookup
	PhaseInstantiate Phase = "instantiate" // default construction
	PhaseInvoke      Phase = "invoke"      // method execution
	PhaseMarshal     Phase = "marshal"     // argument and result transfer
)

// Kind categorizes the error
type Kind string

const (
	KindComponentNotFound Kind = "component_not_found"
	KindTypeNotFound      Kind = "type_not_found"
	KindMethodNotFound    Kind = "method_not_found"
	KindInstantiation     Kind = "instantiation"
	KindInvocation        Kind = "invocation"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindNotInitialized    Kind = "not_initialized"
	KindUnsupported       Kind = "unsupported"
	KindPanic             Kind = "panic"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Component string
	Symbol    string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Symbol != "" {
		b.WriteString(": symbol ")
		b.WriteString(e.Symbol)
	}

	if e.Component != "" {
		if e.Symbol != "" {
			b.WriteString(" in ")
		} else {
			b.WriteString(": component ")
		}
		b.WriteString(e.Component)
	}

	if e.Detail != "" {
		if e.Symbol != "" || e.Component != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the symbol path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Component sets the component file
func (b *Builder) Component(path string) *Builder {
	b.err.Component = path
	return b
}

// Symbol sets the exported symbol name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the boundary failure taxonomy

// ComponentNotFound creates an error for a component file absent at path
func ComponentNotFound(path string, cause error) *Error {
	return &Error{
		Phase:     PhaseLoad,
		Kind:      KindComponentNotFound,
		Component: path,
		Detail:    "component file not found",
		Cause:     cause,
	}
}

// TypeNotFound creates an error for a named type absent from a loaded component
func TypeNotFound(component, typeName string) *Error {
	return &Error{
		Phase:     PhaseResolve,
		Kind:      KindTypeNotFound,
		Component: component,
		Path:      []string{typeName},
		Detail:    fmt.Sprintf("type %q not found", typeName),
	}
}

// MethodNotFound creates an error for a named method absent on a resolved type
func MethodNotFound(typeName, method string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMethodNotFound,
		Path:   []string{typeName, method},
		Detail: fmt.Sprintf("method %q not found", method),
	}
}

// Instantiation creates a default-construction failure error
func Instantiation(typeName string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Path:   []string{typeName},
		Detail: "construct instance",
		Cause:  cause,
	}
}

// NoInstance creates an error for a constructor that produced no usable instance
func NoInstance(typeName string) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Path:   []string{typeName},
		Detail: "constructor returned no instance",
	}
}

// Invocation creates an error for a method that failed during execution
func Invocation(typeName, method string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindInvocation,
		Path:   []string{typeName, method},
		Detail: "method raised during execution",
		Cause:  cause,
	}
}

// SignatureMismatch creates an error for an export whose signature differs from the expected one
func SignatureMismatch(symbol, want, got string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSignatureMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// Load creates a component loading error
func Load(path, detail string, cause error) *Error {
	return &Error{
		Phase:     PhaseLoad,
		Kind:      KindInvalidData,
		Component: path,
		Detail:    detail,
		Cause:     cause,
	}
}

// AllocationFailed creates a guest allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at offset %d length %d out of bounds", offset, length),
		Value:  offset,
	}
}

// NotInitialized creates a not-initialized error for a missing runtime piece
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Panic wraps a recovered panic value
func Panic(phase Phase, v any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Detail: fmt.Sprintf("recovered panic: %v", v),
		Value:  v,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
