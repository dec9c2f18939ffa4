// Package errors provides structured error types for the olive-bridge shim.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Kinds cover the whole boundary failure taxonomy: a missing component file,
// a missing type or method, a failed default construction, and a method that
// raised during execution.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindSignatureMismatch).
//		Symbol("OliveMatrixLib.OliveMatrixLibCore#RunAnalysis").
//		Component("/opt/olive/OliveMatrixLibCore.wasm").
//		Detail("want 11 params, got 9").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeNotFound(path, "OliveMatrixLib.OliveMatrixLibCore")
//	err := errors.MethodNotFound("OliveMatrixLib.OliveMatrixLibCore", "RunAnalysis")
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their Phase and Kind agree.
package errors
