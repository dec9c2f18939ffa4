package olivebridge

import "context"

// Default names of the external analysis component.
const (
	DefaultTypeName   = "OliveMatrixLib.OliveMatrixLibCore"
	DefaultMethodName = "RunAnalysis"
)

// Request is a single analysis request decoded from the native caller.
// Empty paths are valid and passed to the component unchanged.
type Request struct {
	DSMPath       string
	NDVIPath      string
	ShapefilePath string
	AreaThreshold int32
	Denoise       bool
}

// Outcome is what the analysis method produced.
// HasStatus is false when the method returned no integer result; the
// boundary reports status 0 in that case.
type Outcome struct {
	FCov      float64
	MeanNDVI  float64
	Status    int32
	HasStatus bool
}

// Loader opens a component file and resolves a fully-qualified type in it.
type Loader interface {
	Load(ctx context.Context, path, typeName string) (Type, error)
}

// Type is a resolved, default-constructible entry type.
// Implementations are safe for concurrent use.
type Type interface {
	Name() string
	New(ctx context.Context) (Instance, error)
	Method(name string) (Method, error)
}

// Instance is one constructed object of a Type.
// It is used by a single call and closed afterwards.
type Instance interface {
	Close(ctx context.Context) error
}

// Method is a resolved analysis method bound to a Type.
type Method interface {
	Name() string
	Invoke(ctx context.Context, inst Instance, req Request) (Outcome, error)
}
