package runtime

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/engine"
	"github.com/wippyai/olive-bridge/errors"
)

// Type is a resolved entry type of a component.
// It is safe for concurrent use; every New creates a fresh guest instance.
type Type struct {
	module  *Module
	name    string
	hasDrop bool
}

// MethodInfo describes an exported method for listings
type MethodInfo struct {
	Name      string
	Params    string
	Results   string
	Matches   bool
	HasStatus bool
}

func (t *Type) Name() string {
	return t.name
}

// Module returns the component the type belongs to
func (t *Type) Module() *Module {
	return t.module
}

// New instantiates the component and constructs one object of this type.
func (t *Type) New(ctx context.Context) (olivebridge.Instance, error) {
	return t.construct(ctx)
}

func (t *Type) construct(ctx context.Context) (*Object, error) {
	ctor := engine.ExportName(t.name, engine.MemberNew)
	def, ok := t.module.wazeroModule.ExportedFunction(ctor)
	if !ok {
		return nil, errors.Instantiation(t.name, fmt.Errorf("constructor %s not exported", ctor))
	}
	if err := checkLifecycle(engine.ConstructorSignature, ctor, def); err != nil {
		return nil, err
	}

	inst, err := t.module.wazeroModule.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(t.name, err)
	}

	res, err := inst.Call(ctx, ctor)
	if err != nil {
		_ = inst.Close(ctx)
		return nil, errors.Instantiation(t.name, err)
	}
	if len(res) == 0 || api.DecodeU32(res[0]) == 0 {
		_ = inst.Close(ctx)
		return nil, errors.NoInstance(t.name)
	}

	t.module.runtime.logger.Debug("instance constructed",
		zap.String("type", t.name),
		zap.Uint32("handle", api.DecodeU32(res[0])))

	return &Object{
		typ:    t,
		inst:   inst,
		handle: api.DecodeU32(res[0]),
	}, nil
}

// Method resolves a method by name and checks its signature.
func (t *Type) Method(name string) (olivebridge.Method, error) {
	return t.method(name)
}

func (t *Type) method(name string) (*Method, error) {
	export := engine.ExportName(t.name, name)
	if engine.IsLifecycleMember(name) {
		return nil, errors.MethodNotFound(t.name, name)
	}
	def, ok := t.module.wazeroModule.ExportedFunction(export)
	if !ok {
		return nil, errors.MethodNotFound(t.name, name)
	}

	match, err := engine.AnalysisSignature.MatchParams(def)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindSignatureMismatch, err, "flatten signature")
	}
	if !match {
		want, _ := engine.Flatten(engine.AnalysisSignature.Params)
		return nil, errors.SignatureMismatch(export,
			engine.FormatValueTypes(want), engine.FormatValueTypes(def.ParamTypes()))
	}

	return &Method{
		typ:       t,
		name:      name,
		export:    export,
		hasStatus: engine.StatusResult(def),
	}, nil
}

// Methods lists the type's non-lifecycle members with their signatures
func (t *Type) Methods() []MethodInfo {
	members := engine.Members(t.module.wazeroModule.ExportNames(), t.name)
	out := make([]MethodInfo, 0, len(members))
	for _, name := range members {
		def, ok := t.module.wazeroModule.ExportedFunction(engine.ExportName(t.name, name))
		if !ok {
			continue
		}
		match, _ := engine.AnalysisSignature.MatchParams(def)
		out = append(out, MethodInfo{
			Name:      name,
			Params:    engine.FormatValueTypes(def.ParamTypes()),
			Results:   engine.FormatValueTypes(def.ResultTypes()),
			Matches:   match,
			HasStatus: engine.StatusResult(def),
		})
	}
	return out
}

var _ olivebridge.Type = (*Type)(nil)
