package runtime

import (
	"context"
	"slices"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/olive-bridge/engine"
	"github.com/wippyai/olive-bridge/errors"
)

// Module is a compiled analysis component
type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
	name         string
}

// Name returns the path or label the module was loaded from
func (m *Module) Name() string {
	return m.name
}

// Types returns the names of all types exported by the component
func (m *Module) Types() []string {
	return engine.TypeNames(m.wazeroModule.ExportNames())
}

// Type resolves a type by its fully-qualified name
func (m *Module) Type(name string) (*Type, error) {
	if !slices.Contains(m.Types(), name) {
		return nil, errors.TypeNotFound(m.name, name)
	}

	drop := engine.ExportName(name, engine.MemberDrop)
	def, hasDrop := m.wazeroModule.ExportedFunction(drop)
	if hasDrop {
		if err := checkLifecycle(engine.DropSignature, drop, def); err != nil {
			return nil, err
		}
	}
	return &Type{
		module:  m,
		name:    name,
		hasDrop: hasDrop,
	}, nil
}

// checkLifecycle rejects a lifecycle export whose core shape is not sig
func checkLifecycle(sig engine.Signature, export string, def api.FunctionDefinition) error {
	ok, err := sig.Match(def)
	if err != nil {
		return errors.Wrap(errors.PhaseResolve, errors.KindSignatureMismatch, err, "flatten signature")
	}
	if !ok {
		return errors.SignatureMismatch(export, sig.String(),
			engine.FormatSignature(def.ParamTypes(), def.ResultTypes()))
	}
	return nil
}

func (m *Module) Close(ctx context.Context) error {
	return m.wazeroModule.Close(ctx)
}
