package runtime

import (
	"context"

	"github.com/wippyai/olive-bridge/engine"
)

// Object is one constructed instance of a Type, backed by its own guest
// instance. It is NOT safe for concurrent use.
type Object struct {
	typ    *Type
	inst   *engine.WazeroInstance
	handle uint32
}

// Handle returns the guest object handle returned by the constructor
func (o *Object) Handle() uint32 {
	return o.handle
}

// Close drops the guest object if the type exports a destructor and
// releases the guest instance.
func (o *Object) Close(ctx context.Context) error {
	if o.inst == nil {
		return nil
	}

	var dropErr error
	if o.typ.hasDrop {
		_, dropErr = o.inst.Call(ctx, engine.ExportName(o.typ.name, engine.MemberDrop), uint64(o.handle))
	}

	closeErr := o.inst.Close(ctx)
	o.inst = nil
	if dropErr != nil {
		return dropErr
	}
	return closeErr
}
