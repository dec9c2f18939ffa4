package runtime

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/engine"
	"github.com/wippyai/olive-bridge/errors"
)

// Method is a resolved analysis method of a Type
type Method struct {
	typ       *Type
	name      string
	export    string
	hasStatus bool
}

func (m *Method) Name() string {
	return m.name
}

// HasStatus reports whether the method returns an integer status
func (m *Method) HasStatus() bool {
	return m.hasStatus
}

// Invoke runs the analysis on inst, which must come from the same Type.
// Both outputs start at 0.0 and are read back after the call.
func (m *Method) Invoke(ctx context.Context, inst olivebridge.Instance, req olivebridge.Request) (olivebridge.Outcome, error) {
	obj, ok := inst.(*Object)
	if !ok || obj == nil {
		return olivebridge.Outcome{}, errors.InvalidInput(errors.PhaseInvoke, fmt.Sprintf("instance %T is not a wasm object", inst))
	}
	if obj.typ != m.typ {
		return olivebridge.Outcome{}, errors.InvalidInput(errors.PhaseInvoke, "instance belongs to a different type")
	}
	if obj.inst == nil {
		return olivebridge.Outcome{}, errors.NotInitialized(errors.PhaseInvoke, "instance")
	}

	wi := obj.inst
	mem := wi.Memory()
	if mem == nil {
		return olivebridge.Outcome{}, errors.NotInitialized(errors.PhaseMarshal, "memory")
	}

	params := make([]uint64, 0, 11)
	params = append(params, uint64(obj.handle))
	for _, s := range []string{req.DSMPath, req.NDVIPath, req.ShapefilePath} {
		ptr, length, err := wi.WriteString(ctx, s)
		if err != nil {
			return olivebridge.Outcome{}, errors.AllocationFailed(uint32(len(s)), 1, err)
		}
		params = append(params, uint64(ptr), uint64(length))
	}

	out, err := wi.Allocator(ctx).Alloc(engine.OutputAreaSize, 8)
	if err != nil {
		return olivebridge.Outcome{}, errors.AllocationFailed(engine.OutputAreaSize, 8, err)
	}
	if err := mem.Write(out, make([]byte, engine.OutputAreaSize)); err != nil {
		return olivebridge.Outcome{}, errors.OutOfBounds(errors.PhaseMarshal, out, engine.OutputAreaSize)
	}

	var denoise uint64
	if req.Denoise {
		denoise = 1
	}
	params = append(params, uint64(out), uint64(out+8), denoise, api.EncodeI32(req.AreaThreshold))

	m.typ.module.runtime.logger.Debug("invoking method",
		zap.String("export", m.export),
		zap.Uint32("handle", obj.handle))

	res, err := wi.Call(ctx, m.export, params...)
	if err != nil {
		return olivebridge.Outcome{}, errors.Invocation(m.typ.name, m.name, err)
	}

	fcov, err := mem.ReadU64(out)
	if err != nil {
		return olivebridge.Outcome{}, errors.OutOfBounds(errors.PhaseMarshal, out, 8)
	}
	mean, err := mem.ReadU64(out + 8)
	if err != nil {
		return olivebridge.Outcome{}, errors.OutOfBounds(errors.PhaseMarshal, out+8, 8)
	}

	outcome := olivebridge.Outcome{
		FCov:     math.Float64frombits(fcov),
		MeanNDVI: math.Float64frombits(mean),
	}
	if m.hasStatus && len(res) == 1 {
		outcome.Status = api.DecodeI32(res[0])
		outcome.HasStatus = true
	}
	return outcome, nil
}

var _ olivebridge.Method = (*Method)(nil)
