//go:build !cgo || noffi || windows

package native

import (
	"context"

	"go.uber.org/zap"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/errors"
)

// Supported reports whether this build can load shared libraries
const Supported = false

// Load - shared library loading disabled in this build
func (l *Loader) Load(_ context.Context, path, typeName string) (olivebridge.Type, error) {
	l.logger.Warn("native backend unavailable in this build", zap.String("library", path))
	return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
		Component(path).
		Path(typeName).
		Detail("native backend disabled in this build (use a cgo-enabled build without the noffi tag)").
		Build()
}

var _ olivebridge.Loader = (*Loader)(nil)
