package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HostModuleName is the import namespace of the diagnostics host module
const HostModuleName = "olive"

// Guest log levels accepted by olive.log
const (
	GuestLevelDebug int32 = iota
	GuestLevelInfo
	GuestLevelWarn
	GuestLevelError
)

// maxGuestLogLen bounds a single guest log message
const maxGuestLogLen = 4096

func instantiateHostModules(ctx context.Context, r wazero.Runtime, cfg Config) error {
	if !cfg.DisableWASI {
		builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
		wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate wasi: %w", err)
		}
	}

	_, err := r.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(guestLog),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		WithParameterNames("level", "ptr", "len").
		Export("log").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate %s host module: %w", HostModuleName, err)
	}
	return nil
}

// guestLog forwards olive.log(level, ptr, len) to the engine logger.
func guestLog(_ context.Context, mod api.Module, stack []uint64) {
	level := api.DecodeI32(stack[0])
	ptr := api.DecodeU32(stack[1])
	length := api.DecodeU32(stack[2])
	if length > maxGuestLogLen {
		length = maxGuestLogLen
	}

	mem := mod.Memory()
	if mem == nil {
		return
	}
	msg, ok := mem.Read(ptr, length)
	if !ok {
		Logger().Warn("guest log out of bounds", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return
	}

	if ce := Logger().Check(guestLevel(level), string(msg)); ce != nil {
		ce.Write(zap.String("source", "guest"))
	}
}

func guestLevel(level int32) zapcore.Level {
	switch level {
	case GuestLevelDebug:
		return zapcore.DebugLevel
	case GuestLevelInfo:
		return zapcore.InfoLevel
	case GuestLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
