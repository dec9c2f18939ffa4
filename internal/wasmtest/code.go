package wasmtest

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// Code assembles a function body
type Code struct {
	body []byte
}

func (c *Code) op(op wasm.Opcode, imm ...byte) *Code {
	c.body = append(c.body, op)
	c.body = append(c.body, imm...)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(wasm.OpcodeUnreachable) }

func (c *Code) I32Add() *Code { return c.op(wasm.OpcodeI32Add) }

func (c *Code) LocalGet(idx uint32) *Code {
	return c.op(wasm.OpcodeLocalGet, leb128.EncodeUint32(idx)...)
}

func (c *Code) GlobalGet(idx uint32) *Code {
	return c.op(wasm.OpcodeGlobalGet, leb128.EncodeUint32(idx)...)
}

func (c *Code) GlobalSet(idx uint32) *Code {
	return c.op(wasm.OpcodeGlobalSet, leb128.EncodeUint32(idx)...)
}

func (c *Code) Call(idx uint32) *Code {
	return c.op(wasm.OpcodeCall, leb128.EncodeUint32(idx)...)
}

func (c *Code) I32Const(v int32) *Code {
	return c.op(wasm.OpcodeI32Const, leb128.EncodeInt32(v)...)
}

func (c *Code) F64Const(v float64) *Code {
	return c.op(wasm.OpcodeF64Const, binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))...)
}

// F64Store stores with natural alignment (2^3) at offset 0
func (c *Code) F64Store() *Code { return c.op(wasm.OpcodeF64Store, 0x03, 0x00) }

// I32Load8U loads one byte at offset 0
func (c *Code) I32Load8U() *Code { return c.op(wasm.OpcodeI32Load8U, 0x00, 0x00) }

// Bytes returns the body terminated by end
func (c *Code) Bytes() []byte {
	if c == nil {
		return []byte{wasm.OpcodeEnd}
	}
	return append(append([]byte(nil), c.body...), wasm.OpcodeEnd)
}
