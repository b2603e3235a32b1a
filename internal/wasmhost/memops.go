package wasmhost

import (
	"bytes"
	"context"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/tetratelabs/wazero/api"
)

// memcpy implements the C memcpy contract: dest and src must not
// overlap. Overlap is a contract bug, so this traps rather than
// silently producing a garbled copy like a permissive implementation
// would.
func memcpy(_ context.Context, mod api.Module, dest, src, n uint32) uint32 {
	if rangesOverlap(dest, src, n) {
		fail(chainerr.WasmRuntime, "memcpy: overlapping ranges [%d,%d) and [%d,%d)", dest, dest+n, src, src+n)
	}
	mem := guestMemory(mod)
	writeMemory(mem, dest, readMemory(mem, src, n))
	return dest
}

// memmove is memcpy's overlap-safe sibling.
func memmove(_ context.Context, mod api.Module, dest, src, n uint32) uint32 {
	mem := guestMemory(mod)
	writeMemory(mem, dest, readMemory(mem, src, n))
	return dest
}

func memcmp(_ context.Context, mod api.Module, a, b, n uint32) uint32 {
	mem := guestMemory(mod)
	return uint32(clampSign(bytes.Compare(readMemory(mem, a, n), readMemory(mem, b, n))))
}

func memset(_ context.Context, mod api.Module, dest, value, n uint32) uint32 {
	buf := make([]byte, n)
	b := byte(value)
	for i := range buf {
		buf[i] = b
	}
	writeMemory(guestMemory(mod), dest, buf)
	return dest
}

func rangesOverlap(a, b, n uint32) bool {
	if n == 0 {
		return false
	}
	return a < b+n && b < a+n
}

// clampSign turns bytes.Compare's {-1,0,1} into the int32 bit pattern a
// WASM i32 return carries, sign-extended the way the guest's C runtime
// expects memcmp's result to be read.
func clampSign(cmp int) int32 {
	return int32(cmp)
}
