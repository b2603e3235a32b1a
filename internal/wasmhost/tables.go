package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/tetratelabs/wazero/api"
)

func dbStoreI64(ctx context.Context, mod api.Module, scope, table, payer, id uint64, dataPtr, dataLen uint32) int32 {
	ac := applyContextFrom(ctx)
	data := readMemory(guestMemory(mod), dataPtr, dataLen)
	itr, err := ac.DBStore(name.Name(scope), name.Name(table), name.Name(payer), id, data)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	return itr
}

func dbUpdateI64(ctx context.Context, mod api.Module, iterator int32, payer uint64, dataPtr, dataLen uint32) {
	ac := applyContextFrom(ctx)
	data := readMemory(guestMemory(mod), dataPtr, dataLen)
	if err := ac.DBUpdate(iterator, name.Name(payer), data); err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
}

func dbRemoveI64(ctx context.Context, _ api.Module, iterator int32) {
	if err := applyContextFrom(ctx).DBRemove(iterator); err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
}

// dbGetI64 always reports the full row size, copying at most dataLen
// bytes to dataPtr — the size-probe convention that lets a contract
// call once with a zero buffer to learn how large an allocation it
// needs.
func dbGetI64(ctx context.Context, mod api.Module, iterator int32, dataPtr, dataLen uint32) uint32 {
	ac := applyContextFrom(ctx)
	value, err := ac.DBGet(iterator, 0)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	if dataLen > 0 {
		n := dataLen
		if uint32(len(value)) < n {
			n = uint32(len(value))
		}
		writeMemory(guestMemory(mod), dataPtr, value[:n])
	}
	return uint32(len(value))
}

func dbNextI64(ctx context.Context, mod api.Module, iterator int32, primaryPtr uint32) int32 {
	ac := applyContextFrom(ctx)
	next, primary, err := ac.DBNext(iterator)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	writeUint64(guestMemory(mod), primaryPtr, primary)
	return next
}

func dbPreviousI64(ctx context.Context, mod api.Module, iterator int32, primaryPtr uint32) int32 {
	ac := applyContextFrom(ctx)
	prev, primary, err := ac.DBPrevious(iterator)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	writeUint64(guestMemory(mod), primaryPtr, primary)
	return prev
}

func dbFindI64(ctx context.Context, _ api.Module, code, scope, table, id uint64) int32 {
	itr, err := applyContextFrom(ctx).DBFind(name.Name(code), name.Name(scope), name.Name(table), id)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	return itr
}

func dbLowerboundI64(ctx context.Context, _ api.Module, code, scope, table, id uint64) int32 {
	itr, err := applyContextFrom(ctx).DBLowerBound(name.Name(code), name.Name(scope), name.Name(table), id)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	return itr
}

func dbUpperboundI64(ctx context.Context, _ api.Module, code, scope, table, id uint64) int32 {
	itr, err := applyContextFrom(ctx).DBUpperBound(name.Name(code), name.Name(scope), name.Name(table), id)
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	return itr
}

func dbEndI64(ctx context.Context, _ api.Module, code, scope, table uint64) int32 {
	itr, err := applyContextFrom(ctx).DBEnd(name.Name(code), name.Name(scope), name.Name(table))
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	return itr
}

func writeUint64(mem api.Memory, ptr uint32, v uint64) {
	var b [8]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
	writeMemory(mem, ptr, b[:])
}
