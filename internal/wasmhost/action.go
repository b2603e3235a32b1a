package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

func actionDataSize(ctx context.Context, _ api.Module) uint32 {
	return uint32(len(applyContextFrom(ctx).Action().Data))
}

// readActionData mirrors read_action_data's size-probe convention: a
// zero bufferLen returns the action's full data length without
// touching memory, otherwise up to bufferLen bytes are copied and the
// number actually copied is returned.
func readActionData(ctx context.Context, mod api.Module, ptr, bufferLen uint32) uint32 {
	data := applyContextFrom(ctx).Action().Data
	if bufferLen == 0 {
		return uint32(len(data))
	}
	n := bufferLen
	if uint32(len(data)) < n {
		n = uint32(len(data))
	}
	writeMemory(guestMemory(mod), ptr, data[:n])
	return n
}

func currentReceiver(ctx context.Context, _ api.Module) uint64 {
	return applyContextFrom(ctx).Receiver().Uint64()
}

func setActionReturnValue(ctx context.Context, mod api.Module, ptr, length uint32) {
	applyContextFrom(ctx).SetActionReturnValue(readMemory(guestMemory(mod), ptr, length))
}
