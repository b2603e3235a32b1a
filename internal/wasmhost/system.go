package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/tetratelabs/wazero/api"
)

// pulseAssert traps with the guest-supplied message when condition is
// false, mirroring eosio_assert's contract: a failed assertion aborts
// the whole action, not just the call that raised it.
func pulseAssert(_ context.Context, mod api.Module, condition uint32, msgPtr, msgLen uint32) {
	if condition != 0 {
		return
	}
	msg := readMemory(guestMemory(mod), msgPtr, msgLen)
	fail(chainerr.ActionValidation, "assertion failed: %s", string(msg))
}

// currentTime returns the pending block's timestamp in microseconds
// since the Unix epoch: blocktime.Timestamp's Unix milliseconds times
// 1000.
func currentTime(ctx context.Context, _ api.Module) uint64 {
	return uint64(runtimeServicesFrom(ctx).timestamp.UnixMillis()) * 1000
}

// sendInline decodes a packed Action out of guest memory and schedules
// it to run immediately after the current action, as if the receiver
// itself had sent it.
func sendInline(ctx context.Context, mod api.Module, dataPtr, dataLen uint32) {
	raw := readMemory(guestMemory(mod), dataPtr, dataLen)
	act, err := action.ReadAction(codec.NewDecoder(raw))
	if err != nil {
		fail(chainerr.WasmRuntime, "send_inline: %v", err)
	}
	rt := runtimeServicesFrom(ctx)
	ac := applyContextFrom(ctx)
	if err := ac.ExecuteInline(rt.isAccount, act); err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
}
