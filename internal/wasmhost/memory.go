package wasmhost

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/tetratelabs/wazero/api"
)

// readMemory copies length bytes out of the guest's linear memory at
// ptr, trapping on an out-of-bounds range rather than letting it
// silently clamp.
func readMemory(mem api.Memory, ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		fail(chainerr.WasmRuntime, "out of bounds memory read at %d+%d", ptr, length)
	}
	out := make([]byte, length)
	copy(out, view)
	return out
}

// writeMemory copies data into the guest's linear memory at ptr,
// trapping if it would run past the memory's bounds.
func writeMemory(mem api.Memory, ptr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	if !mem.Write(ptr, data) {
		fail(chainerr.WasmRuntime, "out of bounds memory write at %d+%d", ptr, len(data))
	}
}

// guestMemory fetches the calling module's linear memory, the one
// host intrinsics read request buffers from and write results into.
func guestMemory(mod api.Module) api.Memory {
	return mod.Memory()
}
