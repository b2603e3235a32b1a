package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/xcrypto"
	"github.com/tetratelabs/wazero/api"
)

func sha224(_ context.Context, mod api.Module, dataPtr, dataLen, outPtr uint32) {
	digest := xcrypto.Sha224(readMemory(guestMemory(mod), dataPtr, dataLen))
	writeMemory(guestMemory(mod), outPtr, digest[:])
}

func sha256Intrinsic(_ context.Context, mod api.Module, dataPtr, dataLen, outPtr uint32) {
	digest := xcrypto.Sha256(readMemory(guestMemory(mod), dataPtr, dataLen))
	writeMemory(guestMemory(mod), outPtr, digest.Bytes())
}

func sha512(_ context.Context, mod api.Module, dataPtr, dataLen, outPtr uint32) {
	digest := xcrypto.Sha512(readMemory(guestMemory(mod), dataPtr, dataLen))
	writeMemory(guestMemory(mod), outPtr, digest[:])
}
