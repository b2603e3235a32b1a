package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
	"github.com/tetratelabs/wazero/api"
)

func requireAuth(ctx context.Context, _ api.Module, account uint64) {
	ac := applyContextFrom(ctx)
	if err := ac.RequireAuthorization(name.Name(account), name.Empty); err != nil {
		fail(chainerr.Authorization, "%v", err)
	}
}

func requireAuth2(ctx context.Context, _ api.Module, account, permission uint64) {
	ac := applyContextFrom(ctx)
	if err := ac.RequireAuthorization(name.Name(account), name.Name(permission)); err != nil {
		fail(chainerr.Authorization, "%v", err)
	}
}

func hasAuth(ctx context.Context, _ api.Module, account uint64) uint32 {
	if applyContextFrom(ctx).HasAuthorization(name.Name(account)) {
		return 1
	}
	return 0
}

func requireRecipient(ctx context.Context, _ api.Module, account uint64) {
	if err := applyContextFrom(ctx).RequireRecipient(name.Name(account)); err != nil {
		fail(chainerr.Authorization, "%v", err)
	}
}

func isAccount(ctx context.Context, _ api.Module, account uint64) uint32 {
	if runtimeServicesFrom(ctx).isAccount(name.Name(account)) {
		return 1
	}
	return 0
}

// checkTransactionAuthorization is this chain's own ABI for the
// intrinsic of the same name: a list of 16-byte (actor, permission)
// pairs followed by a list of 34-byte packed public keys, each decoded
// with the same wire format internal/authority and internal/xcrypto
// already use elsewhere. It reports whether every permission level is
// satisfied by the given keys, without mutating any used-key state (a
// pure dry run). The require_auth family uses no keys at all: it only
// checks the action's declared authorizations.
func checkTransactionAuthorization(ctx context.Context, mod api.Module, permsPtr, permsLen, keysPtr, keysLen uint32) uint32 {
	rt := runtimeServicesFrom(ctx)
	mem := guestMemory(mod)

	levels, err := decodePermissionLevels(readMemory(mem, permsPtr, permsLen))
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	keys, err := decodePublicKeys(readMemory(mem, keysPtr, keysLen))
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}

	checker := authority.NewChecker(rt.authMgr, rt.maxAuthorityDepth, keys)
	for _, level := range levels {
		ok, err := checker.CheckAuthorization(rt.authMgr, level)
		if err != nil || !ok {
			return 0
		}
	}
	return 1
}

// decodePermissionLevels reads a back-to-back run of PermissionLevel
// values off the same little-endian wire format internal/authority
// encodes them with elsewhere.
func decodePermissionLevels(raw []byte) ([]authority.PermissionLevel, error) {
	d := codec.NewDecoder(raw)
	var levels []authority.PermissionLevel
	for d.Remaining() > 0 {
		level, err := authority.ReadPermissionLevel(d)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// decodePublicKeys reads a back-to-back run of PublicKey values off the
// same wire format internal/xcrypto encodes them with elsewhere.
func decodePublicKeys(raw []byte) ([]xcrypto.PublicKey, error) {
	d := codec.NewDecoder(raw)
	var keys []xcrypto.PublicKey
	for d.Remaining() > 0 {
		key, err := xcrypto.ReadPublicKey(d)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
