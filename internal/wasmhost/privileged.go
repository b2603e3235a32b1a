package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/tetratelabs/wazero/api"
)

// requirePrivilegedCaller traps unless the action currently executing
// is running as a privileged account; set_privileged/set_resource_limits
// mutate chain-wide state no ordinary contract may touch.
func requirePrivilegedCaller(ctx context.Context) {
	if !applyContextFrom(ctx).IsPrivileged() {
		fail(chainerr.Authorization, "must be privileged to call this intrinsic")
	}
}

func isPrivileged(ctx context.Context, _ api.Module, account uint64) uint32 {
	meta, err := runtimeServicesFrom(ctx).native.GetMetadata(name.Name(account))
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	if meta.Privileged {
		return 1
	}
	return 0
}

func setPrivileged(ctx context.Context, _ api.Module, account uint64, isPriv uint32) {
	requirePrivilegedCaller(ctx)
	if err := runtimeServicesFrom(ctx).native.SetPrivileged(name.Name(account), isPriv != 0); err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
}

func getResourceLimits(ctx context.Context, mod api.Module, account uint64, ramPtr, netPtr, cpuPtr uint32) {
	ram, net, cpu, err := runtimeServicesFrom(ctx).res.GetAccountLimits(name.Name(account))
	if err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
	mem := guestMemory(mod)
	writeUint64(mem, ramPtr, uint64(ram))
	writeUint64(mem, netPtr, uint64(net))
	writeUint64(mem, cpuPtr, uint64(cpu))
}

func setResourceLimits(ctx context.Context, _ api.Module, account uint64, ramBytes, netWeight, cpuWeight uint64) {
	requirePrivilegedCaller(ctx)
	rt := runtimeServicesFrom(ctx)
	if _, err := rt.res.SetAccountLimits(name.Name(account), int64(ramBytes), int64(netWeight), int64(cpuWeight)); err != nil {
		fail(chainerr.WasmRuntime, "%v", err)
	}
}
