package wasmhost

import (
	"context"

	"github.com/pulsevm/pulsevm/internal/apply"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/nativeactions"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
	"github.com/tetratelabs/wazero"
)

// applyContextKey is how the host functions in this package recover the
// apply.Context of the call they're running inside; wazero threads the
// context.Context passed to Call down into every host function it
// invokes.
type applyContextKey struct{}

func withApplyContext(ctx context.Context, ac *apply.Context) context.Context {
	return context.WithValue(ctx, applyContextKey{}, ac)
}

func applyContextFrom(ctx context.Context) *apply.Context {
	ac, _ := ctx.Value(applyContextKey{}).(*apply.Context)
	return ac
}

// runtimeServices is the slice of BoundRunner state intrinsics need
// beyond what apply.Context already tracks per-action: account
// existence, dry-run authorization checks, privileged gating, and
// resource-limit reads/writes.
type runtimeServices struct {
	native            *nativeactions.Manager
	res               *resource.Manager
	authMgr           *authority.Manager
	maxAuthorityDepth uint16
	timestamp         blocktime.Timestamp
}

type runtimeServicesKey struct{}

func withRuntimeServices(ctx context.Context, rt runtimeServices) context.Context {
	return context.WithValue(ctx, runtimeServicesKey{}, rt)
}

func runtimeServicesFrom(ctx context.Context) runtimeServices {
	rt, _ := ctx.Value(runtimeServicesKey{}).(runtimeServices)
	return rt
}

// isAccount reports whether acct exists, the same check
// apply.Context.ExecuteInline needs for the inline actions this
// package schedules via send_inline.
func (rt runtimeServices) isAccount(acct name.Name) bool {
	_, ok, err := rt.native.FindAccount(acct)
	return err == nil && ok
}

// trap is what a host intrinsic panics with to abort a contract call
// deterministically; BoundRunner.Run recovers it at the boundary and
// turns it back into an ordinary Go error rather than letting a guest's
// misbehavior propagate as an uncaught panic.
type trap struct{ err error }

func fail(kind chainerr.Kind, format string, args ...any) {
	panic(trap{err: chainerr.New(kind, format, args...)})
}

// BoundRunner is the per-transaction internal/txcontext.WasmRunner: it
// pairs the process-wide Engine (compiled-module cache) with the
// nativeactions/resource managers of the write session currently
// executing, so host intrinsics can resolve deployed code and read or
// adjust account-level state outside what apply.Context already tracks
// (privileged flag, resource limits).
type BoundRunner struct {
	engine            *Engine
	native            *nativeactions.Manager
	res               *resource.Manager
	authMgr           *authority.Manager
	maxAuthorityDepth uint16
	timestamp         blocktime.Timestamp
}

func NewBoundRunner(engine *Engine, native *nativeactions.Manager, res *resource.Manager, authMgr *authority.Manager, maxAuthorityDepth uint16, timestamp blocktime.Timestamp) *BoundRunner {
	return &BoundRunner{engine: engine, native: native, res: res, authMgr: authMgr, maxAuthorityDepth: maxAuthorityDepth, timestamp: timestamp}
}

// Run implements txcontext.WasmRunner: it fetches the receiver's
// deployed code, compiles it if this is the first time this process has
// seen that hash, instantiates a fresh module instance (contracts run
// stateless between calls, exactly like wasm_runtime.rs's per-run
// Store), and calls its exported "run" entry point with no arguments —
// the entry point reads everything it needs (action data, receiver,
// table rows) back out through the host intrinsics.
func (r *BoundRunner) Run(ac *apply.Context, codeHash [32]byte) (err error) {
	hash := xcrypto.Id(codeHash)
	code, ok, lookupErr := r.native.GetCodeByHash(hash)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		return chainerr.New(chainerr.WasmRuntime, "no code deployed for hash %s", hash)
	}

	ctx := context.Background()
	compiled, err := r.engine.moduleFor(ctx, hash, code)
	if err != nil {
		return err
	}

	ctx = withApplyContext(ctx, ac)
	ctx = withRuntimeServices(ctx, runtimeServices{native: r.native, res: r.res, authMgr: r.authMgr, maxAuthorityDepth: r.maxAuthorityDepth, timestamp: r.timestamp})
	modCfg := wazero.NewModuleConfig().WithName(r.engine.nextInstanceName(hash))
	mod, err := r.engine.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return chainerr.Wrap(chainerr.WasmRuntime, err, "instantiate contract %s for %s", hash, ac.Receiver())
	}
	defer mod.Close(ctx)

	run := mod.ExportedFunction("run")
	if run == nil {
		return chainerr.New(chainerr.WasmRuntime, "contract %s does not export run", hash)
	}

	defer func() {
		if rec := recover(); rec != nil {
			if t, ok := rec.(trap); ok {
				err = t.err
				return
			}
			err = chainerr.New(chainerr.WasmRuntime, "contract %s trapped: %v", hash, rec)
		}
	}()

	if _, callErr := run.Call(ctx); callErr != nil {
		return chainerr.Wrap(chainerr.WasmRuntime, callErr, "contract %s run failed", hash)
	}
	return nil
}
