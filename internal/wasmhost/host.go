package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// buildHostModule links every host intrinsic into the "env" import
// namespace every contract module is compiled against —
// wasm_runtime.rs's linker.func_wrap("env", ...) calls, generalized
// from the three it registered (require_auth/has_auth/require_auth2)
// to the full intrinsic surface.
func buildHostModule(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	return rt.NewHostModuleBuilder("env").
		// Action surface.
		NewFunctionBuilder().WithFunc(actionDataSize).Export("action_data_size").
		NewFunctionBuilder().WithFunc(readActionData).Export("read_action_data").
		NewFunctionBuilder().WithFunc(currentReceiver).Export("current_receiver").
		NewFunctionBuilder().WithFunc(setActionReturnValue).Export("set_action_return_value").
		// Authorization.
		NewFunctionBuilder().WithFunc(requireAuth).Export("require_auth").
		NewFunctionBuilder().WithFunc(requireAuth2).Export("require_auth2").
		NewFunctionBuilder().WithFunc(hasAuth).Export("has_auth").
		NewFunctionBuilder().WithFunc(requireRecipient).Export("require_recipient").
		NewFunctionBuilder().WithFunc(isAccount).Export("is_account").
		NewFunctionBuilder().WithFunc(checkTransactionAuthorization).Export("check_transaction_authorization").
		// Memory.
		NewFunctionBuilder().WithFunc(memcpy).Export("memcpy").
		NewFunctionBuilder().WithFunc(memmove).Export("memmove").
		NewFunctionBuilder().WithFunc(memcmp).Export("memcmp").
		NewFunctionBuilder().WithFunc(memset).Export("memset").
		// Tables.
		NewFunctionBuilder().WithFunc(dbStoreI64).Export("db_store_i64").
		NewFunctionBuilder().WithFunc(dbUpdateI64).Export("db_update_i64").
		NewFunctionBuilder().WithFunc(dbRemoveI64).Export("db_remove_i64").
		NewFunctionBuilder().WithFunc(dbGetI64).Export("db_get_i64").
		NewFunctionBuilder().WithFunc(dbNextI64).Export("db_next_i64").
		NewFunctionBuilder().WithFunc(dbPreviousI64).Export("db_previous_i64").
		NewFunctionBuilder().WithFunc(dbFindI64).Export("db_find_i64").
		NewFunctionBuilder().WithFunc(dbLowerboundI64).Export("db_lowerbound_i64").
		NewFunctionBuilder().WithFunc(dbUpperboundI64).Export("db_upperbound_i64").
		NewFunctionBuilder().WithFunc(dbEndI64).Export("db_end_i64").
		// System.
		NewFunctionBuilder().WithFunc(pulseAssert).Export("pulse_assert").
		NewFunctionBuilder().WithFunc(currentTime).Export("current_time").
		NewFunctionBuilder().WithFunc(sendInline).Export("send_inline").
		// Privileged.
		NewFunctionBuilder().WithFunc(isPrivileged).Export("is_privileged").
		NewFunctionBuilder().WithFunc(setPrivileged).Export("set_privileged").
		NewFunctionBuilder().WithFunc(getResourceLimits).Export("get_resource_limits").
		NewFunctionBuilder().WithFunc(setResourceLimits).Export("set_resource_limits").
		// Crypto.
		NewFunctionBuilder().WithFunc(sha224).Export("sha224").
		NewFunctionBuilder().WithFunc(sha256Intrinsic).Export("sha256").
		NewFunctionBuilder().WithFunc(sha512).Export("sha512").
		Instantiate(ctx)
}
