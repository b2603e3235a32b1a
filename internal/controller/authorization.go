package controller

import (
	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

var (
	pulseName      = name.MustParse("pulse")
	activeName     = name.MustParse("active")
	anyName        = name.MustParse("any")
	updateauthName = name.MustParse("updateauth")
	deleteauthName = name.MustParse("deleteauth")
	linkauthName   = name.MustParse("linkauth")
	unlinkauthName = name.MustParse("unlinkauth")
)

// CheckAuthorization verifies that trxActions, declared with the given
// recovered keys, is authorized to run: every action either satisfies a
// permission-management special case (updateauth/deleteauth/linkauth/
// unlinkauth) or declares at least its minimum linked permission, and
// every permission named is satisfied by the recovered keys with no
// unused key left over.
func CheckAuthorization(auth *authority.Manager, trxActions []action.Action, recoveredKeys []xcrypto.PublicKey, maxAuthorityDepth uint16) error {
	toSatisfy := make(map[authority.PermissionLevel]struct{})

	for _, act := range trxActions {
		if len(act.Authorization) == 0 {
			return chainerr.New(chainerr.Authorization, "action %s::%s declares no authorization", act.Account, act.Name)
		}

		isNative := act.Account == pulseName
		var err error
		switch {
		case isNative && act.Name == updateauthName:
			err = checkUpdateAuthAuthorization(auth, act)
		case isNative && act.Name == deleteauthName:
			err = checkDeleteAuthAuthorization(auth, act)
		case isNative && act.Name == linkauthName:
			err = checkLinkAuthAuthorization(auth, act)
		case isNative && act.Name == unlinkauthName:
			err = checkUnlinkAuthAuthorization(auth, act)
		default:
			err = checkGeneralAuthorization(auth, act)
		}
		if err != nil {
			return err
		}

		for _, level := range act.Authorization {
			toSatisfy[level] = struct{}{}
		}
	}

	checker := authority.NewChecker(auth, maxAuthorityDepth, recoveredKeys)
	for level := range toSatisfy {
		ok, err := checker.CheckAuthorization(auth, level)
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.New(chainerr.Authorization, "authorization of %s@%s is not satisfied by the provided keys", level.Actor, level.Permission)
		}
	}
	if !checker.AllKeysUsed() {
		return chainerr.New(chainerr.Authorization, "transaction bears a key that was never required")
	}
	return nil
}

// singleActor requires act to declare exactly one authorization, whose
// actor is actor (the permission-management native actions all require
// this shape, since they only ever speak for the account they modify).
func singleActor(act action.Action, actor name.Name) (authority.PermissionLevel, error) {
	if len(act.Authorization) != 1 {
		return authority.PermissionLevel{}, chainerr.New(chainerr.Authorization, "%s::%s must be authorized by exactly one permission level", act.Account, act.Name)
	}
	level := act.Authorization[0]
	if level.Actor != actor {
		return authority.PermissionLevel{}, chainerr.New(chainerr.Authorization, "%s::%s must be authorized by %s, not %s", act.Account, act.Name, actor, level.Actor)
	}
	return level, nil
}

func checkUpdateAuthAuthorization(auth *authority.Manager, act action.Action) error {
	account, permission, parent, _, err := decodeUpdateAuth(act.Data)
	if err != nil {
		return err
	}
	level, err := singleActor(act, account)
	if err != nil {
		return err
	}

	// Replacing an existing permission must satisfy that permission
	// itself; creating a new one must satisfy its declared parent.
	minPermission := parent
	if _, ok, err := auth.FindPermission(account, permission); err != nil {
		return err
	} else if ok {
		minPermission = permission
	}

	return assertSatisfiesMinimum(auth, level, account, minPermission)
}

func checkDeleteAuthAuthorization(auth *authority.Manager, act action.Action) error {
	account, permission, err := decodeDeleteAuth(act.Data)
	if err != nil {
		return err
	}
	level, err := singleActor(act, account)
	if err != nil {
		return err
	}
	return assertSatisfiesMinimum(auth, level, account, permission)
}

func checkLinkAuthAuthorization(auth *authority.Manager, act action.Action) error {
	account, code, messageType, _, err := decodeLinkAuth(act.Data)
	if err != nil {
		return err
	}
	level, err := singleActor(act, account)
	if err != nil {
		return err
	}
	return assertLinkableMinimum(auth, level, account, code, messageType)
}

func checkUnlinkAuthAuthorization(auth *authority.Manager, act action.Action) error {
	account, code, messageType, err := decodeUnlinkAuth(act.Data)
	if err != nil {
		return err
	}
	level, err := singleActor(act, account)
	if err != nil {
		return err
	}
	required, err := auth.LookupMinimumPermission(account, code, messageType)
	if err != nil {
		return err
	}
	if required == anyName {
		return nil
	}
	return assertSatisfiesMinimum(auth, level, account, required)
}

// checkGeneralAuthorization covers every action besides the four
// permission-management natives: the declared permission must satisfy
// the minimum permission linked for (actor, code, action name), falling
// back to "active", with "any" meaning no minimum at all.
func checkGeneralAuthorization(auth *authority.Manager, act action.Action) error {
	for _, level := range act.Authorization {
		required, err := lookupMinimumPermission(auth, level.Actor, act.Account, act.Name)
		if err != nil {
			return err
		}
		if required == anyName {
			continue
		}
		if err := assertSatisfiesMinimum(auth, level, level.Actor, required); err != nil {
			return err
		}
	}
	return nil
}

// lookupMinimumPermission rejects lookups that target the four
// permission-management natives directly (callers must special-case
// those themselves) before delegating to the authority manager's link
// resolution.
func lookupMinimumPermission(auth *authority.Manager, actor, code, actionName name.Name) (name.Name, error) {
	if code == pulseName && (actionName == updateauthName || actionName == deleteauthName || actionName == linkauthName || actionName == unlinkauthName) {
		return name.Name(0), chainerr.New(chainerr.Internal, "permission-management actions must be checked via their dedicated special case")
	}
	return auth.LookupMinimumPermission(actor, code, actionName)
}

// assertLinkableMinimum is linkauth's own lookup: it refuses to link
// any of the four permission-management natives to a required
// permission (those can never be delegated), then otherwise behaves
// like assertSatisfiesMinimum against whatever is currently linked.
func assertLinkableMinimum(auth *authority.Manager, level authority.PermissionLevel, account, code, messageType name.Name) error {
	if code == pulseName && (messageType == updateauthName || messageType == deleteauthName || messageType == linkauthName || messageType == unlinkauthName) {
		return chainerr.New(chainerr.Authorization, "cannot link a minimum permission to the %s native action", messageType)
	}
	required, err := auth.LookupMinimumPermission(account, code, messageType)
	if err != nil {
		return err
	}
	if required == anyName {
		return nil
	}
	return assertSatisfiesMinimum(auth, level, account, required)
}

// assertSatisfiesMinimum requires level's permission to be minPermission
// or one of its ancestors in account's permission tree.
func assertSatisfiesMinimum(auth *authority.Manager, level authority.PermissionLevel, account, minPermission name.Name) error {
	declared, err := auth.GetPermission(account, level.Permission)
	if err != nil {
		return err
	}
	min, err := auth.GetPermission(account, minPermission)
	if err != nil {
		return err
	}
	ok, err := auth.IsAncestor(declared, min.ID)
	if err != nil {
		return err
	}
	if !ok {
		return chainerr.New(chainerr.Authorization, "%s@%s does not satisfy minimum permission %s@%s", account, level.Permission, account, minPermission)
	}
	return nil
}

func decodeUpdateAuth(data []byte) (account, permission, parent name.Name, auth authority.Authority, err error) {
	d := codec.NewDecoder(data)
	if account, err = name.ReadName(d); err != nil {
		return
	}
	if permission, err = name.ReadName(d); err != nil {
		return
	}
	if parent, err = name.ReadName(d); err != nil {
		return
	}
	auth, err = authority.ReadAuthority(d)
	return
}

func decodeDeleteAuth(data []byte) (account, permission name.Name, err error) {
	d := codec.NewDecoder(data)
	if account, err = name.ReadName(d); err != nil {
		return
	}
	permission, err = name.ReadName(d)
	return
}

func decodeLinkAuth(data []byte) (account, code, messageType, requirement name.Name, err error) {
	d := codec.NewDecoder(data)
	if account, err = name.ReadName(d); err != nil {
		return
	}
	if code, err = name.ReadName(d); err != nil {
		return
	}
	if messageType, err = name.ReadName(d); err != nil {
		return
	}
	requirement, err = name.ReadName(d)
	return
}

func decodeUnlinkAuth(data []byte) (account, code, messageType name.Name, err error) {
	d := codec.NewDecoder(data)
	if account, err = name.ReadName(d); err != nil {
		return
	}
	if code, err = name.ReadName(d); err != nil {
		return
	}
	messageType, err = name.ReadName(d)
	return
}
