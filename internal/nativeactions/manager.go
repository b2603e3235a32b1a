package nativeactions

import (
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

const (
	partitionAccount   = "account"
	partitionMetadata  = "account_metadata"
	partitionCodeByHash = "code_object"
)

var (
	ownerName  = name.MustParse("owner")
	activeName = name.MustParse("active")
	anyName    = name.MustParse("any")
)

// RAMDelta accumulates the net RAM byte change billed to each payer
// account over the course of one action; callers drain it into
// resource.Manager after the handler
// returns.
type RAMDelta map[name.Name]int64

func (r RAMDelta) add(account name.Name, delta int64) {
	r[account] += delta
}

// Manager is the C7 entry point bound to one write session: CRUD over
// Account/AccountMetadata/CodeObject plus the seven native handlers,
// each delegating permission/authority bookkeeping to authority.Manager
// and RAM quota verification to resource.Manager.
type Manager struct {
	sess    *store.Session
	auth    *authority.Manager
	res     *resource.Manager
	ram     RAMDelta
	accounts *store.Table[Account]
	metadata *store.Table[AccountMetadata]
	code     *store.Table[CodeObject]
}

func NewManager(sess *store.Session, auth *authority.Manager, res *resource.Manager) *Manager {
	accounts := store.NewTable[Account](sess, partitionAccount, func(a Account) uint64 { return a.Name.Uint64() }, ReadAccount, nil)
	metadata := store.NewTable[AccountMetadata](sess, partitionMetadata, func(a AccountMetadata) uint64 { return a.Name.Uint64() }, ReadAccountMetadata, nil)
	code := store.NewTable[CodeObject](sess, partitionCodeByHash, func(c CodeObject) uint64 { return c.ID }, ReadCodeObject, []store.IndexSpec[CodeObject]{
		{Name: "by_hash", Unique: true, Composite: func(c CodeObject) []byte { return append([]byte{}, c.CodeHash.Bytes()...) }},
	})
	return &Manager{sess: sess, auth: auth, res: res, ram: make(RAMDelta), accounts: accounts, metadata: metadata, code: code}
}

// RAMDeltas returns the accumulated per-account RAM deltas billed so
// far; callers apply them via resource.Manager.AddPendingRAMUsage and
// then clear by creating a fresh Manager per transaction.
func (m *Manager) RAMDeltas() RAMDelta { return m.ram }

// SetPrivileged flips account's privileged bit, mirroring
// account_metadata_object::set_privileged; only a privileged caller
// invokes this (the WASM host bridge's is_privileged/set_privileged
// intrinsics enforce that before reaching here).
func (m *Manager) SetPrivileged(account name.Name, privileged bool) error {
	current, err := m.GetMetadata(account)
	if err != nil {
		return err
	}
	updated := current
	updated.Privileged = privileged
	return m.metadata.Modify(current, updated)
}

// GetCodeByHash returns the deployed bytecode stored under hash, for
// the WASM host bridge to load when a receiver's AccountMetadata points
// at it.
func (m *Manager) GetCodeByHash(hash xcrypto.Id) ([]byte, bool, error) {
	obj, ok, err := m.code.FindBySecondary("by_hash", hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	return obj.Code, true, nil
}

func (m *Manager) GetAccount(acct name.Name) (Account, error)         { return m.accounts.Get(acct.Uint64()) }
func (m *Manager) FindAccount(acct name.Name) (Account, bool, error)  { return m.accounts.Find(acct.Uint64()) }
func (m *Manager) GetMetadata(acct name.Name) (AccountMetadata, error) {
	return m.metadata.Get(acct.Uint64())
}

// BumpRecvSequence increments acct's receive-sequence counter and
// returns the new value, mirroring `account_metadata_object::
// increment_recv_sequence` (called once per action an account
// receives).
func (m *Manager) BumpRecvSequence(acct name.Name) (uint64, error) {
	current, err := m.GetMetadata(acct)
	if err != nil {
		return 0, err
	}
	updated := current
	updated.RecvSequence++
	if err := m.metadata.Modify(current, updated); err != nil {
		return 0, err
	}
	return updated.RecvSequence, nil
}

// BumpAuthSequence increments actor's authorization-sequence counter
// and returns the new value, mirroring `account_metadata_object::
// increment_auth_sequence` (called once per actor that authorizes an
// action).
func (m *Manager) BumpAuthSequence(actor name.Name) (uint64, error) {
	current, err := m.GetMetadata(actor)
	if err != nil {
		return 0, err
	}
	updated := current
	updated.AuthSequence++
	if err := m.metadata.Modify(current, updated); err != nil {
		return 0, err
	}
	return updated.AuthSequence, nil
}

// CreateGenesisAccount inserts acct directly, bypassing the creator/
// privilege/duplicate checks NewAccount enforces for ordinary
// newaccount actions: genesis bootstrap has no pre-existing
// privileged creator to invoke newaccount through.
func (m *Manager) CreateGenesisAccount(acct name.Name, owner, active authority.Authority, privileged bool, blockSlot uint32) error {
	if err := m.accounts.Insert(Account{Name: acct, CreationDate: blockSlot}); err != nil {
		return err
	}
	if err := m.metadata.Insert(AccountMetadata{Name: acct, Privileged: privileged}); err != nil {
		return err
	}
	ownerPerm, err := m.auth.CreatePermission(acct, ownerName, 0, owner, blockSlot)
	if err != nil {
		return err
	}
	if _, err := m.auth.CreatePermission(acct, activeName, ownerPerm.ID, active, blockSlot); err != nil {
		return err
	}
	return m.res.InitializeAccount(acct)
}

// NewAccountParams mirrors the newaccount action payload.
type NewAccountParams struct {
	Creator name.Name
	Name    name.Name
	Owner   authority.Authority
	Active  authority.Authority
}

// NewAccount creates an account, its owner/active permissions, and
// initializes its resource limits
func (m *Manager) NewAccount(p NewAccountParams, blockSlot uint32) error {
	if !p.Owner.Validate() {
		return chainerr.New(chainerr.ActionValidation, "invalid owner authority")
	}
	if !p.Active.Validate() {
		return chainerr.New(chainerr.ActionValidation, "invalid active authority")
	}
	if p.Name.IsEmpty() {
		return chainerr.New(chainerr.ActionValidation, "account name cannot be empty")
	}
	if len(p.Name.String()) > 12 {
		return chainerr.New(chainerr.ActionValidation, "account names can only be 12 chars long")
	}

	creatorMeta, err := m.GetMetadata(p.Creator)
	if err != nil {
		return err
	}
	if !creatorMeta.IsPrivileged() && p.Name.HasPrefix("pulse.") {
		return chainerr.New(chainerr.ActionValidation, "only privileged accounts can have names that start with 'pulse.'")
	}
	if _, ok, err := m.FindAccount(p.Name); err != nil {
		return err
	} else if ok {
		return chainerr.New(chainerr.ActionValidation, "cannot create account named %s, as that name is already taken", p.Name)
	}

	if err := m.validateAuthorityPrecondition(p.Owner); err != nil {
		return err
	}
	if err := m.validateAuthorityPrecondition(p.Active); err != nil {
		return err
	}

	if err := m.accounts.Insert(Account{Name: p.Name, CreationDate: blockSlot}); err != nil {
		return err
	}
	if err := m.metadata.Insert(AccountMetadata{Name: p.Name, Privileged: false}); err != nil {
		return err
	}

	ownerPerm, err := m.auth.CreatePermission(p.Name, ownerName, 0, p.Owner, blockSlot)
	if err != nil {
		return err
	}
	activePerm, err := m.auth.CreatePermission(p.Name, activeName, ownerPerm.ID, p.Active, blockSlot)
	if err != nil {
		return err
	}

	if err := m.res.InitializeAccount(p.Name); err != nil {
		return err
	}

	ramDelta := int64(OverheadPerAccountRAMBytes) + 2*int64(PermissionBillableSize)
	ramDelta += billableAuthoritySize(ownerPerm.Auth)
	ramDelta += billableAuthoritySize(activePerm.Auth)
	m.ram.add(p.Creator, ramDelta)
	return nil
}

func billableAuthoritySize(a authority.Authority) int64 {
	var size int64
	for range a.Keys {
		size += 65 + 16
	}
	size += int64(len(a.Accounts)) * 24
	return size
}

// validateAuthorityPrecondition requires every delegated account in an
// authority to already exist, and every delegated permission to exist
// too, except owner/active/code, which are accepted without a
// permission lookup.
func (m *Manager) validateAuthorityPrecondition(a authority.Authority) error {
	codeName := name.MustParse("code")
	for _, acc := range a.Accounts {
		if _, err := m.GetAccount(acc.Permission.Actor); err != nil {
			return chainerr.Wrap(chainerr.ActionValidation, err, "account %s does not exist", acc.Permission.Actor)
		}
		if acc.Permission.Permission == ownerName || acc.Permission.Permission == activeName || acc.Permission.Permission == codeName {
			continue
		}
		if _, ok, err := m.auth.FindPermission(acc.Permission.Actor, acc.Permission.Permission); err != nil {
			return err
		} else if !ok {
			return chainerr.New(chainerr.ActionValidation, "permission %s@%s does not exist", acc.Permission.Actor, acc.Permission.Permission)
		}
	}
	return nil
}

// SetCodeParams mirrors the setcode action payload.
type SetCodeParams struct {
	Account   name.Name
	VMType    uint8
	VMVersion uint8
	Code      []byte
}

// SetCode installs (or clears) account's contract code, deduplicating
// identical code across accounts via a refcounted CodeObject.
func (m *Manager) SetCode(p SetCodeParams, blockSlot uint32) error {
	if p.VMType != 0 {
		return chainerr.New(chainerr.ActionValidation, "vm_type should be 0")
	}
	if p.VMVersion != 0 {
		return chainerr.New(chainerr.ActionValidation, "vm_version should be 0")
	}

	var codeHash xcrypto.Id
	codeSize := len(p.Code)
	if codeSize > 0 {
		codeHash = xcrypto.Sha256(p.Code)
	}

	meta, err := m.GetMetadata(p.Account)
	if err != nil {
		return err
	}
	existingCode := !meta.CodeHash.IsZero()
	if codeSize == 0 && !existingCode {
		return chainerr.New(chainerr.ActionValidation, "contract is already cleared")
	}

	var oldSize int64
	newSize := int64(codeSize) * SetcodeRAMBytesMultiplier

	if existingCode {
		oldEntry, ok, err := m.code.FindBySecondary("by_hash", meta.CodeHash.Bytes())
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.New(chainerr.Internal, "failed to find existing code object")
		}
		if oldEntry.CodeHash == codeHash {
			return chainerr.New(chainerr.ActionValidation, "contract is already running this version of code")
		}
		oldSize = int64(len(oldEntry.Code)) * SetcodeRAMBytesMultiplier
		if oldEntry.RefCount == 1 {
			if err := m.code.Remove(oldEntry); err != nil {
				return err
			}
		} else {
			updated := oldEntry
			updated.RefCount--
			if err := m.code.Modify(oldEntry, updated); err != nil {
				return err
			}
		}
	}

	if codeSize > 0 {
		newEntry, ok, err := m.code.FindBySecondary("by_hash", codeHash.Bytes())
		if err != nil {
			return err
		}
		if ok {
			updated := newEntry
			updated.RefCount++
			if err := m.code.Modify(newEntry, updated); err != nil {
				return err
			}
		} else {
			id, err := m.code.NextID()
			if err != nil {
				return err
			}
			if err := m.code.Insert(CodeObject{ID: id, CodeHash: codeHash, Code: p.Code, RefCount: 1, VMType: p.VMType, VMVersion: p.VMVersion}); err != nil {
				return err
			}
		}
	}

	updatedMeta := meta
	updatedMeta.CodeSequence++
	updatedMeta.CodeHash = codeHash
	updatedMeta.VMType = p.VMType
	updatedMeta.VMVersion = p.VMVersion
	updatedMeta.LastCodeUpdate = blockSlot
	if err := m.metadata.Modify(meta, updatedMeta); err != nil {
		return err
	}

	if newSize != oldSize {
		m.ram.add(p.Account, newSize-oldSize)
	}
	return nil
}

// SetABI replaces account's packed ABI. ABI JSON decoding/re-packing
// happens upstream in internal/abi — this takes the already-canonicalized
// binary form.
func (m *Manager) SetABI(account name.Name, packedABI []byte) error {
	acc, err := m.GetAccount(account)
	if err != nil {
		return err
	}
	oldSize := int64(len(acc.ABI))
	newSize := int64(len(packedABI))

	updated := acc
	updated.ABI = packedABI
	if err := m.accounts.Modify(acc, updated); err != nil {
		return err
	}

	meta, err := m.GetMetadata(account)
	if err != nil {
		return err
	}
	updatedMeta := meta
	updatedMeta.ABISequence++
	if err := m.metadata.Modify(meta, updatedMeta); err != nil {
		return err
	}

	if newSize != oldSize {
		m.ram.add(account, newSize-oldSize)
	}
	return nil
}

// UpdateAuthParams mirrors the updateauth action payload.
type UpdateAuthParams struct {
	Account    name.Name
	Permission name.Name
	Parent     name.Name
	Auth       authority.Authority
}

// UpdateAuth creates or replaces one of account's named permissions.
func (m *Manager) UpdateAuth(p UpdateAuthParams, blockSlot uint32) error {
	if p.Permission.IsEmpty() {
		return chainerr.New(chainerr.ActionValidation, "cannot create authority with empty name")
	}
	if p.Permission.HasPrefix("pulse.") {
		return chainerr.New(chainerr.ActionValidation, "permission names that start with 'pulse.' are reserved")
	}
	if p.Permission == p.Parent {
		return chainerr.New(chainerr.ActionValidation, "cannot set an authority as its own parent")
	}
	if _, err := m.GetAccount(p.Account); err != nil {
		return chainerr.Wrap(chainerr.ActionValidation, err, "failed to find account %s", p.Account)
	}
	if !p.Auth.Validate() {
		return chainerr.New(chainerr.ActionValidation, "invalid authority")
	}

	switch p.Permission {
	case activeName:
		if p.Parent != ownerName {
			return chainerr.New(chainerr.ActionValidation, "cannot change active authority's parent from owner")
		}
	case ownerName:
		if !p.Parent.IsEmpty() {
			return chainerr.New(chainerr.ActionValidation, "cannot change owner authority's parent")
		}
	default:
		if p.Parent.IsEmpty() {
			return chainerr.New(chainerr.ActionValidation, "only owner permission can have empty parent")
		}
	}

	if err := m.validateAuthorityPrecondition(p.Auth); err != nil {
		return err
	}

	existing, ok, err := m.auth.FindPermission(p.Account, p.Permission)
	if err != nil {
		return err
	}

	var parentID uint64
	if p.Permission != ownerName {
		parent, err := m.auth.GetPermission(p.Account, p.Parent)
		if err != nil {
			return err
		}
		parentID = parent.ID
	}

	if ok {
		if parentID != existing.Parent {
			return chainerr.New(chainerr.ActionValidation, "changing parent authority is not currently supported")
		}
		oldSize := int64(PermissionBillableSize) + billableAuthoritySize(existing.Auth)
		if err := m.auth.ModifyAuthority(existing, p.Auth, blockSlot); err != nil {
			return err
		}
		newSize := int64(PermissionBillableSize) + billableAuthoritySize(p.Auth)
		m.ram.add(existing.Owner, newSize-oldSize)
		return nil
	}

	created, err := m.auth.CreatePermission(p.Account, p.Permission, parentID, p.Auth, blockSlot)
	if err != nil {
		return err
	}
	newSize := int64(PermissionBillableSize) + billableAuthoritySize(created.Auth)
	m.ram.add(p.Account, newSize)
	return nil
}

// DeleteAuth removes a non-owner, non-active permission.
func (m *Manager) DeleteAuth(account, permission name.Name) error {
	if permission == activeName {
		return chainerr.New(chainerr.ActionValidation, "cannot delete active authority")
	}
	if permission == ownerName {
		return chainerr.New(chainerr.ActionValidation, "cannot delete owner authority")
	}

	perm, err := m.auth.GetPermission(account, permission)
	if err != nil {
		return err
	}
	if hasChildren, err := m.auth.HasChildren(perm); err != nil {
		return err
	} else if hasChildren {
		return chainerr.New(chainerr.ActionValidation, "cannot delete a permission that has child permissions")
	}

	oldSize := int64(PermissionBillableSize) + billableAuthoritySize(perm.Auth)
	if err := m.auth.RemovePermission(perm); err != nil {
		return err
	}
	m.ram.add(account, -oldSize)
	return nil
}

// LinkAuth creates or updates a PermissionLink
func (m *Manager) LinkAuth(account, code, messageType, requirement name.Name) error {
	if requirement.IsEmpty() {
		return chainerr.New(chainerr.ActionValidation, "required permission cannot be empty")
	}
	if _, err := m.GetAccount(account); err != nil {
		return chainerr.Wrap(chainerr.ActionValidation, err, "failed to find account %s", account)
	}
	if _, err := m.GetAccount(code); err != nil {
		return chainerr.Wrap(chainerr.ActionValidation, err, "failed to find code account %s", code)
	}
	if requirement != anyName {
		if _, ok, err := m.auth.FindPermission(account, requirement); err != nil {
			return err
		} else if !ok {
			return chainerr.New(chainerr.ActionValidation, "failed to retrieve permission %s", requirement)
		}
	}

	old, hadOld, err := m.auth.CreateLink(account, code, messageType, requirement)
	if err != nil {
		return err
	}
	if hadOld {
		if old.RequiredPermission == requirement {
			return chainerr.New(chainerr.ActionValidation, "attempting to update required authority, but new requirement is same as old")
		}
		return nil
	}
	m.ram.add(account, int64(PermissionLinkBillableSize))
	return nil
}

// UnlinkAuth removes a PermissionLink
func (m *Manager) UnlinkAuth(account, code, messageType name.Name) error {
	link, err := m.auth.RemoveLink(account, code, messageType)
	if err != nil {
		return err
	}
	m.ram.add(link.Actor, -int64(PermissionLinkBillableSize))
	return nil
}
