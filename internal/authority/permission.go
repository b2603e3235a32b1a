package authority

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
)

// Permission is one named permission belonging to an account: a node in
// the per-account permission tree (owner -> active -> ... ), each
// carrying its own weighted Authority.
type Permission struct {
	ID          uint64
	Parent      uint64 // 0 means no parent (this is a root permission, i.e. "owner")
	Owner       name.Name
	Name        name.Name
	Auth        Authority
	LastUpdated uint32 // block timestamp slot of last modification
}

func (p Permission) NumBytes() int {
	return 8 + 8 + p.Owner.NumBytes() + p.Name.NumBytes() + p.Auth.NumBytes() + 4
}

func (p Permission) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(p.ID)
	e.WriteUint64(p.Parent)
	p.Owner.MarshalCodec(e)
	p.Name.MarshalCodec(e)
	p.Auth.MarshalCodec(e)
	e.WriteUint32(p.LastUpdated)
}

func ReadPermission(d *codec.Decoder) (Permission, error) {
	var p Permission
	var err error
	if p.ID, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.Parent, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.Owner, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Name, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Auth, err = ReadAuthority(d); err != nil {
		return p, err
	}
	if p.LastUpdated, err = d.ReadUint32(); err != nil {
		return p, err
	}
	return p, nil
}

func ownerNameComposite(owner, permName name.Name) []byte {
	b := make([]byte, 0, 16)
	v := owner.Uint64()
	b = append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	v = permName.Uint64()
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Link authorizes actor to act via required_permission (or an ancestor
// of it) when invoking code/messageType
// An empty MessageType means "applies to every action on code".
type Link struct {
	ID                  uint64
	Actor               name.Name
	Code                name.Name
	MessageType         name.Name
	RequiredPermission  name.Name
}

func (l Link) NumBytes() int {
	return 8 + l.Actor.NumBytes() + l.Code.NumBytes() + l.MessageType.NumBytes() + l.RequiredPermission.NumBytes()
}

func (l Link) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(l.ID)
	l.Actor.MarshalCodec(e)
	l.Code.MarshalCodec(e)
	l.MessageType.MarshalCodec(e)
	l.RequiredPermission.MarshalCodec(e)
}

func ReadLink(d *codec.Decoder) (Link, error) {
	var l Link
	var err error
	if l.ID, err = d.ReadUint64(); err != nil {
		return l, err
	}
	if l.Actor, err = name.ReadName(d); err != nil {
		return l, err
	}
	if l.Code, err = name.ReadName(d); err != nil {
		return l, err
	}
	if l.MessageType, err = name.ReadName(d); err != nil {
		return l, err
	}
	if l.RequiredPermission, err = name.ReadName(d); err != nil {
		return l, err
	}
	return l, nil
}

func linkComposite(actor, code, messageType name.Name) []byte {
	b := make([]byte, 0, 24)
	for _, n := range []name.Name{actor, code, messageType} {
		v := n.Uint64()
		b = append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return b
}

const (
	partitionPermission = "permission"
	partitionLink       = "permission_link"
)

// Manager is the C6 entry point bound to one write session: CRUD over
// Permission/Link rows and the recursive authority checker built on top
// of them.
type Manager struct {
	sess        *store.Session
	permissions *store.Table[Permission]
	links       *store.Table[Link]
}

func NewManager(sess *store.Session) *Manager {
	permTable := store.NewTable[Permission](sess, partitionPermission, func(p Permission) uint64 { return p.ID }, ReadPermission, []store.IndexSpec[Permission]{
		{Name: "by_owner", Unique: true, Composite: func(p Permission) []byte { return ownerNameComposite(p.Owner, p.Name) }},
	})
	linkTable := store.NewTable[Link](sess, partitionLink, func(l Link) uint64 { return l.ID }, ReadLink, []store.IndexSpec[Link]{
		{Name: "by_action_name", Unique: true, Composite: func(l Link) []byte { return linkComposite(l.Actor, l.Code, l.MessageType) }},
	})
	return &Manager{sess: sess, permissions: permTable, links: linkTable}
}

// CreatePermission inserts a new named permission for owner, parented
// under parentID (0 for a root permission like "owner").
func (m *Manager) CreatePermission(owner, permName name.Name, parentID uint64, auth Authority, lastUpdated uint32) (Permission, error) {
	if _, ok, err := m.permissions.FindBySecondary("by_owner", ownerNameComposite(owner, permName)); err != nil {
		return Permission{}, err
	} else if ok {
		return Permission{}, chainerr.New(chainerr.ActionValidation, "permission %s@%s already exists", owner, permName)
	}
	id, err := m.permissions.NextID()
	if err != nil {
		return Permission{}, err
	}
	p := Permission{ID: id, Parent: parentID, Owner: owner, Name: permName, Auth: auth, LastUpdated: lastUpdated}
	if err := m.permissions.Insert(p); err != nil {
		return Permission{}, err
	}
	return p, nil
}

// GetPermission looks up a named permission, failing with NotFound if
// absent.
func (m *Manager) GetPermission(owner, permName name.Name) (Permission, error) {
	p, ok, err := m.permissions.FindBySecondary("by_owner", ownerNameComposite(owner, permName))
	if err != nil {
		return Permission{}, err
	}
	if !ok {
		return Permission{}, chainerr.New(chainerr.NotFound, "no permission %s@%s", owner, permName)
	}
	return p, nil
}

// FindPermission is GetPermission but reports absence via ok=false
// instead of an error.
func (m *Manager) FindPermission(owner, permName name.Name) (Permission, bool, error) {
	return m.permissions.FindBySecondary("by_owner", ownerNameComposite(owner, permName))
}

func (m *Manager) GetByID(id uint64) (Permission, error) {
	return m.permissions.Get(id)
}

// ModifyAuthority replaces a permission's Authority in place; its
// parent and name never change
func (m *Manager) ModifyAuthority(p Permission, newAuth Authority, lastUpdated uint32) error {
	updated := p
	updated.Auth = newAuth
	updated.LastUpdated = lastUpdated
	return m.permissions.Modify(p, updated)
}

// RemovePermission deletes a permission. Callers must first verify no
// PermissionLink targets it and no child permission references it.
func (m *Manager) RemovePermission(p Permission) error {
	return m.permissions.Remove(p)
}

// HasChildren reports whether any permission still lists p as its
// parent.
func (m *Manager) HasChildren(p Permission) (bool, error) {
	cur, err := m.permissions.PrimaryCursor(0, false)
	if err != nil {
		return false, err
	}
	defer cur.Close()
	for cur.Valid() {
		row, err := cur.Row()
		if err != nil {
			return false, err
		}
		if row.Parent == p.ID && row.ID != p.ID {
			return true, nil
		}
		cur.Next()
	}
	return false, nil
}

// IsAncestor reports whether candidateID is perm's id or one of its
// ancestors in the parent chain — the declared permission must be
// min_perm or an ancestor of it.
func (m *Manager) IsAncestor(perm Permission, candidateID uint64) (bool, error) {
	cur := perm
	for {
		if cur.ID == candidateID {
			return true, nil
		}
		if cur.Parent == 0 {
			return false, nil
		}
		next, err := m.permissions.Get(cur.Parent)
		if err != nil {
			return false, err
		}
		cur = next
	}
}

// CreateLink inserts or updates the PermissionLink for (actor, code,
// messageType). Returns the previous required permission, if any, so
// callers can refund/re-bill RAM.
func (m *Manager) CreateLink(actor, code, messageType, requiredPermission name.Name) (old Link, hadOld bool, err error) {
	existing, ok, err := m.links.FindBySecondary("by_action_name", linkComposite(actor, code, messageType))
	if err != nil {
		return Link{}, false, err
	}
	if ok {
		updated := existing
		updated.RequiredPermission = requiredPermission
		if err := m.links.Modify(existing, updated); err != nil {
			return Link{}, false, err
		}
		return existing, true, nil
	}
	id, err := m.links.NextID()
	if err != nil {
		return Link{}, false, err
	}
	l := Link{ID: id, Actor: actor, Code: code, MessageType: messageType, RequiredPermission: requiredPermission}
	if err := m.links.Insert(l); err != nil {
		return Link{}, false, err
	}
	return Link{}, false, nil
}

// RemoveLink deletes the PermissionLink for (actor, code, messageType),
// failing if none exists
func (m *Manager) RemoveLink(actor, code, messageType name.Name) (Link, error) {
	existing, ok, err := m.links.FindBySecondary("by_action_name", linkComposite(actor, code, messageType))
	if err != nil {
		return Link{}, err
	}
	if !ok {
		return Link{}, chainerr.New(chainerr.ActionValidation, "no permission link for %s/%s/%s", actor, code, messageType)
	}
	return existing, m.links.Remove(existing)
}

// LookupMinimumPermission resolves the minimum permission actor must
// declare to invoke code/messageType: an exact link, falling back to a
// wildcard (empty messageType) link, falling back to "active".
func (m *Manager) LookupMinimumPermission(actor, code, messageType name.Name) (name.Name, error) {
	if link, ok, err := m.links.FindBySecondary("by_action_name", linkComposite(actor, code, messageType)); err != nil {
		return name.Empty, err
	} else if ok {
		return link.RequiredPermission, nil
	}
	if link, ok, err := m.links.FindBySecondary("by_action_name", linkComposite(actor, code, name.Empty)); err != nil {
		return name.Empty, err
	} else if ok {
		return link.RequiredPermission, nil
	}
	return name.MustParse("active"), nil
}
