package authority

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

type cacheStatus int

const (
	beingEvaluated cacheStatus = iota
	permissionSatisfied
	permissionUnsatisfied
)

// Checker evaluates whether a set of recovered public keys satisfies a
// weighted threshold Authority, recursing through delegated permissions
// with cycle detection
type Checker struct {
	mgr      *Manager
	maxDepth uint16
	provided map[xcrypto.PublicKey]bool
	used     map[xcrypto.PublicKey]bool
	cache    map[PermissionLevel]cacheStatus
}

func NewChecker(mgr *Manager, maxDepth uint16, providedKeys []xcrypto.PublicKey) *Checker {
	provided := make(map[xcrypto.PublicKey]bool, len(providedKeys))
	for _, k := range providedKeys {
		provided[k] = true
	}
	return &Checker{
		mgr:      mgr,
		maxDepth: maxDepth,
		provided: provided,
		used:     make(map[xcrypto.PublicKey]bool),
		cache:    make(map[PermissionLevel]cacheStatus),
	}
}

// AllKeysUsed reports whether every provided key contributed weight to
// some satisfied authority — transactions bearing keys that never
// contributed are rejected.
func (c *Checker) AllKeysUsed() bool {
	if len(c.provided) != len(c.used) {
		return false
	}
	for k := range c.provided {
		if !c.used[k] {
			return false
		}
	}
	return true
}

// Satisfied evaluates auth at the given recursion depth, returning true
// once the accumulated weight reaches the threshold.
func (c *Checker) Satisfied(auth Authority, depth uint16) (bool, error) {
	var total uint32
	for _, k := range auth.Keys {
		if c.provided[k.Key] {
			c.used[k.Key] = true
			total += uint32(k.Weight)
		}
	}
	if total >= auth.Threshold {
		return true, nil
	}
	for _, pw := range auth.Accounts {
		w, err := c.visitPermissionLevelWeight(pw, depth)
		if err != nil {
			return false, err
		}
		total += uint32(w)
	}
	return total >= auth.Threshold, nil
}

func (c *Checker) visitPermissionLevelWeight(pw PermissionLevelWeight, depth uint16) (uint16, error) {
	if depth > c.maxDepth {
		return 0, chainerr.New(chainerr.Authorization, "authority recursion depth exceeded")
	}
	if status, ok := c.cache[pw.Permission]; ok {
		switch status {
		case beingEvaluated:
			return 0, chainerr.New(chainerr.Authorization, "permission cycle detected at %s@%s", pw.Permission.Actor, pw.Permission.Permission)
		case permissionSatisfied:
			return pw.Weight, nil
		default:
			return 0, nil
		}
	}

	perm, ok, err := c.mgr.FindPermission(pw.Permission.Actor, pw.Permission.Permission)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	c.cache[pw.Permission] = beingEvaluated
	ok2, err := c.Satisfied(perm.Auth, depth+1)
	if err != nil {
		return 0, err
	}
	if ok2 {
		c.cache[pw.Permission] = permissionSatisfied
		return pw.Weight, nil
	}
	c.cache[pw.Permission] = permissionUnsatisfied
	return 0, nil
}

// CheckAuthorization runs the full per-action satisfaction check for
// one declared permission against the set of keys recovered from a
// transaction's signatures: satisfied(actor@permission.Auth, 0).
func (c *Checker) CheckAuthorization(mgr *Manager, level PermissionLevel) (bool, error) {
	perm, err := mgr.GetPermission(level.Actor, level.Permission)
	if err != nil {
		return false, err
	}
	return c.Satisfied(perm.Auth, 0)
}
