package resource

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
)

const (
	partitionLimits = "resource_limits"
	partitionUsage  = "resource_usage"
	partitionConfig = "resource_limits_config"
	partitionState  = "resource_limits_state"
)

// Manager is bound to one write session: per-account RAM accounting and
// the elastic CPU/NET virtual-limit machinery.
type Manager struct {
	sess   *store.Session
	limits *store.Table[Limits]
	usage  *store.Table[Usage]
	config *store.Table[Config]
	state  *store.Table[State]
}

func NewManager(sess *store.Session) *Manager {
	limitsTable := store.NewTable[Limits](sess, partitionLimits, func(l Limits) uint64 { return l.ID }, ReadLimits, []store.IndexSpec[Limits]{
		{Name: "by_owner", Unique: true, Composite: func(l Limits) []byte { return ownerIndexComposite(l.Pending, l.Owner) }},
	})
	usageTable := store.NewTable[Usage](sess, partitionUsage, func(u Usage) uint64 { return u.Owner.Uint64() }, ReadUsage, nil)
	configTable := store.NewTable[Config](sess, partitionConfig, func(Config) uint64 { return 0 }, ReadConfig, nil)
	stateTable := store.NewTable[State](sess, partitionState, func(State) uint64 { return 0 }, ReadState, nil)
	return &Manager{sess: sess, limits: limitsTable, usage: usageTable, config: configTable, state: stateTable}
}

// InitializeDatabase inserts the singleton Config and State rows with
// the given elastic-limit defaults. Must run once, at genesis.
func (m *Manager) InitializeDatabase(cfg Config) error {
	if err := m.config.Insert(cfg); err != nil {
		return err
	}
	return m.state.Insert(State{
		VirtualCPULimit: cfg.CPULimitParameters.Target,
		VirtualNetLimit: cfg.NetLimitParameters.Target,
	})
}

// InitializeAccount inserts a zeroed current-limits row and a zeroed
// usage row for a newly created account.
func (m *Manager) InitializeAccount(account name.Name) error {
	id, err := m.limits.NextID()
	if err != nil {
		return err
	}
	if err := m.limits.Insert(Limits{ID: id, Pending: false, Owner: account}); err != nil {
		return err
	}
	return m.usage.Insert(Usage{Owner: account})
}

func (m *Manager) currentLimits(account name.Name) (Limits, error) {
	row, ok, err := m.limits.FindBySecondary("by_owner", ownerIndexComposite(false, account))
	if err != nil {
		return Limits{}, err
	}
	if !ok {
		return Limits{}, chainerr.New(chainerr.NotFound, "no resource limits for account %s", account)
	}
	return row, nil
}

// SetAccountLimits stages a pending change to account's weights/RAM
// quota; it only takes effect once ProcessAccountLimitUpdates runs at
// end-of-block. Returns true if ramBytes is non-negative and below the
// RAM quota it replaces (callers may want to re-verify usage
// immediately in that case); weight decreases are not reported.
func (m *Manager) SetAccountLimits(account name.Name, ramBytes, netWeight, cpuWeight int64) (decreased bool, err error) {
	current, err := m.currentLimits(account)
	if err != nil {
		return false, err
	}
	pending, ok, err := m.limits.FindBySecondary("by_owner", ownerIndexComposite(true, account))
	if err != nil {
		return false, err
	}
	if !ok {
		id, err := m.limits.NextID()
		if err != nil {
			return false, err
		}
		pending = Limits{ID: id, Pending: true, Owner: account, RAMBytes: current.RAMBytes, NetWeight: current.NetWeight, CPUWeight: current.CPUWeight}
		decreased = ramBytes >= 0 && ramBytes < current.RAMBytes
		pending.RAMBytes, pending.NetWeight, pending.CPUWeight = ramBytes, netWeight, cpuWeight
		return decreased, m.limits.Insert(pending)
	}
	decreased = ramBytes >= 0 && ramBytes < pending.RAMBytes
	updated := pending
	updated.RAMBytes, updated.NetWeight, updated.CPUWeight = ramBytes, netWeight, cpuWeight
	return decreased, m.limits.Modify(pending, updated)
}

// GetAccountLimits returns account's current (non-pending) weights.
func (m *Manager) GetAccountLimits(account name.Name) (ramBytes, netWeight, cpuWeight int64, err error) {
	l, err := m.currentLimits(account)
	if err != nil {
		return 0, 0, 0, err
	}
	return l.RAMBytes, l.NetWeight, l.CPUWeight, nil
}

// AddPendingRAMUsage adjusts account's billed RAM usage by delta,
// failing on underflow below zero.
func (m *Manager) AddPendingRAMUsage(account name.Name, delta int64) error {
	current, err := m.currentLimits(account)
	if err != nil {
		return err
	}
	if delta < 0 && current.RAMUsage < -delta {
		return chainerr.New(chainerr.Internal, "ram usage delta would underflow account %s", account)
	}
	updated := current
	updated.RAMUsage += delta
	return m.limits.Modify(current, updated)
}

// VerifyAccountRAMUsage fails if account's currently billed RAM usage
// exceeds its configured quota.
func (m *Manager) VerifyAccountRAMUsage(account name.Name) error {
	current, err := m.currentLimits(account)
	if err != nil {
		return err
	}
	if current.RAMBytes >= 0 && current.RAMUsage > current.RAMBytes {
		return chainerr.New(chainerr.ResourceExhausted, "account %s ram usage %d exceeds limit %d", account, current.RAMUsage, current.RAMBytes)
	}
	return nil
}

// ProcessAccountLimitUpdates runs at end-of-block: every pending row
// overwrites its current counterpart and is removed, adjusting the
// chain-wide totals in State.
func (m *Manager) ProcessAccountLimitUpdates() error {
	original, err := m.state.Get(0)
	if err != nil {
		return err
	}
	st := original
	applyDelta := func(total *uint64, value *int64, pendingValue int64) error {
		if *value > 0 {
			if *total < uint64(*value) {
				return chainerr.New(chainerr.Internal, "underflow when reverting old resource total")
			}
			*total -= uint64(*value)
		}
		if pendingValue > 0 {
			*total += uint64(pendingValue)
		}
		*value = pendingValue
		return nil
	}

	cur, err := m.limits.SecondaryCursorPrefix("by_owner", []byte{1}, false)
	if err != nil {
		return err
	}
	defer cur.Close()

	for cur.Valid() {
		pending, err := cur.Row()
		if err != nil {
			return err
		}
		if !pending.Pending {
			break
		}
		cur.Next()

		actual, err := m.currentLimits(pending.Owner)
		if err != nil {
			return err
		}
		updated := actual
		if err := applyDelta(&st.TotalRAMBytes, &updated.RAMBytes, pending.RAMBytes); err != nil {
			return err
		}
		if err := applyDelta(&st.TotalCPUWeight, &updated.CPUWeight, pending.CPUWeight); err != nil {
			return err
		}
		if err := applyDelta(&st.TotalNetWeight, &updated.NetWeight, pending.NetWeight); err != nil {
			return err
		}
		if err := m.limits.Modify(actual, updated); err != nil {
			return err
		}
		if err := m.limits.Remove(pending); err != nil {
			return err
		}
	}
	return m.state.Modify(original, st)
}

// AddTransactionUsage charges every billed account's CPU/NET
// accumulators for one transaction and fails deterministically if any
// account's windowed usage would exceed its share of the virtual limit.
func (m *Manager) AddTransactionUsage(accounts []name.Name, cpuUs, netBytes uint64, timeSlot uint32) error {
	cfg, err := m.config.Get(0)
	if err != nil {
		return err
	}
	st, err := m.state.Get(0)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		u, err := m.usage.Get(account.Uint64())
		if err != nil {
			return err
		}
		updated := u
		if err := updated.NetUsage.Add(netBytes, timeSlot, uint64(cfg.AccountNetUsageAverageWindow)); err != nil {
			return err
		}
		if err := updated.CPUUsage.Add(cpuUs, timeSlot, uint64(cfg.AccountCPUUsageAverageWindow)); err != nil {
			return err
		}

		l, err := m.currentLimits(account)
		if err != nil {
			return err
		}
		if l.NetWeight >= 0 && st.TotalNetWeight > 0 {
			if err := checkUserLimit(updated.NetUsage, uint64(l.NetWeight), st.TotalNetWeight, st.VirtualNetLimit, uint64(cfg.AccountNetUsageAverageWindow)); err != nil {
				return err
			}
		}
		if l.CPUWeight >= 0 && st.TotalCPUWeight > 0 {
			if err := checkUserLimit(updated.CPUUsage, uint64(l.CPUWeight), st.TotalCPUWeight, st.VirtualCPULimit, uint64(cfg.AccountCPUUsageAverageWindow)); err != nil {
				return err
			}
		}
		if err := m.usage.Modify(u, updated); err != nil {
			return err
		}
	}

	updatedState := st
	if err := updatedState.BlockCPUUsage.Add(cpuUs, timeSlot, uint64(cfg.CPULimitParameters.Periods)); err != nil {
		return err
	}
	if err := updatedState.BlockNetUsage.Add(netBytes, timeSlot, uint64(cfg.NetLimitParameters.Periods)); err != nil {
		return err
	}
	return m.state.Modify(st, updatedState)
}

func checkUserLimit(acc UsageAccumulator, weight, totalWeight, virtualLimit, windowSize uint64) error {
	capacity := windowSize * virtualLimit
	maxUseInWindow := (capacity * weight) / totalWeight
	usedInWindow := IntegerDivideCeil(acc.ValueEx*windowSize, RateLimitingPrecision)
	if usedInWindow > maxUseInWindow {
		return chainerr.New(chainerr.ResourceExhausted, "account resource usage %d exceeds its window allowance %d", usedInWindow, maxUseInWindow)
	}
	return nil
}

// UpdateVirtualLimits recomputes the chain-wide virtual CPU/NET limits
// at end-of-block from the accumulated block-level usage (the elastic
// limit update), run alongside ProcessAccountLimitUpdates.
func (m *Manager) UpdateVirtualLimits() error {
	cfg, err := m.config.Get(0)
	if err != nil {
		return err
	}
	st, err := m.state.Get(0)
	if err != nil {
		return err
	}
	updated := st
	updated.VirtualCPULimit, err = updateElasticLimit(st.VirtualCPULimit, st.BlockCPUUsage.Average(), cfg.CPULimitParameters)
	if err != nil {
		return err
	}
	updated.VirtualNetLimit, err = updateElasticLimit(st.VirtualNetLimit, st.BlockNetUsage.Average(), cfg.NetLimitParameters)
	if err != nil {
		return err
	}
	return m.state.Modify(st, updated)
}

// GetAccountNetLimit reports account's windowed NET usage, maximum, and
// available headroom, the query a get_account-style RPC exposes.
func (m *Manager) GetAccountNetLimit(account name.Name) (AccountResourceLimit, error) {
	l, err := m.currentLimits(account)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	cfg, err := m.config.Get(0)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	st, err := m.state.Get(0)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	u, err := m.usage.Get(account.Uint64())
	if err != nil {
		return AccountResourceLimit{}, err
	}
	if l.NetWeight < 0 || st.TotalNetWeight == 0 {
		return Unlimited(u.NetUsage.LastOrdinal), nil
	}
	return windowedLimit(u.NetUsage, uint64(l.NetWeight), st.TotalNetWeight, st.VirtualNetLimit, uint64(cfg.AccountNetUsageAverageWindow)), nil
}

// GetAccountCPULimit is GetAccountNetLimit for the CPU resource.
func (m *Manager) GetAccountCPULimit(account name.Name) (AccountResourceLimit, error) {
	l, err := m.currentLimits(account)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	cfg, err := m.config.Get(0)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	st, err := m.state.Get(0)
	if err != nil {
		return AccountResourceLimit{}, err
	}
	u, err := m.usage.Get(account.Uint64())
	if err != nil {
		return AccountResourceLimit{}, err
	}
	if l.CPUWeight < 0 || st.TotalCPUWeight == 0 {
		return Unlimited(u.CPUUsage.LastOrdinal), nil
	}
	return windowedLimit(u.CPUUsage, uint64(l.CPUWeight), st.TotalCPUWeight, st.VirtualCPULimit, uint64(cfg.AccountCPUUsageAverageWindow)), nil
}

func windowedLimit(acc UsageAccumulator, weight, totalWeight, virtualLimit, windowSize uint64) AccountResourceLimit {
	capacity := windowSize * virtualLimit
	maxUseInWindow := (capacity * weight) / totalWeight
	usedInWindow := IntegerDivideCeil(acc.ValueEx*windowSize, RateLimitingPrecision)

	arl := AccountResourceLimit{Max: int64(maxUseInWindow), Used: int64(usedInWindow), LastUsageUpdateTime: acc.LastOrdinal, CurrentUsed: int64(usedInWindow)}
	if maxUseInWindow <= usedInWindow {
		arl.Available = 0
	} else {
		arl.Available = int64(maxUseInWindow - usedInWindow)
	}
	return arl
}
