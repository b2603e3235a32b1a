// Package bench is the Go reimplementation of pulsevm_benchmark's
// micro-benchmark intent: build a batch of synthetic actions against a
// fresh in-memory store and report throughput. There is no token or
// transfer contract wired into internal/nativeactions (only the system
// actions exist in this core), so the workload is repeated newaccount
// calls rather than the original's newaccount+transfer pair.
package bench

import (
	"encoding/hex"
	"time"

	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/nativeactions"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Result reports how long a synthetic workload of n newaccount calls took.
type Result struct {
	Accounts int
	Elapsed  time.Duration
}

// ActionsPerSecond is the benchmark's headline number.
func (r Result) ActionsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Accounts) / r.Elapsed.Seconds()
}

// secp256k1GeneratorCompressed backs every synthetic account's owner/active
// key; the benchmark never checks a signature, only throughput, so a
// single well-known valid point is reused for every account.
const secp256k1GeneratorCompressed = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func benchKey() (xcrypto.PublicKey, error) {
	raw, err := hex.DecodeString(secp256k1GeneratorCompressed)
	if err != nil {
		return xcrypto.PublicKey{}, err
	}
	return xcrypto.PublicKeyFromCompressed(raw)
}

// Run creates n accounts in sequence against a fresh in-memory store and
// returns how long it took. The store is discarded afterward (the point
// is throughput, not the resulting chain state).
func Run(n int) (Result, error) {
	st := store.NewStore(store.NewMemBackend())
	sess, err := st.UndoSession()
	if err != nil {
		return Result{}, err
	}
	defer sess.Rollback()

	authMgr := authority.NewManager(sess)
	resMgr := resource.NewManager(sess)
	cfg := resource.DefaultConfig(1_000_000, 100_000_000, 1_000_000, 100_000_000)
	if err := resMgr.InitializeDatabase(cfg); err != nil {
		return Result{}, err
	}
	nativeMgr := nativeactions.NewManager(sess, authMgr, resMgr)

	key, err := benchKey()
	if err != nil {
		return Result{}, err
	}
	single := authority.Authority{Threshold: 1, Keys: []authority.KeyWeight{{Key: key, Weight: 1}}}

	pulse := name.MustParse("pulse")
	if err := nativeMgr.CreateGenesisAccount(pulse, single, single, true, 0); err != nil {
		return Result{}, chainerr.Wrap(chainerr.Internal, err, "create genesis account")
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		p := nativeactions.NewAccountParams{
			Creator: pulse,
			Name:    accountNameForIndex(i),
			Owner:   single,
			Active:  single,
		}
		if err := nativeMgr.NewAccount(p, 0); err != nil {
			return Result{}, chainerr.Wrap(chainerr.Internal, err, "newaccount #%d", i)
		}
	}
	elapsed := time.Since(start)

	return Result{Accounts: n, Elapsed: elapsed}, nil
}

// accountNameForIndex derives a distinct, valid 12-character account name
// ("bh" followed by a base-26 encoding of i over lowercase letters) so
// Run can create an arbitrary number of accounts without colliding.
func accountNameForIndex(i int) name.Name {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	suffix := [10]byte{}
	for j := range suffix {
		suffix[j] = 'a'
	}
	x := i
	for j := len(suffix) - 1; j >= 0; j-- {
		suffix[j] = letters[x%26]
		x /= 26
		if x == 0 {
			break
		}
	}
	return name.MustParse("bh" + string(suffix[:]))
}
