package dripper

import (
	"context"
	"math/big"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/atomic"

	"github.com/tarancss/faucet/lib/block"
	"github.com/tarancss/faucet/lib/block/types"
	"github.com/tarancss/faucet/lib/metrics"
	"github.com/tarancss/faucet/lib/network"
)

// BalancePollInterval is the period of the faucet balance refresh.
const BalancePollInterval = 60 * time.Second

type credentials struct {
	primary types.Account
	backup  types.Account
}

// Accounts holds the faucet signing accounts and the last known balance of the primary account. It is not ready
// until SetCredentials is called.
type Accounts struct {
	net     network.Data
	conn    *block.Conn
	m       *metrics.Counters
	clock   clock.Clock
	creds   atomic.Pointer[credentials]
	balance atomic.Pointer[big.Int]
}

// NewAccounts returns the faucet accounts of net, reached through conn. m may be nil.
func NewAccounts(net network.Data, conn *block.Conn, m *metrics.Counters, clk clock.Clock) *Accounts {
	if clk == nil {
		clk = clock.New()
	}

	return &Accounts{net: net, conn: conn, m: m, clock: clk}
}

// SetCredentials makes the accounts ready with the given primary and backup accounts.
func (a *Accounts) SetCredentials(primary, backup types.Account) error {
	if len(primary.Key) == 0 || len(backup.Key) == 0 {
		return types.ErrNoKey
	}

	a.creds.Store(&credentials{primary: primary, backup: backup})
	log.Infof("[%s] Faucet accounts loaded, primary %s backup %s", a.net.NetworkName, primary.Address, backup.Address)

	return nil
}

// Ready reports whether the signing accounts are loaded.
func (a *Accounts) Ready() bool {
	return a.creds.Load() != nil
}

// Primary returns the primary account address, or an empty string when not ready.
func (a *Accounts) Primary() string {
	if c := a.creds.Load(); c != nil {
		return c.primary.Address
	}

	return ""
}

func (a *Accounts) credentials() *credentials {
	return a.creds.Load()
}

// FaucetBalance returns the last known balance of the primary account in the smallest unit, or nil if it was never
// fetched. It does not query the chain.
func (a *Accounts) FaucetBalance() *big.Int {
	return a.balance.Load()
}

// AccountBalance returns the balance of address in whole units of currency, rounded down.
func (a *Accounts) AccountBalance(ctx context.Context, address string) (*big.Int, error) {
	c, err := a.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	bal, err := c.Balance(ctx, address)
	if err != nil {
		return nil, err
	}

	return new(big.Int).Quo(bal, a.net.Unit()), nil
}

// IsOverBalanceCap reports whether address holds more than the network balance cap.
func (a *Accounts) IsOverBalanceCap(ctx context.Context, address string) (bool, error) {
	bal, err := a.AccountBalance(ctx, address)
	if err != nil {
		return false, err
	}

	return bal.Cmp(big.NewInt(a.net.BalanceCap)) > 0, nil
}

// UpdateFaucetBalance fetches the primary account balance and replaces the snapshot.
func (a *Accounts) UpdateFaucetBalance(ctx context.Context) error {
	creds := a.credentials()
	if creds == nil {
		log.Warn("Account address wasn't initialized yet")

		return ErrAccountNotReady
	}

	c, err := a.conn.Get(ctx)
	if err != nil {
		return err
	}

	bal, err := c.Balance(ctx, creds.primary.Address)
	if err != nil {
		return err
	}

	a.balance.Store(bal)

	if a.m != nil {
		f, _ := new(big.Float).SetInt(bal).Float64()
		a.m.FaucetBalance.Set(f)
	}

	return nil
}

// Run refreshes the faucet balance now and then every BalancePollInterval until ctx is done. Failures are logged and
// the loop goes on.
func (a *Accounts) Run(ctx context.Context) {
	refresh := func(first bool) {
		if err := a.UpdateFaucetBalance(ctx); err != nil {
			log.Errorf("[%s] Error fetching faucet balance: %s", a.net.NetworkName, err)

			return
		}

		if first {
			log.Infof("[%s] Fetched faucet balance %s %s", a.net.NetworkName, a.net.Format(a.FaucetBalance()),
				a.net.Currency)
		}
	}

	t := a.clock.Ticker(BalancePollInterval)
	defer t.Stop()

	refresh(true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			refresh(false)
		}
	}
}

// Balance returns the current primary account balance in the smallest unit, or "0" if it cannot be fetched.
func (a *Accounts) Balance(ctx context.Context) string {
	creds := a.credentials()
	if creds == nil {
		log.Errorf("[%s] Error querying the balance: %s", a.net.NetworkName, ErrAccountNotReady)

		return "0"
	}

	log.Debugf("[%s] Checking faucet balance", a.net.NetworkName)

	wd := watchdog(a.clock, "balance")
	defer wd.Stop()

	c, err := a.conn.Get(ctx)
	if err != nil {
		log.Errorf("[%s] Error querying the balance: %s", a.net.NetworkName, err)

		return "0"
	}

	bal, err := c.Balance(ctx, creds.primary.Address)
	if err != nil {
		log.Errorf("[%s] Error querying the balance: %s", a.net.NetworkName, err)

		return "0"
	}

	return bal.String()
}

// watchdog logs an error if it is not stopped within WatchdogTimeout. It never cancels the operation.
func watchdog(clk clock.Clock, service string) *clock.Timer {
	return clk.AfterFunc(WatchdogTimeout, func() {
		log.Errorf("Oops, %s took more than %s to answer", service, WatchdogTimeout)
	})
}
