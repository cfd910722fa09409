package dripper

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/raulk/clock"

	"github.com/tarancss/faucet/lib/block"
	"github.com/tarancss/faucet/lib/block/types"
	"github.com/tarancss/faucet/lib/network"
	"github.com/tarancss/faucet/lib/queue"
)

// Dispatcher timings.
const (
	WatchdogTimeout = 50 * time.Second
	SettleDefault   = 20 * time.Second
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSettle sets the time waited after a transfer is submitted. Zero disables the wait.
func WithSettle(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.settle = d
	}
}

// WithClock sets the clock used for the watchdog and the settle wait.
func WithClock(clk clock.Clock) Option {
	return func(disp *Dispatcher) {
		disp.clock = clk
	}
}

// Dispatcher sends drips escalating through the faucet accounts and, as a last resort, the retry queue.
type Dispatcher struct {
	net    network.Data
	conn   *block.Conn
	acc    *Accounts
	q      queue.Queue
	settle time.Duration
	clock  clock.Clock
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher sending from the accounts in acc.
func NewDispatcher(net network.Data, conn *block.Conn, acc *Accounts, q queue.Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{net: net, conn: conn, acc: acc, q: q, settle: SettleDefault, clock: clock.New()}
	for _, o := range opts {
		o(d)
	}

	return d
}

// SendTokens sends amount to address and returns the transaction hash. The transfer is tried with the primary
// account, then the backup account, then the backup account with its next nonce. When all of them fail the address
// is queued for a batched drip and ErrTransferFailed is returned.
func (d *Dispatcher) SendTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	creds := d.acc.credentials()
	if creds == nil {
		return "", ErrAccountNotReady
	}

	if bal := d.acc.FaucetBalance(); bal != nil && amount.Cmp(bal) >= 0 {
		return "", &InsufficientBalanceError{
			Amount:   d.net.Format(amount),
			Balance:  d.net.Format(bal),
			Currency: d.net.Currency,
		}
	}

	wd := watchdog(d.clock, "drip")
	defer wd.Stop()

	log.Infof("[%s] Sending %s %s to %s", d.net.NetworkName, d.net.Format(amount), d.net.Currency, address)

	hash, err := d.submit(ctx, creds, types.Transfer{To: address, Amount: amount})

	if d.settle > 0 {
		d.clock.Sleep(d.settle)
	}

	if err != nil {
		return "", err
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		if err := d.acc.UpdateFaucetBalance(context.Background()); err != nil {
			log.Errorf("[%s] Error refreshing the faucet balance: %s", d.net.NetworkName, err)

			return
		}

		log.Infof("[%s] Refreshed the faucet balance", d.net.NetworkName)
	}()

	return hash, nil
}

func (d *Dispatcher) submit(ctx context.Context, creds *credentials, t types.Transfer) (string, error) {
	hash, err := d.send(ctx, creds.primary, t, false)
	if err == nil {
		return hash, nil
	}

	log.Warnf("[%s] Tier 1 (primary) failed, retrying with backup: %s", d.net.NetworkName, err)

	if hash, err = d.send(ctx, creds.backup, t, false); err == nil {
		return hash, nil
	}

	log.Errorf("[%s] Tier 2 (backup) failed, retrying with its next nonce: %s", d.net.NetworkName, err)

	if hash, err = d.send(ctx, creds.backup, t, true); err == nil {
		return hash, nil
	}

	log.Errorf("[%s] Tier 3 (backup, next nonce) failed, sending it to batch: %s", d.net.NetworkName, err)

	out := d.Reclaim(ctx, creds.primary, t.To, t.Amount)
	if out.Err != nil {
		log.Errorf("[%s] Tier 4 (batch) failed: %s", d.net.NetworkName, out)
	} else {
		log.Infof("[%s] Tier 4 (batch): %s", d.net.NetworkName, out)
	}

	return "", ErrTransferFailed
}

// send submits t signed by from. With nextNonce the account nonce is queried first and set explicitly.
func (d *Dispatcher) send(ctx context.Context, from types.Account, t types.Transfer, nextNonce bool) (string, error) {
	c, err := d.conn.Get(ctx)
	if err != nil {
		return "", err
	}

	if !nextNonce {
		return c.Send(ctx, from, t, nil)
	}

	n, err := c.NextNonce(ctx, from.Address)
	if err != nil {
		return "", err
	}

	return c.Send(ctx, from, t, &n)
}

// Wait blocks until the background balance refreshes are done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
