package dripper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/tarancss/faucet/lib/block/types"
)

// Retry queue limits. A batch is sent when more than QueueThreshold addresses are pending.
const (
	QueueThreshold = 20
	BatchSize      = 20
)

// ReclaimOutcome describes what a reclaim pass did.
type ReclaimOutcome struct {
	Queued  bool
	Pending int64
	Batch   []string
	Hash    string
	Err     error
}

func (o ReclaimOutcome) String() string {
	switch {
	case !o.Queued:
		return fmt.Sprintf("address not queued: %v", o.Err)
	case len(o.Batch) == 0 && o.Err != nil:
		return fmt.Sprintf("queued, %d pending: %v", o.Pending, o.Err)
	case len(o.Batch) == 0:
		return fmt.Sprintf("queued, %d pending", o.Pending)
	case o.Err != nil:
		return fmt.Sprintf("queued, batch of %d dropped: %v", len(o.Batch), o.Err)
	}

	return fmt.Sprintf("queued, batch of %d sent in %s", len(o.Batch), o.Hash)
}

// Reclaim adds address to the retry queue and, when more than QueueThreshold addresses are pending, sends amount to
// a random sample of BatchSize of them in one batch signed by from. The sampled addresses leave the queue whatever the
// batch result. Errors are reported in the outcome.
func (d *Dispatcher) Reclaim(ctx context.Context, from types.Account, address string, amount *big.Int) (
	out ReclaimOutcome) {
	if out.Err = d.q.Add(ctx, address); out.Err != nil {
		return out
	}

	out.Queued = true

	if out.Pending, out.Err = d.q.Card(ctx); out.Err != nil || out.Pending <= QueueThreshold {
		return out
	}

	if out.Batch, out.Err = d.q.Sample(ctx, BatchSize); out.Err != nil || len(out.Batch) == 0 {
		return out
	}

	defer func() {
		if err := d.q.Remove(ctx, out.Batch...); err != nil {
			log.Errorf("[%s] Error removing batch from retry queue: %s", d.net.NetworkName, err)

			if out.Err == nil {
				out.Err = err
			}
		}
	}()

	ts := make([]types.Transfer, len(out.Batch))
	for i, a := range out.Batch {
		ts[i] = types.Transfer{To: a, Amount: amount}
	}

	c, err := d.conn.Get(ctx)
	if err != nil {
		out.Err = err

		return out
	}

	out.Hash, out.Err = c.SendBatch(ctx, from, ts)

	return out
}
