package dripper

import (
	"context"
	"fmt"
	"time"

	"github.com/raulk/clock"

	"github.com/tarancss/faucet/lib/msg"
	"github.com/tarancss/faucet/lib/network"
	"github.com/tarancss/faucet/lib/store"
)

// PurgeInterval is the period of the quota store purge.
const PurgeInterval = 24 * time.Hour

// Purge deletes the drips of past days from db now and then every PurgeInterval until ctx is done. It returns at once
// if db does not support purging.
func Purge(ctx context.Context, net network.Data, db store.DB, clk clock.Clock) {
	p, ok := db.(store.Purger)
	if !ok {
		return
	}

	if clk == nil {
		clk = clock.New()
	}

	purge := func() {
		n, err := p.PurgeDrips(ctx, store.Day(clk.Now()))
		if err != nil {
			log.Errorf("[%s] Error purging past drips: %s", net.NetworkName, err)

			return
		}

		log.Infof("[%s] Purged %d drips of past days", net.NetworkName, n)
	}

	t := clk.Ticker(PurgeInterval)
	defer t.Stop()

	purge()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			purge()
		}
	}
}

// FollowDrips passes the drip events of the network published on mb to fn until ctx is done or the broker stops
// delivering them. Events that cannot be decoded are logged and skipped.
func FollowDrips(ctx context.Context, mb msg.MsgBroker, net string, fn func(msg.DripEvent)) error {
	eves, errs, err := mb.GetDrips(net)
	if err != nil {
		return fmt.Errorf("cannot follow drip events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-eves:
			if !ok {
				return nil
			}

			fn(e)
		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			log.Warnf("[%s] Skipping drip event: %s", net, err)
		}
	}
}
