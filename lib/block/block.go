// Package block defines the interface required for blockchain or network connections and the shared connection the
// faucet uses to reach them.
package block

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/tarancss/faucet/lib/block/ethereum"
	"github.com/tarancss/faucet/lib/block/types"
	"github.com/tarancss/faucet/lib/network"
)

var log = logging.Logger("block")

// Chain is an interface that contains the required methods. Balances and amounts are expressed in the smallest unit
// of the network currency.
type Chain interface {
	Connected() bool
	Close()
	Balance(ctx context.Context, address string) (*big.Int, error)
	NextNonce(ctx context.Context, address string) (uint64, error)
	// Send signs with from and submits t. A nil nonce lets the client pick the account's next nonce.
	Send(ctx context.Context, from types.Account, t types.Transfer, nonce *uint64) (hash string, err error)
	// SendBatch signs with from and submits all the transfers as one batch, returning the batch hash.
	SendBatch(ctx context.Context, from types.Account, ts []types.Transfer) (hash string, err error)
}

// Dialer opens a new connection to a chain.
type Dialer func(ctx context.Context) (Chain, error)

// Init returns the dialer for the given network, using rpc instead of the network endpoint when informed.
func Init(net network.Data, rpc string) (Dialer, error) {
	if rpc == "" {
		rpc = net.RPCEndpoint
	}

	switch net.Kind {
	case network.ETHEREUM:
		return func(ctx context.Context) (Chain, error) {
			e, err := ethereum.Init(ctx, rpc)
			if err != nil {
				return nil, err
			}

			return e, nil
		}, nil
	}

	return nil, fmt.Errorf("blockchain interface not defined for %s (%s)", net.NetworkName, net.Kind)
}

// Conn holds the single chain connection of the process. It is dialed on first use and dialed again whenever the
// cached connection reports it is no longer connected.
type Conn struct {
	dial Dialer
	mu   sync.Mutex
	c    Chain
}

// NewConn returns a Conn that opens connections with dial.
func NewConn(dial Dialer) *Conn {
	return &Conn{dial: dial}
}

// Get returns the cached connection if it is still connected, or a new one otherwise.
func (c *Conn) Get(ctx context.Context) (Chain, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.c != nil {
		if c.c.Connected() {
			return c.c, nil
		}

		log.Info("Chain connection is not connected, reconnecting")
		c.c.Close()
		c.c = nil
	} else {
		log.Info("Initializing new chain connection")
	}

	ch, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to chain: %w", err)
	}

	c.c = ch

	return ch, nil
}

// Close ends the cached connection, if any.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.c != nil {
		c.c.Close()
		c.c = nil
	}
}
