package dripper

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarancss/faucet/lib/block"
	"github.com/tarancss/faucet/lib/block/types"
	"github.com/tarancss/faucet/lib/network"
	qmem "github.com/tarancss/faucet/lib/queue/memory"
	smem "github.com/tarancss/faucet/lib/store/memory"
)

const (
	primaryAddr = "0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378"
	backupAddr  = "0x3a5d5b4d0f0e4e64c3c1b5e3f2bb3e7c3c5f3c77"
	destAddr    = "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4"
)

var errBoom = errors.New("boom")

// call is a chain operation recorded by fakeChain.
type call struct {
	method string
	from   string
	nonce  *uint64
	n      int // number of transfers in a batch
}

// fakeChain is an in-memory chain. Balances default to 10 whole units, sends succeed unless sendErr says otherwise.
type fakeChain struct {
	mu       sync.Mutex
	calls    []call
	balances map[string]*big.Int
	nonce    uint64
	sendErr  func(from string, nonce *uint64) error
	batchErr error
	balErr   error
	block    chan struct{} // when set, Send waits on it
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: make(map[string]*big.Int), nonce: 7}
}

func (f *fakeChain) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeChain) Connected() bool { return true }
func (f *fakeChain) Close()          {}

func (f *fakeChain) Balance(_ context.Context, addr string) (*big.Int, error) {
	f.record(call{method: "Balance", from: addr})

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.balErr != nil {
		return nil, f.balErr
	}

	if b, ok := f.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}

	return new(big.Int).Mul(big.NewInt(10), network.Data{Decimals: 18}.Unit()), nil
}

func (f *fakeChain) NextNonce(_ context.Context, addr string) (uint64, error) {
	f.record(call{method: "NextNonce", from: addr})

	return f.nonce, nil
}

func (f *fakeChain) Send(_ context.Context, from types.Account, _ types.Transfer, nonce *uint64) (string, error) {
	f.record(call{method: "Send", from: from.Address, nonce: nonce})

	if f.block != nil {
		<-f.block
	}

	if f.sendErr != nil {
		if err := f.sendErr(from.Address, nonce); err != nil {
			return "", err
		}
	}

	return "0x2ba030485e79b5a98275b45d940e6fdd07b40dea593ef3b2a69b0a02a68a5872", nil
}

func (f *fakeChain) SendBatch(_ context.Context, from types.Account, ts []types.Transfer) (string, error) {
	f.record(call{method: "SendBatch", from: from.Address, n: len(ts)})

	if f.batchErr != nil {
		return "", f.batchErr
	}

	return "0x5678901234567890", nil
}

// count returns the calls of method, optionally only those from the given address.
func (f *fakeChain) count(method string, from ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, c := range f.calls {
		if c.method == method && (len(from) == 0 || c.from == from[0]) {
			n++
		}
	}

	return n
}

func (f *fakeChain) sends() []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []call

	for _, c := range f.calls {
		if c.method == "Send" {
			out = append(out, c)
		}
	}

	return out
}

// fixture wires the faucet core on a fake chain and in-memory stores.
type fixture struct {
	net   network.Data
	chain *fakeChain
	acc   *Accounts
	disp  *Dispatcher
	q     *qmem.Memory
	db    *smem.Memory
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	net, err := network.Get("local")
	require.NoError(t, err)

	f := &fixture{net: net, chain: newFakeChain(), q: qmem.New(), db: smem.New()}
	conn := block.NewConn(func(context.Context) (block.Chain, error) { return f.chain, nil })

	f.acc = NewAccounts(net, conn, nil, nil)
	require.NoError(t, f.acc.SetCredentials(
		types.Account{Address: primaryAddr, Key: []byte{1}},
		types.Account{Address: backupAddr, Key: []byte{2}},
	))

	f.disp = NewDispatcher(net, conn, f.acc, f.q, append([]Option{WithSettle(0)}, opts...)...)

	return f
}

// amount returns n whole units.
func (f *fixture) amount(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), f.net.Unit())
}

// fakeCaptcha counts validations and returns ok.
type fakeCaptcha struct {
	mu    sync.Mutex
	ok    bool
	calls int
}

func (c *fakeCaptcha) Validate(context.Context, string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	return c.ok
}
