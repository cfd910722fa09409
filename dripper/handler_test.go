package dripper

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/faucet/lib/metrics"
	"github.com/tarancss/faucet/lib/msg"
	"github.com/tarancss/faucet/lib/store"
)

const sender = "@alice:matrix.org"

// countingStore counts the quota lookups of the wrapped store.
type countingStore struct {
	store.DB
	mu      sync.Mutex
	lookups int
}

func (c *countingStore) HasDrippedToday(ctx context.Context, k store.DripKey) (bool, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()

	return c.DB.HasDrippedToday(ctx, k)
}

// barrierStore holds every quota lookup until n of them are in flight.
type barrierStore struct {
	store.DB
	wg sync.WaitGroup
}

func (b *barrierStore) HasDrippedToday(ctx context.Context, k store.DripKey) (bool, error) {
	b.wg.Done()
	b.wg.Wait()

	return b.DB.HasDrippedToday(ctx, k)
}

// fakeBroker records the published drip events.
type fakeBroker struct {
	mu     sync.Mutex
	events []msg.DripEvent
}

func (b *fakeBroker) Setup(interface{}) error { return nil }
func (b *fakeBroker) Close() error            { return nil }
func (b *fakeBroker) GetDrips(string) (<-chan msg.DripEvent, <-chan error, error) {
	return nil, nil, nil
}

func (b *fakeBroker) SendDrip(_ string, e msg.DripEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)

	return nil
}

type handlerFixture struct {
	*fixture
	h       *Handler
	db      *countingStore
	captcha *fakeCaptcha
	mb      *fakeBroker
	m       *metrics.Counters
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := newFixture(t)
	hf := &handlerFixture{
		fixture: f,
		db:      &countingStore{DB: f.db},
		captcha: &fakeCaptcha{ok: true},
		mb:      &fakeBroker{},
		m:       metrics.New(nil),
	}
	hf.h = NewHandler(f.net, f.disp, f.acc, hf.db, hf.captcha, AllowList{"@ops:matrix.org"}, hf.mb, hf.m)

	return hf
}

func (hf *handlerFixture) web(addr string) DripRequest {
	return DripRequest{Address: addr, Amount: hf.amount(1), External: true, Recaptcha: "token"}
}

func (hf *handlerFixture) bot(addr, from string) DripRequest {
	return DripRequest{Address: addr, Amount: hf.amount(1), Sender: from}
}

func (hf *handlerFixture) wait() {
	hf.h.Wait()
	hf.disp.Wait()
}

func TestHandleRequest(t *testing.T) {
	hf := newHandlerFixture(t)

	res := hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	require.Empty(t, res.Error)
	assert.NotEmpty(t, res.Hash)

	hf.wait()

	dripped, err := hf.fixture.db.HasDrippedToday(context.Background(), store.DripKey{Addr: destAddr})
	require.NoError(t, err)
	assert.True(t, dripped)

	assert.Equal(t, float64(1), testutil.ToFloat64(hf.m.TotalRequests))
	assert.Equal(t, float64(1), testutil.ToFloat64(hf.m.SuccessfulRequests))
	assert.Equal(t, 1, hf.chain.count("Balance", primaryAddr))

	require.Len(t, hf.mb.events, 1)
	assert.Equal(t, destAddr, hf.mb.events[0].Addr)
	assert.Equal(t, res.Hash, hf.mb.events[0].Hash)
	assert.Equal(t, hf.amount(1).String(), hf.mb.events[0].Amount)
}

func TestHandleRequestCaptcha(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.captcha.ok = false

	res := hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	assert.Equal(t, DripResponse{Error: "Captcha validation was unsuccessful"}, res)

	assert.Zero(t, hf.db.lookups)
	assert.Zero(t, hf.chain.count("Balance"))
	assert.Empty(t, hf.chain.sends())
	assert.Equal(t, float64(0), testutil.ToFloat64(hf.m.SuccessfulRequests))

	// bot requests do not go through the captcha
	res = hf.h.HandleRequest(context.Background(), hf.bot(destAddr, sender))
	assert.NotEmpty(t, res.Hash)
	assert.Equal(t, 1, hf.captcha.calls)

	hf.wait()
}

func TestHandleRequestBadRequest(t *testing.T) {
	hf := newHandlerFixture(t)

	r := hf.web(destAddr)
	r.Recaptcha = ""
	res := hf.h.HandleRequest(context.Background(), r)
	assert.Contains(t, res.Error, ErrBadRequest.Error())

	r = hf.bot(destAddr, sender)
	r.Recaptcha = "token"
	res = hf.h.HandleRequest(context.Background(), r)
	assert.Contains(t, res.Error, ErrBadRequest.Error())

	assert.Zero(t, hf.captcha.calls)
	assert.Empty(t, hf.chain.sends())
}

func TestHandleRequestParachain(t *testing.T) {
	hf := newHandlerFixture(t)

	for _, id := range []string{"999", "10000", "abc"} {
		r := hf.web(destAddr)
		r.ParachainID = id
		assert.Equal(t, ErrParachainInvalid.Error(), hf.h.HandleRequest(context.Background(), r).Error, id)
	}

	assert.Zero(t, hf.db.lookups)
	assert.Empty(t, hf.chain.sends())

	r := hf.web(destAddr)
	r.ParachainID = "2000"
	res := hf.h.HandleRequest(context.Background(), r)
	assert.NotEmpty(t, res.Hash)

	hf.wait()
	require.Len(t, hf.mb.events, 1)
	assert.Equal(t, "2000", hf.mb.events[0].Parachain)
}

func TestHandleRequestQuota(t *testing.T) {
	hf := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, hf.fixture.db.SaveDrip(ctx, store.DripKey{Addr: destAddr}))

	res := hf.h.HandleRequest(ctx, hf.web(destAddr))
	assert.Equal(t, "Requester has reached their daily quota. Only request once per day.", res.Error)
	assert.Empty(t, hf.chain.sends())

	// the balance check ran anyway
	assert.Equal(t, 1, hf.chain.count("Balance", destAddr))
}

func TestHandleRequestQuotaBySender(t *testing.T) {
	hf := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, hf.fixture.db.SaveDrip(ctx,
		store.DripKey{Addr: "0xcba75F167B03e34B8a572c50273C082401b073Ed", Username: sender}))

	res := hf.h.HandleRequest(ctx, hf.bot(destAddr, sender))
	assert.Equal(t, ErrQuotaExceeded.Error(), res.Error)

	// another sender to the same address is fine
	res = hf.h.HandleRequest(ctx, hf.bot(destAddr, "@bob:matrix.org"))
	assert.NotEmpty(t, res.Hash)

	hf.wait()
}

func TestHandleRequestBalanceCap(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.chain.balances[destAddr] = hf.amount(hf.net.BalanceCap + 1)

	res := hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	assert.Equal(t, "Requester's balance is over the faucet's balance cap", res.Error)
	assert.Empty(t, hf.chain.sends())

	// at the cap is still fine
	hf.chain.balances[destAddr] = hf.amount(hf.net.BalanceCap)
	res = hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	assert.NotEmpty(t, res.Hash)

	hf.wait()
}

func TestHandleRequestPrivileged(t *testing.T) {
	hf := newHandlerFixture(t)
	ctx := context.Background()
	hf.chain.balances[destAddr] = hf.amount(hf.net.BalanceCap * 10)

	require.NoError(t, hf.fixture.db.SaveDrip(ctx, store.DripKey{Addr: destAddr, Username: "@ops:matrix.org"}))

	res := hf.h.HandleRequest(ctx, hf.bot(destAddr, "@ops:matrix.org"))
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Hash)

	// both checks ran, their results were discarded
	assert.Equal(t, 1, hf.db.lookups)
	assert.Equal(t, 1, hf.chain.count("Balance", destAddr))

	// the same request from a web client is refused
	res = hf.h.HandleRequest(ctx, hf.web(destAddr))
	assert.Equal(t, ErrQuotaExceeded.Error(), res.Error)

	hf.wait()
}

func TestHandleRequestCheckFailure(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.chain.balErr = errBoom

	res := hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	assert.Equal(t, ErrCheckFailed.Error(), res.Error)
	assert.Empty(t, hf.chain.sends())

	res = hf.h.HandleRequest(context.Background(), hf.bot(destAddr, "@ops:matrix.org"))
	assert.NotEmpty(t, res.Hash)

	hf.wait()
}

func TestHandleRequestTransferFailure(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.chain.sendErr = func(string, *uint64) error { return errBoom }

	res := hf.h.HandleRequest(context.Background(), hf.web(destAddr))
	assert.Equal(t, DripResponse{Error: "An error occurred when sending tokens"}, res)

	hf.wait()

	// nothing recorded, the requester may try again
	dripped, err := hf.fixture.db.HasDrippedToday(context.Background(), store.DripKey{Addr: destAddr})
	require.NoError(t, err)
	assert.False(t, dripped)
	assert.Empty(t, hf.mb.events)
}

// Two requests of the same identity racing on an empty quota store both pass the check before either records its
// drip.
func TestHandleRequestQuotaRace(t *testing.T) {
	hf := newHandlerFixture(t)
	bs := &barrierStore{DB: hf.fixture.db}
	bs.wg.Add(2)
	hf.h = NewHandler(hf.net, hf.disp, hf.acc, bs, hf.captcha, AllowList{}, nil, hf.m)

	var wg sync.WaitGroup

	res := make([]DripResponse, 2)

	for i := range res {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			res[i] = hf.h.HandleRequest(context.Background(), hf.bot(destAddr, sender))
		}(i)
	}
	wg.Wait()

	for _, r := range res {
		assert.Empty(t, r.Error)
		assert.NotEmpty(t, r.Hash)
	}

	assert.Len(t, hf.chain.sends(), 2)

	hf.wait()
}
