package dripper

import (
	"context"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tarancss/faucet/lib/captcha"
	"github.com/tarancss/faucet/lib/metrics"
	"github.com/tarancss/faucet/lib/msg"
	"github.com/tarancss/faucet/lib/network"
	"github.com/tarancss/faucet/lib/store"
)

// hookTimeout bounds the work done after a successful drip.
const hookTimeout = 30 * time.Second

// Sender sends a drip.
type Sender interface {
	SendTokens(ctx context.Context, address string, amount *big.Int) (string, error)
}

// CapChecker tells whether an address holds too much to get a drip.
type CapChecker interface {
	IsOverBalanceCap(ctx context.Context, address string) (bool, error)
}

// Handler runs the validation chain of drip requests and dispatches the accepted ones.
type Handler struct {
	net     network.Data
	sender  Sender
	cap     CapChecker
	db      store.DB
	captcha captcha.Validator
	priv    Privileges
	mb      msg.MsgBroker
	m       *metrics.Counters
	wg      sync.WaitGroup
}

// NewHandler returns a Handler. mb may be nil, in which case no drip events are published.
func NewHandler(net network.Data, s Sender, c CapChecker, db store.DB, v captcha.Validator, p Privileges,
	mb msg.MsgBroker, m *metrics.Counters) *Handler {
	if m == nil {
		m = metrics.New(nil)
	}

	return &Handler{net: net, sender: s, cap: c, db: db, captcha: v, priv: p, mb: mb, m: m}
}

// HandleRequest validates r and sends the drip. Every failure is reported in the response.
func (h *Handler) HandleRequest(ctx context.Context, r DripRequest) DripResponse {
	h.m.TotalRequests.Inc()

	hash, err := h.handle(ctx, r)
	if err != nil {
		log.Infof("[%s] Drip to %s refused: %s", h.net.NetworkName, r.Address, err)

		return DripResponse{Error: err.Error()}
	}

	h.m.SuccessfulRequests.Inc()
	h.afterDrip(r, hash)

	return DripResponse{Hash: hash}
}

func (h *Handler) handle(ctx context.Context, r DripRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	if r.External && !h.captcha.Validate(ctx, r.Recaptcha) {
		return "", ErrCaptchaInvalid
	}

	if !ValidParachainID(r.ParachainID) {
		return "", ErrParachainInvalid
	}

	privileged := !r.External && h.priv.Privileged(r.Sender)

	if err := h.check(ctx, r); err != nil {
		if !privileged {
			return "", err
		}

		log.Infof("[%s] Ignoring checks for privileged requester %s: %s", h.net.NetworkName, r.Sender, err)
	}

	return h.sender.SendTokens(ctx, r.Address, r.Amount)
}

// check runs the quota and balance cap checks concurrently. Both always complete, even for privileged requesters
// whose result is discarded, and the quota result wins.
func (h *Handler) check(ctx context.Context, r DripRequest) error {
	var (
		g       errgroup.Group
		dripped bool
		overCap bool
	)

	g.Go(func() error {
		var err error
		dripped, err = h.db.HasDrippedToday(ctx, r.Key())

		return err
	})
	g.Go(func() error {
		var err error
		overCap, err = h.cap.IsOverBalanceCap(ctx, r.Address)

		return err
	})

	switch err := g.Wait(); {
	case err != nil:
		log.Errorf("[%s] Error checking drip request for %s: %s", h.net.NetworkName, r.Address, err)

		return ErrCheckFailed
	case dripped:
		return ErrQuotaExceeded
	case overCap:
		return ErrBalanceCap
	}

	return nil
}

// afterDrip records the drip in the quota store and publishes it. Failures are only logged as the transfer cannot
// be undone.
func (h *Handler) afterDrip(r DripRequest, hash string) {
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		if err := h.db.SaveDrip(ctx, r.Key()); err != nil {
			log.Errorf("[%s] Error saving drip to %s: %s", h.net.NetworkName, r.Address, err)
		}

		if h.mb == nil {
			return
		}

		e := msg.DripEvent{
			Net:       h.net.NetworkName,
			Addr:      r.Address,
			Username:  r.Sender,
			Parachain: r.ParachainID,
			Amount:    r.Amount.String(),
			Hash:      hash,
			TS:        time.Now().UTC(),
		}
		if err := h.mb.SendDrip(h.net.NetworkName, e); err != nil {
			log.Errorf("[%s] Error publishing drip %s: %s", h.net.NetworkName, hash, err)
		}
	}()
}

// Wait blocks until the post drip hooks are done.
func (h *Handler) Wait() {
	h.wg.Wait()
}
