// Package dripper implements the faucet core: the validation chain a drip request goes through, the tiered submission
// of the transfer and the faucet accounts backing it.
//
// A request is handled by Handler. Captcha (external requests only), parachain id, daily quota and balance cap are
// checked in this order, the last two concurrently and with their outcome ignored for privileged requesters. The
// transfer is then sent by Dispatcher with the primary account, the backup account, the backup account with an
// explicitly queried nonce, and finally queued for a later batched drip.
package dripper

import (
	"errors"
	"fmt"
	"math/big"

	logging "github.com/ipfs/go-log/v2"

	"github.com/tarancss/faucet/lib/store"
)

var log = logging.Logger("dripper")

// Errors returned to the requester.
var (
	ErrCaptchaInvalid      = errors.New("Captcha validation was unsuccessful")
	ErrParachainInvalid    = errors.New("Parachain id is invalid")
	ErrQuotaExceeded       = errors.New("Requester has reached their daily quota. Only request once per day.")
	ErrBalanceCap          = errors.New("Requester's balance is over the faucet's balance cap")
	ErrInsufficientBalance = errors.New("Faucet balance is insufficient")
	ErrAccountNotReady     = errors.New("Faucet account is not ready")
	ErrTransferFailed      = errors.New("An error occurred when sending tokens")
	ErrCheckFailed         = errors.New("Request could not be verified, try again later")
	ErrBadRequest          = errors.New("Bad request")
)

// InsufficientBalanceError is returned when the amount requested is not below the last known faucet balance.
type InsufficientBalanceError struct {
	Amount   string
	Balance  string
	Currency string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Can't send %s %s, as balance is only %s %s.", e.Amount, e.Currency, e.Balance, e.Currency)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// DripRequest is a request to send Amount to Address. External requests come from web clients and carry a captcha
// token, internal ones come from trusted bots and carry the id of the requester.
type DripRequest struct {
	Address     string
	Amount      *big.Int
	ParachainID string
	External    bool
	Recaptcha   string
	Sender      string
}

// Validate checks the request carries the identity matching its kind.
func (r DripRequest) Validate() error {
	switch {
	case r.Address == "":
		return fmt.Errorf("%w: missing address", ErrBadRequest)
	case r.Amount == nil || r.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	case r.External && (r.Recaptcha == "" || r.Sender != ""):
		return fmt.Errorf("%w: web requests must carry a captcha token and no sender", ErrBadRequest)
	case !r.External && (r.Sender == "" || r.Recaptcha != ""):
		return fmt.Errorf("%w: bot requests must carry a sender and no captcha token", ErrBadRequest)
	}

	return nil
}

// Key returns the identity the daily quota is enforced on.
func (r DripRequest) Key() store.DripKey {
	if r.External {
		return store.DripKey{Addr: r.Address}
	}

	return store.DripKey{Addr: r.Address, Username: r.Sender}
}

// DripResponse is the outcome of a request. Exactly one of the fields is set.
type DripResponse struct {
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`
}
