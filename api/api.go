// Package api implements the RESTful API of the faucet.
//
// Web clients request drips of the network drip amount on POST /drip/web with a reCAPTCHA token, trusted bots on
// POST /drip/bot with the id of the requester, a bearer token and optionally an amount. GET /network and GET /balance describe the faucet.
package api

import (
	"context"
	"net/http"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/tarancss/faucet/dripper"
	"github.com/tarancss/faucet/lib/network"
)

var log = logging.Logger("api")

// Dripper handles drip requests.
type Dripper interface {
	HandleRequest(ctx context.Context, r dripper.DripRequest) dripper.DripResponse
}

// Balancer returns the faucet balance in the smallest unit of currency.
type Balancer interface {
	Balance(ctx context.Context) string
}

// API contains the data necessary to deliver the service
type API struct {
	net      network.Data
	d        Dripper
	bal      Balancer
	botToken string
	mu       sync.Mutex
	s        *http.Server  // http server
	ss       *http.Server  // https server
	sc       chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new API. An empty botToken disables the bot endpoint.
func New(net network.Data, d Dripper, bal Balancer, botToken string) *API {
	if botToken == "" {
		log.Warn("No bot token configured, bot drip requests will be refused")
	}

	return &API{
		net:      net,
		d:        d,
		bal:      bal,
		botToken: botToken,
		sc:       make(chan struct{}),
	}
}

// Stop shuts down the http servers implementing the RESTful API. Requests in flight are allowed to finish.
func (a *API) Stop(ctx context.Context) {
	var err error

	a.mu.Lock()
	defer a.mu.Unlock()
	// shutdown http server
	if a.s != nil {
		if err = a.s.Shutdown(ctx); err != nil {
			log.Errorf("Error in http server shutdown:%s", err)
		}
	}

	if a.ss != nil {
		if err = a.ss.Shutdown(ctx); err != nil {
			log.Errorf("Error in https server shutdown:%s", err)
		}
	}

	close(a.sc) // close server channels to indicate shutdowns have finished
}
