package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/faucet/dripper"
)

// Errors returned to client requests.
var (
	ErrBadBody     = errors.New("request body is not valid JSON")
	ErrBadAddress  = errors.New("address is not a valid hex address")
	ErrBadAmount   = errors.New("amount must be a positive integer in the smallest unit of currency")
	ErrFixedAmount = errors.New("web drips are of the network drip amount, amount must not be set")
	ErrBadToken    = errors.New("bot token missing or invalid")
)

// Response defines the data structure returned to the client making non drip http requests.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// DripReq is the body of a drip request. Web clients send Recaptcha, bots send Sender.
type DripReq struct {
	Address     string `json:"address"`
	Amount      string `json:"amount,omitempty"`
	ParachainID string `json:"parachain_id,omitempty"`
	Recaptcha   string `json:"recaptcha,omitempty"`
	Sender      string `json:"sender,omitempty"`
}

func reply(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// homeHandler just replies a welcome message to the client.
func (a *API) homeHandler(rw http.ResponseWriter, r *http.Request) {
	log.Debugf("httpreq from %v %s", r.RemoteAddr, r.RequestURI)
	reply(rw, http.StatusOK, Response{Body: fmt.Sprintf("Hello, this is the %s faucet!", a.net.NetworkName)})
}

// networkHandler replies the data of the network served.
func (a *API) networkHandler(rw http.ResponseWriter, r *http.Request) {
	tmp, err := json.Marshal(a.net)
	if err != nil {
		reply(rw, http.StatusInternalServerError, Response{Error: err.Error()})

		return
	}

	log.Debugf("httpreq from %v %s", r.RemoteAddr, r.RequestURI)
	reply(rw, http.StatusOK, Response{Body: string(tmp)})
}

// balanceHandler replies the faucet balance.
func (a *API) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	bal := a.bal.Balance(r.Context())

	log.Debugf("httpreq from %v %s bal:%s", r.RemoteAddr, r.RequestURI, bal)
	reply(rw, http.StatusOK, Response{Body: bal})
}

func (a *API) webDripHandler(rw http.ResponseWriter, r *http.Request) {
	a.drip(rw, r, true)
}

// botDripHandler serves drips requested by bots on behalf of their users.
func (a *API) botDripHandler(rw http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		log.Warnf("httpreq from %v %s err:%s", r.RemoteAddr, r.RequestURI, ErrBadToken)
		reply(rw, http.StatusUnauthorized, dripper.DripResponse{Error: ErrBadToken.Error()})

		return
	}

	a.drip(rw, r, false)
}

func (a *API) authorized(r *http.Request) bool {
	if a.botToken == "" {
		return false
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	return subtle.ConstantTimeCompare([]byte(token), []byte(a.botToken)) == 1
}

// drip decodes the request and replies the outcome of handling it.
func (a *API) drip(rw http.ResponseWriter, r *http.Request, external bool) {
	var err error

	var res dripper.DripResponse

	var req DripReq

	defer func() {
		// reply to requester accordingly
		status := http.StatusOK
		if err != nil {
			res = dripper.DripResponse{Error: err.Error()}
		}

		if res.Error != "" {
			status = http.StatusBadRequest
		}
		// log request and tx hash
		log.Infof("httpreq from %v %s addr:%s hash:%s err:%s", r.RemoteAddr, r.RequestURI, req.Address, res.Hash,
			res.Error)
		reply(rw, status, res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = ErrBadBody

		return
	}

	var dr dripper.DripRequest
	if dr, err = a.toRequest(req, external); err != nil {
		return
	}

	// a client going away does not abort a drip in progress
	res = a.d.HandleRequest(context.WithoutCancel(r.Context()), dr)
}

func (a *API) toRequest(req DripReq, external bool) (dripper.DripRequest, error) {
	if !common.IsHexAddress(req.Address) {
		return dripper.DripRequest{}, ErrBadAddress
	}

	var amount *big.Int

	if req.Amount == "" {
		var err error
		if amount, err = a.net.DefaultAmount(); err != nil {
			return dripper.DripRequest{}, err
		}
	} else if external {
		// web clients always get the network drip amount
		return dripper.DripRequest{}, ErrFixedAmount
	} else {
		var ok bool
		if amount, ok = new(big.Int).SetString(req.Amount, 10); !ok || amount.Sign() <= 0 {
			return dripper.DripRequest{}, ErrBadAmount
		}
	}

	return dripper.DripRequest{
		Address:     common.HexToAddress(req.Address).Hex(),
		Amount:      amount,
		ParachainID: req.ParachainID,
		External:    external,
		Recaptcha:   req.Recaptcha,
		Sender:      req.Sender,
	}, nil
}
