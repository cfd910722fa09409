// Package msg defines the interface for different message brokers.
//
package msg

import (
	"time"
)

// Exchange is the name of the topic exchange drip events are published to.
const Exchange = "fe"

// DripEvent defines the message the faucet publishes after every successful drip. Amount is expressed in the smallest
// unit of the network currency.
type DripEvent struct {
	Net       string    `json:"net"`
	Addr      string    `json:"addr"`
	Username  string    `json:"username,omitempty"`
	Parachain string    `json:"parachain,omitempty"`
	Amount    string    `json:"amount"`
	Hash      string    `json:"hash"`
	TS        time.Time `json:"ts"`
}

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// SendDrip publishes a drip event for the network.
	SendDrip(net string, e DripEvent) error
	// GetDrips consumes the drip events of the network.
	GetDrips(net string) (<-chan DripEvent, <-chan error, error)
}
