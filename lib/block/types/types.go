// Package types common blockchain types.
package types

import (
	"errors"
	"math/big"
)

// Account is a signing account of the faucet. Key holds the raw private key bytes.
type Account struct {
	Address string `json:"address"`
	Key     []byte `json:"-"`
}

// Transfer contains the fields of a native currency transfer.
type Transfer struct {
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

// Error codes.
var (
	ErrNoKey      = errors.New("account has no signing key")
	ErrBadAddress = errors.New("invalid address")
	ErrBadAmount  = errors.New("amount must be a positive integer")
	ErrEmptyBatch = errors.New("batch does not contain any transfer")
)
