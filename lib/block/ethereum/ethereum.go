// Package ethereum implements the chain interface for ethereum networks.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/atomic"

	"github.com/tarancss/faucet/lib/block/types"
)

// TransferGas is the gas used by a plain ether transfer.
const TransferGas uint64 = 21000

// Ethereum implements a connection to an ethereum-type chain.
type Ethereum struct {
	c       *ethclient.Client
	chainID *big.Int
	closed  atomic.Bool
	broken  atomic.Bool // a call failed at the transport level
}

// Init returns a connection to an ethereum node. The chain id is read once as it is needed to sign transactions.
func Init(ctx context.Context, node string) (*Ethereum, error) {
	c, err := ethclient.DialContext(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to ethereum blockchain in %s: %w", node, err)
	}

	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()

		return nil, fmt.Errorf("cannot get chain id from %s: %w", node, err)
	}

	return &Ethereum{c: c, chainID: id}, nil
}

// Connected reports whether the client has not been closed and no call failed to reach the node.
func (e *Ethereum) Connected() bool {
	return !e.closed.Load() && !e.broken.Load()
}

// check marks the connection broken when err means the node could not be reached. Context errors and errors
// returned by the node itself leave it as is.
func (e *Ethereum) check(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, rpc.ErrClientQuit) || errors.As(err, &netErr) {
		e.broken.Store(true)
	}

	return err
}

// Close ends a connection.
func (e *Ethereum) Close() {
	if e.closed.CompareAndSwap(false, true) {
		e.c.Close()
	}
}

// Balance returns the ether balance of address in wei.
func (e *Ethereum) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", types.ErrBadAddress, address)
	}

	bal, err := e.c.BalanceAt(ctx, common.HexToAddress(address), nil)

	return bal, e.check(err)
}

// NextNonce returns the next nonce of address, taking pending transactions into account.
func (e *Ethereum) NextNonce(ctx context.Context, address string) (uint64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: %s", types.ErrBadAddress, address)
	}

	n, err := e.c.PendingNonceAt(ctx, common.HexToAddress(address))

	return n, e.check(err)
}

// Send signs a transfer with the account's key and submits it, returning the transaction hash.
func (e *Ethereum) Send(ctx context.Context, from types.Account, t types.Transfer, nonce *uint64) (string, error) {
	key, err := privateKey(from)
	if err != nil {
		return "", err
	}

	var n uint64
	if nonce != nil {
		n = *nonce
	} else if n, err = e.c.PendingNonceAt(ctx, crypto.PubkeyToAddress(key.PublicKey)); err != nil {
		return "", fmt.Errorf("cannot get nonce: %w", e.check(err))
	}

	price, err := e.c.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot get gas price: %w", e.check(err))
	}

	tx, err := e.sign(key, t, n, price)
	if err != nil {
		return "", err
	}

	if err = e.c.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("cannot send transaction: %w", e.check(err))
	}

	return tx.Hash().Hex(), nil
}

// SendBatch submits the transfers as consecutive transactions of the account. Ethereum has no native batch call, so
// the hash of the last transaction identifies the batch.
func (e *Ethereum) SendBatch(ctx context.Context, from types.Account, ts []types.Transfer) (string, error) {
	if len(ts) == 0 {
		return "", types.ErrEmptyBatch
	}

	key, err := privateKey(from)
	if err != nil {
		return "", err
	}

	nonce, err := e.c.PendingNonceAt(ctx, crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		return "", fmt.Errorf("cannot get nonce: %w", e.check(err))
	}

	price, err := e.c.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot get gas price: %w", e.check(err))
	}

	var hash string

	for i, t := range ts {
		tx, err := e.sign(key, t, nonce+uint64(i), price)
		if err != nil {
			return hash, fmt.Errorf("batch transfer %d/%d: %w", i+1, len(ts), err)
		}

		if err = e.c.SendTransaction(ctx, tx); err != nil {
			return hash, fmt.Errorf("batch transfer %d/%d: %w", i+1, len(ts), e.check(err))
		}

		hash = tx.Hash().Hex()
	}

	return hash, nil
}

// sign builds a legacy transfer transaction and signs it for the connected chain.
func (e *Ethereum) sign(key *ecdsa.PrivateKey, t types.Transfer, nonce uint64, price *big.Int) (*gethtypes.Transaction,
	error) {
	if !common.IsHexAddress(t.To) {
		return nil, fmt.Errorf("%w: %s", types.ErrBadAddress, t.To)
	}

	if t.Amount == nil || t.Amount.Sign() <= 0 {
		return nil, types.ErrBadAmount
	}

	to := common.HexToAddress(t.To)
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      TransferGas,
		To:       &to,
		Value:    t.Amount,
	})

	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(e.chainID), key)
	if err != nil {
		return nil, fmt.Errorf("cannot sign transaction: %w", err)
	}

	return signed, nil
}

func privateKey(a types.Account) (*ecdsa.PrivateKey, error) {
	if len(a.Key) == 0 {
		return nil, types.ErrNoKey
	}

	key, err := crypto.ToECDSA(a.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid key for account %s: %w", a.Address, err)
	}

	return key, nil
}

// Address returns the hex address of a raw private key.
func Address(key []byte) (string, error) {
	k, err := crypto.ToECDSA(key)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}

	return crypto.PubkeyToAddress(k.PublicKey).Hex(), nil
}
