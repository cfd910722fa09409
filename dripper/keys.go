package dripper

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tarancss/hd"

	"github.com/tarancss/faucet/lib/block/ethereum"
	"github.com/tarancss/faucet/lib/block/types"
	"github.com/tarancss/faucet/lib/config"
)

// LoadAccounts returns the primary and backup accounts. An account with a hex key uses it, otherwise it is derived
// from the HD seed.
func LoadAccounts(seed string, primary, backup config.AccountConfig) (types.Account, types.Account, error) {
	var hdw *hd.HdWallet

	load := func(ac config.AccountConfig) (types.Account, error) {
		var key []byte

		var err error

		if ac.Key != "" {
			if key, err = hex.DecodeString(strings.TrimPrefix(ac.Key, "0x")); err != nil {
				return types.Account{}, fmt.Errorf("invalid account key: %w", err)
			}
		} else {
			if hdw == nil {
				if seed == "" {
					return types.Account{}, fmt.Errorf("no key nor HD seed configured: %w", types.ErrNoKey)
				}

				s, err := hex.DecodeString(seed)
				if err != nil {
					return types.Account{}, fmt.Errorf("invalid HD seed: %w", err)
				}

				if hdw, err = hd.Init(s); err != nil {
					return types.Account{}, fmt.Errorf("cannot initialise HD wallet: %w", err)
				}
			}

			if _, key, _, err = hdw.Address(ac.Wallet, ac.Change, ac.ID); err != nil {
				return types.Account{}, fmt.Errorf("cannot derive HD account %d/%d/%d: %w", ac.Wallet, ac.Change,
					ac.ID, err)
			}
		}

		addr, err := ethereum.Address(key)
		if err != nil {
			return types.Account{}, err
		}

		return types.Account{Address: addr, Key: key}, nil
	}

	p, err := load(primary)
	if err != nil {
		return types.Account{}, types.Account{}, fmt.Errorf("primary account: %w", err)
	}

	b, err := load(backup)
	if err != nil {
		return types.Account{}, types.Account{}, fmt.Errorf("backup account: %w", err)
	}

	return p, b, nil
}
