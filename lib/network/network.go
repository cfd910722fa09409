// Package network contains the static data of the networks the faucet can serve. One network is selected by name at
// service startup.
package network

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Kinds of chain clients. See package lib/block.
const (
	ETHEREUM = "ethereum"
)

// Chain is a chain reachable from the network, ie. the relay chain itself or one of its parachains.
type Chain struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Data defines the configuration of a network. DripAmount is expressed in whole units of Currency and BalanceCap is
// the maximum whole-unit balance an address may hold to still get a drip.
type Data struct {
	NetworkName string  `json:"networkName"`
	Kind        string  `json:"kind"`
	Currency    string  `json:"currency"`
	Chains      []Chain `json:"chains"`
	Explorer    string  `json:"explorer,omitempty"`
	RPCEndpoint string  `json:"rpcEndpoint"`
	Decimals    uint8   `json:"decimals"`
	DripAmount  string  `json:"dripAmount"`
	BalanceCap  int64   `json:"balanceCap"`
}

var networks = map[string]Data{ //nolint:gochecknoglobals // static network table
	"sepolia": {
		NetworkName: "Sepolia",
		Kind:        ETHEREUM,
		Currency:    "SepoliaETH",
		Chains:      []Chain{{Name: "Sepolia", ID: 11155111}},
		Explorer:    "https://sepolia.etherscan.io/",
		RPCEndpoint: "https://rpc.sepolia.org",
		Decimals:    18,
		DripAmount:  "1",
		BalanceCap:  100,
	},
	"holesky": {
		NetworkName: "Holesky",
		Kind:        ETHEREUM,
		Currency:    "HolETH",
		Chains:      []Chain{{Name: "Holesky", ID: 17000}},
		Explorer:    "https://holesky.etherscan.io/",
		RPCEndpoint: "https://ethereum-holesky-rpc.publicnode.com",
		Decimals:    18,
		DripAmount:  "1",
		BalanceCap:  100,
	},
	"local": {
		NetworkName: "Local-Devnet",
		Kind:        ETHEREUM,
		Currency:    "ETH",
		Chains:      []Chain{{Name: "Devnet", ID: -1}},
		RPCEndpoint: "http://localhost:8545",
		Decimals:    18,
		DripAmount:  "10",
		BalanceCap:  1000,
	},
}

// Names returns the sorted names of the known networks.
func Names() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Get returns the data of the network called name, or an error listing the valid networks otherwise.
func Get(name string) (Data, error) {
	d, ok := networks[name]
	if !ok {
		return Data{}, fmt.Errorf("unknown network %q; valid networks are: [%s]", name, strings.Join(Names(), ", "))
	}

	return d, nil
}

// Unit returns 10^Decimals, the number of smallest units in one whole unit of currency.
func (d Data) Unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Decimals)), nil)
}

// DefaultAmount returns the drip amount in the smallest unit of currency.
func (d Data) DefaultAmount() (*big.Int, error) {
	amt, ok := new(big.Int).SetString(d.DripAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid drip amount %q for network %s", d.DripAmount, d.NetworkName)
	}

	return amt.Mul(amt, d.Unit()), nil
}

// Format renders an amount given in the smallest unit as whole units with up to 4 decimals.
func (d Data) Format(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	s := new(big.Rat).SetFrac(amount, d.Unit()).FloatString(4)
	if s = strings.TrimRight(strings.TrimRight(s, "0"), "."); s == "" {
		return "0"
	}

	return s
}
