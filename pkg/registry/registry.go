// Package registry holds the frozen table of EVM chains Kizami indexes.
package registry

import "github.com/prettyirrelevant/kizami/pkg/kizamierr"

// Descriptor identifies a single supported chain.
type Descriptor struct {
	ChainID uint32 `json:"chainId"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
}

// chains is the static table. Adding a chain here is the only step required
// to start ingesting and serving it.
var chains = []Descriptor{
	{ChainID: 1, Slug: "ethereum-mainnet", Name: "Ethereum Mainnet"},
	{ChainID: 10, Slug: "optimism-mainnet", Name: "OP Mainnet"},
	{ChainID: 56, Slug: "binance-mainnet", Name: "BNB Smart Chain"},
	{ChainID: 137, Slug: "polygon-mainnet", Name: "Polygon"},
	{ChainID: 8453, Slug: "base-mainnet", Name: "Base"},
	{ChainID: 42161, Slug: "arbitrum-one", Name: "Arbitrum One"},
	{ChainID: 43114, Slug: "avalanche-mainnet", Name: "Avalanche C-Chain"},
}

// byID is built once at package init for O(1) lookups.
var byID map[uint32]Descriptor

func init() {
	byID = make(map[uint32]Descriptor, len(chains))
	for _, c := range chains {
		byID[c.ChainID] = c
	}
}

// List returns every registered chain descriptor.
func List() []Descriptor {
	out := make([]Descriptor, len(chains))
	copy(out, chains)
	return out
}

// Get returns the descriptor for chainID, or kizamierr.ErrUnknownChain.
func Get(chainID uint32) (Descriptor, error) {
	d, ok := byID[chainID]
	if !ok {
		return Descriptor{}, kizamierr.ErrUnknownChain
	}
	return d, nil
}
