// Package chains names the EVM chains the mirror knows and the V4 contracts
// deployed on them.
package chains

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	Mainnet  uint64 = 1
	Base     uint64 = 8453
	Arbitrum uint64 = 42161
	Katana   uint64 = 747474
)

var names = map[uint64]string{
	Mainnet:  "ethereum",
	Base:     "base",
	Arbitrum: "arbitrum",
	Katana:   "katana",
}

// Name returns a short lowercase name, or the decimal id for unknown chains.
func Name(chainID uint64) string {
	if n, ok := names[chainID]; ok {
		return n
	}
	return strconv.FormatUint(chainID, 10)
}

// V4Deployment holds the addresses of the singleton PoolManager and its
// StateView lens on one chain.
type V4Deployment struct {
	PoolManager common.Address
	StateView   common.Address
}

var v4Deployments = map[uint64]V4Deployment{
	Mainnet: {
		PoolManager: common.HexToAddress("0x000000000004444c5dc75cB358380D2e3dE08A90"),
		StateView:   common.HexToAddress("0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227"),
	},
}

// DefaultV4Deployment returns the known V4 deployment of a chain.
func DefaultV4Deployment(chainID uint64) (V4Deployment, bool) {
	d, ok := v4Deployments[chainID]
	return d, ok
}
