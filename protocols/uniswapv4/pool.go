// Package uniswapv4 describes pools that live inside the singleton PoolManager
// and are addressed by the hash of their PoolKey instead of a contract address.
package uniswapv4

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey identifies a V4 pool.
type PoolKey struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tickSpacing"`
	Hooks       common.Address `json:"hooks"`
}

var (
	poolKeyArgs     abi.Arguments
	poolKeyArgsOnce sync.Once
	poolKeyArgsErr  error
)

func keyArguments() (abi.Arguments, error) {
	poolKeyArgsOnce.Do(func() {
		types := []string{"address", "address", "uint24", "int24", "address"}
		args := make(abi.Arguments, 0, len(types))
		for _, name := range types {
			typ, err := abi.NewType(name, "", nil)
			if err != nil {
				poolKeyArgsErr = err
				return
			}
			args = append(args, abi.Argument{Type: typ})
		}
		poolKeyArgs = args
	})
	return poolKeyArgs, poolKeyArgsErr
}

// ID returns the PoolId, keccak256(abi.encode(key)), as computed by the PoolManager.
func (k PoolKey) ID() (common.Hash, error) {
	args, err := keyArguments()
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := args.Pack(
		k.Currency0,
		k.Currency1,
		new(big.Int).SetUint64(uint64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Config converts the key into the shared pool configuration.
func (k PoolKey) Config() protocols.PoolConfig {
	hooks := k.Hooks
	return protocols.PoolConfig{
		Fee:         k.Fee,
		TickSpacing: k.TickSpacing,
		Token0:      k.Currency0,
		Token1:      k.Currency1,
		Hooks:       &hooks,
	}
}
