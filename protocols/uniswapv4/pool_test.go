package uniswapv4

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeByHand lays out the five static words of abi.encode(PoolKey).
func encodeByHand(k PoolKey) []byte {
	var out []byte
	out = append(out, common.LeftPadBytes(k.Currency0.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(k.Currency1.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(new(big.Int).SetUint64(uint64(k.Fee)).Bytes(), 32)...)
	out = append(out, math.U256Bytes(big.NewInt(int64(k.TickSpacing)))...)
	out = append(out, common.LeftPadBytes(k.Hooks.Bytes(), 32)...)
	return out
}

func TestPoolKeyID(t *testing.T) {
	keys := []PoolKey{
		{
			Currency0:   common.Address{},
			Currency1:   common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			Fee:         500,
			TickSpacing: 10,
		},
		{
			Currency0:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Currency1:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Fee:         0x800000,
			TickSpacing: -1,
			Hooks:       common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		},
	}

	for _, k := range keys {
		id, err := k.ID()
		require.NoError(t, err)
		assert.Equal(t, crypto.Keccak256Hash(encodeByHand(k)), id)
	}

	a, _ := keys[0].ID()
	b, _ := keys[1].ID()
	assert.NotEqual(t, a, b)
}

func TestPoolKeyConfig(t *testing.T) {
	k := PoolKey{
		Currency0:   common.HexToAddress("0x01"),
		Currency1:   common.HexToAddress("0x02"),
		Fee:         3000,
		TickSpacing: 60,
		Hooks:       common.HexToAddress("0x03"),
	}
	cfg := k.Config()
	assert.Equal(t, uint32(3000), cfg.Fee)
	assert.Equal(t, int32(60), cfg.TickSpacing)
	assert.Equal(t, k.Currency0, cfg.Token0)
	assert.Equal(t, k.Currency1, cfg.Token1)
	require.NotNil(t, cfg.Hooks)
	assert.Equal(t, k.Hooks, *cfg.Hooks)
}
