// Package events classifies pool logs by topic0 and decodes them into typed events.
package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Protocol is the pool family an event belongs to.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolV2
	ProtocolV3
	ProtocolV4
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV2:
		return "uniswapv2"
	case ProtocolV3:
		return "uniswapv3"
	case ProtocolV4:
		return "uniswapv4"
	default:
		return "unknown"
	}
}

// Kind is the closed set of events the mirror recognises.
type Kind uint8

const (
	KindUnknown Kind = iota

	KindV2Mint
	KindV2Burn
	KindV2Swap
	KindV2Sync
	KindV2Approval
	KindV2Transfer

	KindV3Mint
	KindV3Swap
	KindV3Collect
	KindV3Burn
	KindV3Flash

	KindV4Swap
	KindV4ModifyLiquidity
	KindV4Donate
	KindV4Initialize
)

type kindInfo struct {
	name      string
	signature string
	protocol  Protocol
	tracked   bool
}

var kinds = map[Kind]kindInfo{
	KindV2Mint:     {"v2_mint", "Mint(address,uint256,uint256)", ProtocolV2, true},
	KindV2Burn:     {"v2_burn", "Burn(address,uint256,uint256,address)", ProtocolV2, true},
	KindV2Swap:     {"v2_swap", "Swap(address,uint256,uint256,uint256,uint256,address)", ProtocolV2, true},
	KindV2Sync:     {"v2_sync", "Sync(uint112,uint112)", ProtocolV2, true},
	KindV2Approval: {"v2_approval", "Approval(address,address,uint256)", ProtocolV2, false},
	KindV2Transfer: {"v2_transfer", "Transfer(address,address,uint256)", ProtocolV2, false},

	KindV3Mint:    {"v3_mint", "Mint(address,address,int24,int24,uint128,uint256,uint256)", ProtocolV3, true},
	KindV3Swap:    {"v3_swap", "Swap(address,address,int256,int256,uint160,uint128,int24)", ProtocolV3, true},
	KindV3Collect: {"v3_collect", "Collect(address,address,int24,int24,uint128,uint128)", ProtocolV3, false},
	KindV3Burn:    {"v3_burn", "Burn(address,int24,int24,uint128,uint256,uint256)", ProtocolV3, true},
	KindV3Flash:   {"v3_flash", "Flash(address,address,uint256,uint256,uint256,uint256)", ProtocolV3, false},

	KindV4Swap:            {"v4_swap", "Swap(bytes32,address,int128,int128,uint160,uint128,int24,uint24)", ProtocolV4, true},
	KindV4ModifyLiquidity: {"v4_modify_liquidity", "ModifyLiquidity(bytes32,address,int24,int24,int256,bytes32)", ProtocolV4, true},
	KindV4Donate:          {"v4_donate", "Donate(bytes32,address,uint256,uint256)", ProtocolV4, false},
	KindV4Initialize:      {"v4_initialize", "Initialize(bytes32,address,address,uint24,int24,address,uint160,int24)", ProtocolV4, true},
}

var (
	byTopic  = make(map[common.Hash]Kind, len(kinds))
	topicOf  = make(map[Kind]common.Hash, len(kinds))
	allKinds []Kind
)

func init() {
	for k := KindV2Mint; k <= KindV4Initialize; k++ {
		h := crypto.Keccak256Hash([]byte(kinds[k].signature))
		byTopic[h] = k
		topicOf[k] = h
		allKinds = append(allKinds, k)
	}
}

// Classify maps a topic0 to its event kind.
func Classify(topic0 common.Hash) (Kind, bool) {
	k, ok := byTopic[topic0]
	return k, ok
}

// Topic0 returns the signature hash of k.
func (k Kind) Topic0() common.Hash {
	return topicOf[k]
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// Topics returns the topic0 of every known kind, for use in a log filter.
func Topics() []common.Hash {
	out := make([]common.Hash, 0, len(allKinds))
	for _, k := range allKinds {
		out = append(out, topicOf[k])
	}
	return out
}

// TrackedTopics returns the topic0 of every kind that changes mirrored state.
func TrackedTopics() []common.Hash {
	var out []common.Hash
	for _, k := range allKinds {
		if kinds[k].tracked {
			out = append(out, topicOf[k])
		}
	}
	return out
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Signature returns the canonical event signature.
func (k Kind) Signature() string {
	return kinds[k].signature
}

// Protocol returns the pool family of k.
func (k Kind) Protocol() Protocol {
	return kinds[k].protocol
}

// Tracked reports whether k changes mirrored state. Untracked kinds are
// recognised and then ignored.
func (k Kind) Tracked() bool {
	return kinds[k].tracked
}
