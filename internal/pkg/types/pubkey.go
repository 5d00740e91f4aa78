package types

import (
	"bytes"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Equals(other Pubkey) bool {
	return p == other
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func (p Pubkey) Bytes() []byte {
	return p[:]
}

// Less 按字节序比较，用于需要稳定排序的场景（例如 Kafka 分区、快照 key）
func (p Pubkey) Less(other Pubkey) bool {
	return bytes.Compare(p[:], other[:]) < 0
}

// TryPubkeyFromBase58 解析 base58 字符串为 Pubkey，失败时返回 error（用于不信任输入路径）
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != 32 {
		return Pubkey{}, fmt.Errorf("invalid pubkey length: got %d, want 32, input=%q", len(data), s)
	}
	var p Pubkey
	copy(p[:], data)
	return p, nil
}

// PubkeyFromBase58 用于常量初始化，解析失败直接 panic
func PubkeyFromBase58(s string) Pubkey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

func PubkeysFromBase58(strs []string) []Pubkey {
	result := make([]Pubkey, 0, len(strs))
	for _, s := range strs {
		result = append(result, PubkeyFromBase58(s))
	}
	return result
}

// FindProgramAddress 计算 PDA 及其 bump（从 255 向下搜索第一个不在曲线上的地址）
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	pk, bump, err := common.FindProgramAddress(seeds, common.PublicKey(programID))
	if err != nil {
		return Pubkey{}, 0, fmt.Errorf("find program address: %w", err)
	}
	return Pubkey(pk), bump, nil
}

// CreateProgramAddress 用完整 seeds（含 bump）计算 PDA，用于校验签名种子
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	pk, err := common.CreateProgramAddress(seeds, common.PublicKey(programID))
	if err != nil {
		return Pubkey{}, fmt.Errorf("create program address: %w", err)
	}
	return Pubkey(pk), nil
}

// CreateWithSeed 对应 system program 的 create_account_with_seed 地址推导
func CreateWithSeed(base Pubkey, seed string, owner Pubkey) Pubkey {
	return Pubkey(common.CreateWithSeed(common.PublicKey(base), seed, common.PublicKey(owner)))
}
