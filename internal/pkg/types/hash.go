package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Equals(other Hash) bool {
	return h == other
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != 32 {
		return h, fmt.Errorf("invalid hash length")
	}
	copy(h[:], data)
	return h, nil
}

// HashV 对多段字节拼接后做 sha256（与链上 hashv 一致）
func HashV(parts ...[]byte) Hash {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// CheckHashBytes 账户集合哈希截断后的长度
const CheckHashBytes = 16

// CheckHash 是 CPI 账户集合哈希的截断值，存放在 Position 中作为外部账户的身份锚点
type CheckHash [CheckHashBytes]byte

func (c CheckHash) String() string {
	return base58.Encode(c[:])
}

func (c CheckHash) IsZero() bool {
	return c == CheckHash{}
}

// CheckHashOf 按顺序拼接账户公钥计算截断哈希
func CheckHashOf(keys ...Pubkey) CheckHash {
	parts := make([][]byte, len(keys))
	for i := range keys {
		parts[i] = keys[i][:]
	}
	full := HashV(parts...)
	var c CheckHash
	copy(c[:], full[:CheckHashBytes])
	return c
}
