package wad

import (
	"github.com/holiman/uint256"

	"lending-vault-sol/internal/pkg/vaulterr"
)

// U128 以两个小端 limb 存储的 128 位无符号整数，borsh 编码与链上 u128 一致
type U128 [2]uint64

// U192 以三个小端 limb 存储的 192 位无符号整数
type U192 [3]uint64

func U128From64(v uint64) U128 {
	return U128{v, 0}
}

func (u U128) Int() *uint256.Int {
	return &uint256.Int{u[0], u[1], 0, 0}
}

func (u U128) IsZero() bool {
	return u[0] == 0 && u[1] == 0
}

func (u U128) Cmp(o U128) int {
	return u.Int().Cmp(o.Int())
}

// Uint64 截断检查后转换为 u64
func (u U128) Uint64() (uint64, error) {
	if u[1] != 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	return u[0], nil
}

func (u U128) String() string {
	return u.Int().Dec()
}

// U128FromInt 超过 128 位返回 MathOverflow
func U128FromInt(z *uint256.Int) (U128, error) {
	if z.BitLen() > 128 {
		return U128{}, vaulterr.ErrMathOverflow
	}
	return U128{z[0], z[1]}, nil
}

func (u U128) Add(o U128) (U128, error) {
	z, overflow := new(uint256.Int).AddOverflow(u.Int(), o.Int())
	if err := fits(z, overflow, 128); err != nil {
		return U128{}, err
	}
	return U128FromInt(z)
}

func (u U128) Sub(o U128) (U128, error) {
	z, underflow := new(uint256.Int).SubOverflow(u.Int(), o.Int())
	if underflow {
		return U128{}, vaulterr.ErrMathOverflow
	}
	return U128FromInt(z)
}

// MulU64 u128 * u64，结果仍需落在 128 位内
func (u U128) MulU64(v uint64) (U128, error) {
	z, overflow := new(uint256.Int).MulOverflow(u.Int(), uint256.NewInt(v))
	if err := fits(z, overflow, 128); err != nil {
		return U128{}, err
	}
	return U128FromInt(z)
}

// MulDiv 计算 u*m/d，中间值允许到 192 位（对应链上 U192 中间量）
func (u U128) MulDiv(m, d *uint256.Int) (U128, error) {
	z, err := mulDiv(u.Int(), m, d, 192)
	if err != nil {
		return U128{}, err
	}
	return U128FromInt(z)
}

func (u U192) Int() *uint256.Int {
	return &uint256.Int{u[0], u[1], u[2], 0}
}

func (u U192) IsZero() bool {
	return u[0] == 0 && u[1] == 0 && u[2] == 0
}

// U192FromInt 超过 192 位返回 MathOverflow
func U192FromInt(z *uint256.Int) (U192, error) {
	if z.BitLen() > 192 {
		return U192{}, vaulterr.ErrMathOverflow
	}
	return U192{z[0], z[1], z[2]}, nil
}
