package wad

import (
	"math/bits"

	"github.com/holiman/uint256"

	"lending-vault-sol/internal/pkg/vaulterr"
)

const (
	// Scale 小数位数
	Scale = 18
	// WAD 定点数缩放因子 1e18
	WAD uint64 = 1_000_000_000_000_000_000
	// HalfWAD 用于四舍五入
	HalfWAD uint64 = WAD / 2
	// PercentScale 百分比分母
	PercentScale uint64 = 100
)

var wadInt = uint256.NewInt(WAD)

// AddU64 带溢出检查的加法
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	return sum, nil
}

// SubU64 带下溢检查的减法
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	return diff, nil
}

// MulU64 带溢出检查的乘法
func MulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	return lo, nil
}

// MulDivU64 计算 a*b/d（向下取整），中间结果为 128 位
func MulDivU64(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, vaulterr.ErrMathOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// MulDivCeilU64 计算 ceil(a*b/d)
func MulDivCeilU64(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, vaulterr.ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, vaulterr.ErrMathOverflow
	}
	q, r := bits.Div64(hi, lo, d)
	if r != 0 {
		return AddU64(q, 1)
	}
	return q, nil
}

// fits 检查结果位宽，超出即视为溢出
func fits(z *uint256.Int, overflow bool, maxBits int) error {
	if overflow || z.BitLen() > maxBits {
		return vaulterr.ErrMathOverflow
	}
	return nil
}

// mulDiv 计算 x*y/d，乘积超出 256 位或除数为 0 时报错
func mulDiv(x, y, d *uint256.Int, maxBits int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, vaulterr.ErrMathOverflow
	}
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, vaulterr.ErrMathOverflow
	}
	z.Div(z, d)
	if err := fits(z, false, maxBits); err != nil {
		return nil, err
	}
	return z, nil
}
