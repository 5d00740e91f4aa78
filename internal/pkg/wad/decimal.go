package wad

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"lending-vault-sol/internal/pkg/vaulterr"
)

// Decimal 是以 WAD 缩放的 192 位无符号定点数，所有运算都带溢出检查
type Decimal struct {
	raw uint256.Int
}

func Zero() Decimal {
	return Decimal{}
}

func One() Decimal {
	return Decimal{raw: *uint256.NewInt(WAD)}
}

// DecimalFromU64 整数 n 转换为 n*WAD，不会溢出 192 位
func DecimalFromU64(n uint64) Decimal {
	var d Decimal
	d.raw.Mul(uint256.NewInt(n), wadInt)
	return d
}

// DecimalFromPercent p/100
func DecimalFromPercent(p uint64) Decimal {
	var d Decimal
	d.raw.Mul(uint256.NewInt(p), uint256.NewInt(WAD/PercentScale))
	return d
}

// DecimalFromScaled 直接使用已缩放的原始值
func DecimalFromScaled(v U192) Decimal {
	return Decimal{raw: *v.Int()}
}

// DecimalFromScaledU128 u128 原始值（如 deposited_avg_wad）
func DecimalFromScaledU128(v U128) Decimal {
	return Decimal{raw: *v.Int()}
}

// DecimalFromInt 原始缩放值，超出 192 位返回 MathOverflow
func DecimalFromInt(z *uint256.Int) (Decimal, error) {
	if err := fits(z, false, 192); err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

// Scaled 返回原始缩放值（用于持久化）
func (d Decimal) Scaled() U192 {
	return U192{d.raw[0], d.raw[1], d.raw[2]}
}

func (d Decimal) Int() *uint256.Int {
	return d.raw.Clone()
}

func (d Decimal) IsZero() bool {
	return d.raw.IsZero()
}

func (d Decimal) Cmp(o Decimal) int {
	return d.raw.Cmp(&o.raw)
}

func (d Decimal) Lt(o Decimal) bool { return d.Cmp(o) < 0 }
func (d Decimal) Gt(o Decimal) bool { return d.Cmp(o) > 0 }

func (d Decimal) TryAdd(o Decimal) (Decimal, error) {
	z, overflow := new(uint256.Int).AddOverflow(&d.raw, &o.raw)
	if err := fits(z, overflow, 192); err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

func (d Decimal) TrySub(o Decimal) (Decimal, error) {
	z, underflow := new(uint256.Int).SubOverflow(&d.raw, &o.raw)
	if underflow {
		return Decimal{}, vaulterr.ErrMathOverflow
	}
	return Decimal{raw: *z}, nil
}

// TryMul d*o/WAD
func (d Decimal) TryMul(o Decimal) (Decimal, error) {
	z, err := mulDiv(&d.raw, &o.raw, wadInt, 192)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

func (d Decimal) TryMulU64(n uint64) (Decimal, error) {
	z, overflow := new(uint256.Int).MulOverflow(&d.raw, uint256.NewInt(n))
	if err := fits(z, overflow, 192); err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

// TryMulRate d*r/WAD
func (d Decimal) TryMulRate(r Rate) (Decimal, error) {
	z, err := mulDiv(&d.raw, &r.raw, wadInt, 192)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

// TryDiv d*WAD/o，除数为 0 返回 MathOverflow
func (d Decimal) TryDiv(o Decimal) (Decimal, error) {
	z, err := mulDiv(&d.raw, wadInt, &o.raw, 192)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

func (d Decimal) TryDivU64(n uint64) (Decimal, error) {
	if n == 0 {
		return Decimal{}, vaulterr.ErrMathOverflow
	}
	z := new(uint256.Int).Div(&d.raw, uint256.NewInt(n))
	return Decimal{raw: *z}, nil
}

// TryDivRate d*WAD/r
func (d Decimal) TryDivRate(r Rate) (Decimal, error) {
	z, err := mulDiv(&d.raw, wadInt, &r.raw, 192)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{raw: *z}, nil
}

// TryFloorU64 向下取整为 u64
func (d Decimal) TryFloorU64() (uint64, error) {
	z := new(uint256.Int).Div(&d.raw, wadInt)
	if !z.IsUint64() {
		return 0, vaulterr.ErrMathOverflow
	}
	return z.Uint64(), nil
}

// TryCeilU64 向上取整为 u64
func (d Decimal) TryCeilU64() (uint64, error) {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(&d.raw, wadInt, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, vaulterr.ErrMathOverflow
	}
	return q.Uint64(), nil
}

// TryRoundU64 四舍五入为 u64
func (d Decimal) TryRoundU64() (uint64, error) {
	z, overflow := new(uint256.Int).AddOverflow(&d.raw, uint256.NewInt(HalfWAD))
	if overflow {
		return 0, vaulterr.ErrMathOverflow
	}
	z.Div(z, wadInt)
	if !z.IsUint64() {
		return 0, vaulterr.ErrMathOverflow
	}
	return z.Uint64(), nil
}

// ToDecimal 转换为 shopspring/decimal，仅用于展示与上报
func (d Decimal) ToDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(d.raw.ToBig(), -Scale)
}

func (d Decimal) String() string {
	return d.ToDecimal().String()
}
