package wad

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"lending-vault-sol/internal/pkg/vaulterr"
)

// Rate 是以 WAD 缩放的 128 位无符号定点数（汇率、比例）
type Rate struct {
	raw uint256.Int
}

func RateOne() Rate {
	return Rate{raw: *uint256.NewInt(WAD)}
}

func RateFromPercent(p uint64) Rate {
	var r Rate
	r.raw.Mul(uint256.NewInt(p), uint256.NewInt(WAD/PercentScale))
	return r
}

func RateFromScaled(v U128) Rate {
	return Rate{raw: *v.Int()}
}

// RateFromDecimal 超出 128 位返回 MathOverflow
func RateFromDecimal(d Decimal) (Rate, error) {
	if d.raw.BitLen() > 128 {
		return Rate{}, vaulterr.ErrMathOverflow
	}
	return Rate{raw: d.raw}, nil
}

func (r Rate) ToDecimal() Decimal {
	return Decimal{raw: r.raw}
}

func (r Rate) Scaled() U128 {
	return U128{r.raw[0], r.raw[1]}
}

func (r Rate) IsZero() bool {
	return r.raw.IsZero()
}

func (r Rate) Cmp(o Rate) int {
	return r.raw.Cmp(&o.raw)
}

func (r Rate) TryAdd(o Rate) (Rate, error) {
	z, overflow := new(uint256.Int).AddOverflow(&r.raw, &o.raw)
	if err := fits(z, overflow, 128); err != nil {
		return Rate{}, err
	}
	return Rate{raw: *z}, nil
}

func (r Rate) TrySub(o Rate) (Rate, error) {
	z, underflow := new(uint256.Int).SubOverflow(&r.raw, &o.raw)
	if underflow {
		return Rate{}, vaulterr.ErrMathOverflow
	}
	return Rate{raw: *z}, nil
}

// TryMul r*o/WAD
func (r Rate) TryMul(o Rate) (Rate, error) {
	z, err := mulDiv(&r.raw, &o.raw, wadInt, 128)
	if err != nil {
		return Rate{}, err
	}
	return Rate{raw: *z}, nil
}

// TryDiv r*WAD/o
func (r Rate) TryDiv(o Rate) (Rate, error) {
	z, err := mulDiv(&r.raw, wadInt, &o.raw, 128)
	if err != nil {
		return Rate{}, err
	}
	return Rate{raw: *z}, nil
}

func (r Rate) String() string {
	return decimal.NewFromBigInt(r.raw.ToBig(), -Scale).String()
}
