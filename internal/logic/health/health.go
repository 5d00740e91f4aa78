// Package health 杠杆仓位的健康度控制：按 allowed / unhealthy / borrowed 三个价值
// 计算目标借款或还款，超出区间时拒绝操作。
package health

import (
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

type Health uint8

const (
	Vegan      Health = iota // 区间内，无需操作
	Vegetarian               // 借多了，需要还款
	Keto                     // 借少了，可以继续借
)

func (h Health) String() string {
	switch h {
	case Vegan:
		return "vegan"
	case Vegetarian:
		return "vegetarian"
	case Keto:
		return "keto"
	default:
		return "unknown"
	}
}

// Band 健康度区间，百分比
type Band struct {
	Min     uint64
	Optimal uint64
	Max     uint64
}

// Values obligation 上的三个价值（WAD）
type Values struct {
	Allowed   wad.Decimal
	Unhealthy wad.Decimal
	Borrowed  wad.Decimal
}

func ValuesOf(o *lending.Obligation) Values {
	return Values{
		Allowed:   wad.DecimalFromScaled(o.AllowedBorrowValue),
		Unhealthy: wad.DecimalFromScaled(o.UnhealthyBorrowValue),
		Borrowed:  wad.DecimalFromScaled(o.BorrowedValue),
	}
}

// Utilisation borrowed*100/allowed，allowed 为 0 时返回 0
func Utilisation(v Values) (wad.Decimal, error) {
	if v.Allowed.IsZero() {
		return wad.Zero(), nil
	}
	pct, err := v.Borrowed.TryMulU64(wad.PercentScale)
	if err != nil {
		return wad.Decimal{}, err
	}
	return pct.TryDiv(v.Allowed)
}

func (b Band) Classify(v Values) (Health, error) {
	if v.Allowed.IsZero() {
		return Keto, nil
	}
	u, err := Utilisation(v)
	if err != nil {
		return Vegan, err
	}
	switch {
	case u.Cmp(wad.DecimalFromU64(b.Min)) <= 0:
		return Keto, nil
	case u.Cmp(wad.DecimalFromU64(b.Max)) >= 0:
		return Vegetarian, nil
	default:
		return Vegan, nil
	}
}

// optimalValue allowed * optimal / 100
func (b Band) optimalValue(v Values) (wad.Decimal, error) {
	d, err := v.Allowed.TryMulU64(b.Optimal)
	if err != nil {
		return wad.Decimal{}, err
	}
	return d.TryDivU64(wad.PercentScale)
}

// BorrowValue 借到最优位置还差的价值
func (b Band) BorrowValue(v Values) (wad.Decimal, error) {
	opt, err := b.optimalValue(v)
	if err != nil {
		return wad.Decimal{}, err
	}
	if !opt.Gt(v.Unhealthy) {
		return wad.Decimal{}, vaulterr.Wrap(vaulterr.ErrUnhealthyOperation,
			"optimal %s does not exceed unhealthy %s", opt, v.Unhealthy)
	}
	if !opt.Gt(v.Borrowed) {
		return wad.Decimal{}, vaulterr.Wrap(vaulterr.ErrInvalidBorrow,
			"borrowed %s already at optimal %s", v.Borrowed, opt)
	}
	return opt.TrySub(v.Borrowed)
}

// RepayValue 超出最优位置的借款价值
func (b Band) RepayValue(v Values) (wad.Decimal, error) {
	opt, err := b.optimalValue(v)
	if err != nil {
		return wad.Decimal{}, err
	}
	if !v.Borrowed.Gt(opt) {
		return wad.Decimal{}, vaulterr.Wrap(vaulterr.ErrInvalidReapy,
			"borrowed %s within optimal %s", v.Borrowed, opt)
	}
	return v.Borrowed.TrySub(opt)
}

// tokens value * 10^decimals / price
func tokens(value, price wad.Decimal, decimals uint8) (wad.Decimal, error) {
	if price.IsZero() {
		return wad.Decimal{}, vaulterr.ErrMathOverflow
	}
	scaled, err := value.TryMulU64(pow10(decimals))
	if err != nil {
		return wad.Decimal{}, err
	}
	return scaled.TryDiv(price)
}

// BorrowAmount 借款数量向下取整，保证借后不超过最优位置
func (b Band) BorrowAmount(v Values, price wad.Decimal, decimals uint8) (uint64, error) {
	value, err := b.BorrowValue(v)
	if err != nil {
		return 0, err
	}
	t, err := tokens(value, price, decimals)
	if err != nil {
		return 0, err
	}
	amount, err := t.TryFloorU64()
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidBorrow, "borrow value %s rounds to zero", value)
	}
	return amount, nil
}

// RepayAmount 还款数量向上取整，保证还后回到最优位置以内
func (b Band) RepayAmount(v Values, price wad.Decimal, decimals uint8) (uint64, error) {
	value, err := b.RepayValue(v)
	if err != nil {
		return 0, err
	}
	t, err := tokens(value, price, decimals)
	if err != nil {
		return 0, err
	}
	return t.TryCeilU64()
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}
