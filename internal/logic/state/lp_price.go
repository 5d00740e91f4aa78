package state

import (
	"math/bits"

	"github.com/shopspring/decimal"

	"lending-vault-sol/internal/pkg/wad"
)

// LpPrice LP 份额价格，以 (总资产, 已发行份额) 两个整数表示
type LpPrice struct {
	TotalTokens  uint64
	MintedTokens uint64
}

func (p LpPrice) IsZero() bool {
	return p.TotalTokens == 0 && p.MintedTokens == 0
}

// TokenToLp 存入 amount 可得的份额；未发行时 1:1
func (p LpPrice) TokenToLp(amount uint64) (uint64, error) {
	if p.MintedTokens == 0 {
		return amount, nil
	}
	return wad.MulDivU64(amount, p.MintedTokens, p.TotalTokens)
}

// LpToToken 份额可兑换的代币数量；未发行时 1:1
func (p LpPrice) LpToToken(lp uint64) (uint64, error) {
	if p.MintedTokens == 0 {
		return lp, nil
	}
	return wad.MulDivU64(lp, p.TotalTokens, p.MintedTokens)
}

// Cmp 交叉相乘比较：total_a*minted_b 对比 total_b*minted_a，不做除法
func (p LpPrice) Cmp(o LpPrice) int {
	lh, ll := bits.Mul64(p.TotalTokens, o.MintedTokens)
	rh, rl := bits.Mul64(o.TotalTokens, p.MintedTokens)
	switch {
	case lh < rh:
		return -1
	case lh > rh:
		return 1
	case ll < rl:
		return -1
	case ll > rl:
		return 1
	}
	return 0
}

func (p LpPrice) GreaterOrEqual(o LpPrice) bool {
	return p.Cmp(o) >= 0
}

// Ratio 每份额对应的代币数（仅用于展示）
func (p LpPrice) Ratio() decimal.Decimal {
	if p.MintedTokens == 0 {
		return decimal.NewFromInt(1)
	}
	total := decimal.NewFromUint64(p.TotalTokens)
	return total.DivRound(decimal.NewFromUint64(p.MintedTokens), 12)
}

func (p LpPrice) String() string {
	return p.Ratio().String()
}
