package state

import (
	"github.com/holiman/uint256"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// RefreshResult 一次权重刷新的结果，LpFee 由调用方铸造给 treasury
type RefreshResult struct {
	PreviousPrice LpPrice
	CurrentPrice  LpPrice
	RewardsSum    int64
	LpFee         uint64
}

// RefreshWeights 实现各协议收益、重算权重并更新价格快照
//
// 亏损在快照前从 TVL 扣除；收益在快照后计入 TVL，并按 FeePerMil 计算给 treasury 的 LP。
func (v *Vault) RefreshWeights(slot, lpSupply uint64) (RefreshResult, error) {
	var res RefreshResult

	last := uint64(max(0, v.LastRefreshTime))
	elapsed, err := wad.SubU64(slot, last)
	if err != nil {
		return res, err
	}
	minElapsed := v.MinRefreshElapsed()
	if elapsed <= minElapsed {
		return res, vaulterr.Wrap(vaulterr.ErrForbiddenRefresh, "elapsed %d <= %d", elapsed, minElapsed)
	}

	if v.LastRefreshTime != 0 {
		for i := range v.Protocols {
			p := &v.Protocols[i]
			if !p.IsActive() {
				continue
			}
			age, err := wad.SubU64(slot, p.Rewards.LastSlot)
			if err != nil {
				return res, err
			}
			if age >= consts.MaxElapsedSlotsForTVL {
				return res, vaulterr.Wrap(vaulterr.ErrStaleProtocolTVL, "protocol %s rewards %d slots old",
					consts.ProtocolName(p.ProtocolID), age)
			}
		}
	}

	v.LastRefreshTime = int64(slot)

	var sum int64
	for i := range v.Protocols {
		s, err := addInt64(sum, v.Protocols[i].Rewards.Amount)
		if err != nil {
			return res, err
		}
		sum = s
	}
	res.RewardsSum = sum

	if err := v.UpdateProtocolWeights(); err != nil {
		return res, err
	}
	for i := range v.Protocols {
		if err := v.Protocols[i].UpdateTVL(); err != nil {
			return res, err
		}
		if err := v.Protocols[i].Rewards.ResetIntegral(); err != nil {
			return res, err
		}
	}

	if sum < 0 {
		tvl, err := addSigned(v.CurrentTVL, sum)
		if err != nil {
			return res, err
		}
		v.CurrentTVL = tvl
	}

	res.PreviousPrice = v.PreviousLpPrice
	v.PreviousLpPrice = v.CurrentLpPrice(lpSupply)
	res.CurrentPrice = v.PreviousLpPrice

	if sum > 0 {
		fee, err := lpFee(uint64(sum), lpSupply, v.CurrentTVL)
		if err != nil {
			return res, err
		}
		tvl, err := wad.AddU64(v.CurrentTVL, uint64(sum))
		if err != nil {
			return res, err
		}
		v.CurrentTVL = tvl
		res.LpFee = fee
	}
	return res, nil
}

// MinRefreshElapsed 两次刷新之间必须超过的 slot 数，未配置时为 1500
func (v *Vault) MinRefreshElapsed() uint64 {
	if v.Refresh.MinElapsedTime > 0 {
		return uint64(v.Refresh.MinElapsedTime)
	}
	return consts.MinElapsedSlotsForRefresh
}

// RefreshDue slot 时刷新是否会通过时间门槛
func (v *Vault) RefreshDue(slot uint64) bool {
	last := uint64(max(0, v.LastRefreshTime))
	return slot > last && slot-last > v.MinRefreshElapsed()
}

// lpFee fee*rewards*supply / (tvl + (1000-fee)*rewards/1000) / 1000
func lpFee(rewards, supply, tvl uint64) (uint64, error) {
	num := new(uint256.Int).Mul(uint256.NewInt(consts.FeePerMil), uint256.NewInt(rewards))
	num.Mul(num, uint256.NewInt(supply))

	den := new(uint256.Int).Mul(uint256.NewInt(1000-consts.FeePerMil), uint256.NewInt(rewards))
	den.Div(den, uint256.NewInt(1000))
	den.Add(den, uint256.NewInt(tvl))
	if den.IsZero() {
		return 0, vaulterr.ErrMathOverflow
	}
	num.Div(num, den)
	num.Div(num, uint256.NewInt(1000))
	if !num.IsUint64() {
		return 0, vaulterr.ErrMathOverflow
	}
	return num.Uint64(), nil
}

func addInt64(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, vaulterr.ErrMathOverflow
	}
	return s, nil
}
