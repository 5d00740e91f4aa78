package state

import (
	"math"

	"github.com/holiman/uint256"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// minimumWeight 活跃协议的最低权重 max(1, min_deposit*10000/D)
func (v *Vault) minimumWeight(totalDeposit *uint256.Int) (uint32, error) {
	w := new(uint256.Int).Mul(uint256.NewInt(v.Refresh.MinDepositLamports), uint256.NewInt(uint64(consts.WeightsScale)))
	w.Div(w, totalDeposit)
	if !w.IsUint64() || w.Uint64() > math.MaxUint32 {
		return 0, vaulterr.ErrMathOverflow
	}
	return max(1, uint32(w.Uint64())), nil
}

// UpdateProtocolWeights 按各协议收益率重新分配权重
//
// d_i 为平均存款，r_i 为收益（亏损按 0 计），D、R 为总和：
// d_i += (r_i*(D-d_i) - d_i*(R-r_i)) / R，weight_i = d_i*10000/D，
// 最后把误差归到权重最大的协议上使总和为 10000。
func (v *Vault) UpdateProtocolWeights() error {
	n := len(v.Protocols)
	deposit := make([]*uint256.Int, n)
	rewards := make([]*uint256.Int, n)
	totalDeposit, totalRewards := new(uint256.Int), new(uint256.Int)
	for i := range v.Protocols {
		deposit[i] = new(uint256.Int).Div(v.Protocols[i].Rewards.DepositedAvgWad.Int(), uint256.NewInt(wad.WAD))
		rewards[i] = uint256.NewInt(uint64(max(0, v.Protocols[i].Rewards.Amount)))
		totalDeposit.Add(totalDeposit, deposit[i])
		totalRewards.Add(totalRewards, rewards[i])
	}
	if totalDeposit.IsZero() || totalRewards.IsZero() {
		return nil
	}

	for i := range v.Protocols {
		if !v.Protocols[i].IsActive() {
			continue
		}
		depositWoI := new(uint256.Int).Sub(totalDeposit, deposit[i])
		rewardsWoI := new(uint256.Int).Sub(totalRewards, rewards[i])
		num1 := new(uint256.Int).Mul(rewards[i], depositWoI)
		num2 := new(uint256.Int).Mul(deposit[i], rewardsWoI)

		// 向零截断的有符号除法
		if num1.Cmp(num2) >= 0 {
			delta := new(uint256.Int).Sub(num1, num2)
			delta.Div(delta, totalRewards)
			deposit[i] = new(uint256.Int).Add(deposit[i], delta)
		} else {
			delta := new(uint256.Int).Sub(num2, num1)
			delta.Div(delta, totalRewards)
			if delta.Cmp(deposit[i]) > 0 {
				return vaulterr.ErrMathOverflow
			}
			deposit[i] = new(uint256.Int).Sub(deposit[i], delta)
		}
	}

	minWeight, err := v.minimumWeight(totalDeposit)
	if err != nil {
		return err
	}
	scale := uint256.NewInt(uint64(consts.WeightsScale))
	for i := range v.Protocols {
		if !v.Protocols[i].IsActive() {
			continue
		}
		w := new(uint256.Int).Mul(deposit[i], scale)
		w.Div(w, totalDeposit)
		if !w.IsUint64() || w.Uint64() > math.MaxUint32 {
			return vaulterr.ErrMathOverflow
		}
		v.Protocols[i].Weight = max(minWeight, uint32(w.Uint64()))
	}

	return v.renormalizeWeights()
}

// renormalizeWeights 权重最大者（并列取最后一个）吸收舍入误差
func (v *Vault) renormalizeWeights() error {
	maxIdx := 0
	var sum uint64
	for i := range v.Protocols {
		if v.Protocols[i].Weight >= v.Protocols[maxIdx].Weight {
			maxIdx = i
		}
		sum += uint64(v.Protocols[i].Weight)
	}
	others := sum - uint64(v.Protocols[maxIdx].Weight)
	if others > uint64(consts.WeightsScale) {
		return vaulterr.Wrap(vaulterr.ErrInvalidWeights, "weights of other protocols sum to %d", others)
	}
	v.Protocols[maxIdx].Weight = consts.WeightsScale - uint32(others)
	return nil
}
