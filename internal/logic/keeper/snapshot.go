// Package keeper 链下 keeper：把链上账户组装成 vault 快照，并据此给出下一步要发送的指令。
package keeper

import (
	"fmt"
	"strconv"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/logic/oracle"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/utils"
	"lending-vault-sol/internal/pkg/wad"
)

// MarketData 某个协议相关账户的原始数据
type MarketData struct {
	ReserveKey      types.Pubkey
	Reserve         []byte
	CollateralOwned uint64 // 无 obligation 时 vault 持有的 cToken
	Obligation      []byte // 可为空
	Price           []byte // 借款币 Pyth 账户，可为空
	BorrowDecimals  uint8
}

// Inputs 组装快照所需的全部链上数据
type Inputs struct {
	Slot     uint64
	Vault    types.Pubkey
	Data     []byte // vault 账户
	LpSupply uint64
	OnHand   uint64 // vault_input 余额
	Markets  map[uint8]MarketData
}

// Leverage 借款仓位的健康度数据
type Leverage struct {
	Values   health.Values
	Price    wad.Decimal
	Decimals uint8
	Health   health.Health
}

// ProtocolView 单个协议的仓位视图
type ProtocolView struct {
	ProtocolID      uint8
	Weight          uint32
	Amount          uint64
	Borrowed        uint64
	Target          uint64
	MaxWithdrawable uint64
	RewardsSlot     uint64
	Leverage        *Leverage
}

// Snapshot 某个 slot 时 vault 的完整视图
type Snapshot struct {
	Slot      uint64
	Vault     types.Pubkey
	State     *state.Vault
	LpSupply  uint64
	OnHand    uint64
	Protocols []ProtocolView
}

// Build 解码账户数据并组装快照，没有市场数据的协议只保留链上仓位
func Build(in Inputs, band health.Band) (*Snapshot, error) {
	v, err := state.DecodeVault(in.Data)
	if err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", in.Vault, err)
	}
	s := &Snapshot{
		Slot:      in.Slot,
		Vault:     in.Vault,
		State:     v,
		LpSupply:  in.LpSupply,
		OnHand:    in.OnHand,
		Protocols: make([]ProtocolView, 0, len(v.Protocols)),
	}
	type result struct {
		view ProtocolView
		err  error
	}
	results := utils.ParallelMap(v.Protocols, len(v.Protocols), func(p state.Position) result {
		target, err := p.TargetAmount(v.CurrentTVL)
		if err != nil {
			return result{err: err}
		}
		view := ProtocolView{
			ProtocolID:  p.ProtocolID,
			Weight:      p.Weight,
			Amount:      p.Amount,
			Borrowed:    p.Borrowed,
			Target:      target,
			RewardsSlot: p.Rewards.LastSlot,
		}
		if m, ok := in.Markets[p.ProtocolID]; ok {
			if err := view.fill(m, band); err != nil {
				return result{err: fmt.Errorf("protocol %s: %w", consts.ProtocolName(p.ProtocolID), err)}
			}
		}
		return result{view: view}
	})
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		s.Protocols = append(s.Protocols, r.view)
	}
	return s, nil
}

func (p *ProtocolView) fill(m MarketData, band health.Band) error {
	reserve, err := lending.DecodeReserve(m.Reserve)
	if err != nil {
		return err
	}
	collateral := m.CollateralOwned
	var obligation *lending.Obligation
	if len(m.Obligation) > 0 {
		if obligation, err = lending.DecodeObligation(m.Obligation); err != nil {
			return err
		}
		collateral = obligation.DepositedCollateral(m.ReserveKey)
	}
	if p.MaxWithdrawable, err = reserve.CollateralToLiquidity(collateral); err != nil {
		return err
	}
	if obligation == nil || len(m.Price) == 0 {
		return nil
	}

	price, err := oracle.CurrentPrice(m.Price)
	if err != nil {
		return err
	}
	d, err := price.Decimal()
	if err != nil {
		return err
	}
	values := health.ValuesOf(obligation)
	h, err := band.Classify(values)
	if err != nil {
		return err
	}
	p.Leverage = &Leverage{Values: values, Price: d, Decimals: m.BorrowDecimals, Health: h}
	return nil
}

// LpPrice 当前 LP 价格 tvl / supply
func (s *Snapshot) LpPrice() state.LpPrice {
	return s.State.CurrentLpPrice(s.LpSupply)
}

// Fields 转成 structpb 可编码的字段表，u64 用字符串避免精度丢失
func (s *Snapshot) Fields() map[string]any {
	protocols := make([]any, 0, len(s.Protocols))
	for _, p := range s.Protocols {
		item := map[string]any{
			"protocol":         consts.ProtocolName(p.ProtocolID),
			"protocol_id":      int(p.ProtocolID),
			"weight":           int(p.Weight),
			"amount":           u64(p.Amount),
			"borrowed":         u64(p.Borrowed),
			"target":           u64(p.Target),
			"max_withdrawable": u64(p.MaxWithdrawable),
			"rewards_slot":     u64(p.RewardsSlot),
		}
		if p.Leverage != nil {
			item["health"] = p.Leverage.Health.String()
			item["allowed"] = p.Leverage.Values.Allowed.String()
			item["unhealthy"] = p.Leverage.Values.Unhealthy.String()
			item["borrowed_value"] = p.Leverage.Values.Borrowed.String()
		}
		protocols = append(protocols, item)
	}
	return map[string]any{
		"slot":              u64(s.Slot),
		"vault":             s.Vault.String(),
		"paused":            s.State.Paused,
		"tvl":               u64(s.State.CurrentTVL),
		"lp_supply":         u64(s.LpSupply),
		"lp_price":          s.LpPrice().String(),
		"previous_lp_price": s.State.PreviousLpPrice.String(),
		"on_hand":           u64(s.OnHand),
		"last_refresh":      strconv.FormatInt(s.State.LastRefreshTime, 10),
		"protocols":         protocols,
	}
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}
