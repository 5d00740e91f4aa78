package keeper

import (
	"fmt"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/health"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/pkg/wad"
)

type ActionKind uint8

const (
	ActionRewards ActionKind = iota + 1
	ActionRefresh
	ActionWithdraw
	ActionDeposit
	ActionBorrow
	ActionRepay
)

var actionNames = map[ActionKind]string{
	ActionRewards:  "rewards",
	ActionRefresh:  "refresh",
	ActionWithdraw: "withdraw",
	ActionDeposit:  "deposit",
	ActionBorrow:   "borrow",
	ActionRepay:    "repay",
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return "unknown"
}

// Action 一条待发送的指令，Amount 为预计数量（链上按当时状态重新计算）
type Action struct {
	Kind       ActionKind
	ProtocolID uint8
	Name       string
	Amount     uint64
}

// Data 指令字节，keeper 发送的指令都不带参数
func (a Action) Data() ([]byte, error) {
	return instruction.Encode(a.Name, nil)
}

// Options 计划参数
type Options struct {
	Band                  health.Band
	RebalanceThresholdBps uint32
}

// Plan 某个快照对应的指令序列
type Plan struct {
	Slot    uint64
	Actions []Action
}

func protocolAction(kind ActionKind, id uint8, op string, amount uint64) (Action, error) {
	prefix, ok := instruction.ProtocolPrefixes[id]
	if !ok {
		return Action{}, fmt.Errorf("no instructions for protocol %s", consts.ProtocolName(id))
	}
	return Action{Kind: kind, ProtocolID: id, Name: instruction.ProtocolName(prefix, op), Amount: amount}, nil
}

// BuildPlan 依次决定：刷新（附带各协议收益）> 调仓（先取后存）> 借还
//
// 刷新会改变权重，所以需要刷新时本轮只发刷新，下一轮再按新权重调仓。
func BuildPlan(s *Snapshot, opt Options) (*Plan, error) {
	plan := &Plan{Slot: s.Slot}
	v := s.State

	if v.RefreshDue(s.Slot) {
		for _, p := range s.Protocols {
			if p.Weight == 0 && p.Amount == 0 {
				continue
			}
			a, err := protocolAction(ActionRewards, p.ProtocolID, instruction.OpTVL, 0)
			if err != nil {
				return nil, err
			}
			plan.Actions = append(plan.Actions, a)
		}
		plan.Actions = append(plan.Actions, Action{Kind: ActionRefresh, Name: instruction.NameRefreshWeights})
		return plan, nil
	}

	threshold, err := wad.MulDivU64(v.CurrentTVL, uint64(opt.RebalanceThresholdBps), uint64(consts.WeightsScale))
	if err != nil {
		return nil, err
	}

	available := s.OnHand
	for _, p := range s.Protocols {
		if p.Amount <= p.Target || p.Amount-p.Target <= threshold {
			continue
		}
		a, err := protocolAction(ActionWithdraw, p.ProtocolID, instruction.OpWithdraw, p.Amount-p.Target)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, a)
		available += a.Amount
	}
	for _, p := range s.Protocols {
		if p.Target <= p.Amount || p.Target-p.Amount <= threshold {
			continue
		}
		amount := min(p.Target-p.Amount, available)
		if amount == 0 || amount < v.Refresh.MinDepositLamports {
			continue
		}
		a, err := protocolAction(ActionDeposit, p.ProtocolID, instruction.OpDeposit, amount)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, a)
		available -= amount
	}

	for _, p := range s.Protocols {
		if p.Leverage == nil {
			continue
		}
		l := p.Leverage
		switch l.Health {
		case health.Keto:
			amount, err := opt.Band.BorrowAmount(l.Values, l.Price, l.Decimals)
			if err != nil {
				// 区间不允许借款（例如 optimal 不高于 unhealthy）
				continue
			}
			a, err := protocolAction(ActionBorrow, p.ProtocolID, instruction.OpBorrow, amount)
			if err != nil {
				return nil, err
			}
			plan.Actions = append(plan.Actions, a)
		case health.Vegetarian:
			amount, err := opt.Band.RepayAmount(l.Values, l.Price, l.Decimals)
			if err != nil {
				continue
			}
			amount = min(amount, p.Borrowed)
			if amount == 0 {
				continue
			}
			a, err := protocolAction(ActionRepay, p.ProtocolID, instruction.OpRepay, amount)
			if err != nil {
				return nil, err
			}
			plan.Actions = append(plan.Actions, a)
		}
	}
	return plan, nil
}

// Fields 转成 structpb 可编码的字段表
func (p *Plan) Fields(s *Snapshot) map[string]any {
	actions := make([]any, 0, len(p.Actions))
	for _, a := range p.Actions {
		item := map[string]any{
			"kind":   a.Kind.String(),
			"name":   a.Name,
			"amount": u64(a.Amount),
		}
		if a.Kind != ActionRefresh {
			item["protocol"] = consts.ProtocolName(a.ProtocolID)
		}
		actions = append(actions, item)
	}
	return map[string]any{
		"slot":    u64(p.Slot),
		"vault":   s.Vault.String(),
		"actions": actions,
	}
}
