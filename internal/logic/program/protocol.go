package program

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/adapter"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/introspect"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
)

// protocolPrefixes 指令前缀 -> 协议编号
var protocolPrefixes = map[string]uint8{
	instruction.PrefixFrancium: consts.ProtocolFrancium,
	instruction.PrefixPort:     consts.ProtocolPort,
	instruction.PrefixSolend:   consts.ProtocolSolend,
}

// leveragePrefixes 支持借还的协议
var leveragePrefixes = []string{instruction.PrefixSolend}

// protocolOp 一个协议操作：通用账户个数与执行体
type protocolOp struct {
	generic int
	run     func(p *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error
}

var supplyOps = map[string]protocolOp{
	instruction.OpInitialize: {adapter.InitializeGenericAccounts, runInitialize},
	instruction.OpDeposit:    {adapter.DepositGenericAccounts, runDeposit},
	instruction.OpWithdraw:   {adapter.WithdrawGenericAccounts, runWithdraw},
	instruction.OpTVL:        {adapter.TVLGenericAccounts, runRewards},
}

var leverageOps = map[string]protocolOp{
	instruction.OpBorrow: {adapter.BorrowGenericAccounts, runBorrow},
	instruction.OpRepay:  {adapter.RepayGenericAccounts, runRepay},
}

func registerProtocolHandlers(m map[instruction.Discriminator]route) {
	for prefix, id := range protocolPrefixes {
		for op, spec := range supplyOps {
			register(m, instruction.ProtocolName(prefix, op), protocolHandler(id, spec))
		}
	}
	for _, prefix := range leveragePrefixes {
		for op, spec := range leverageOps {
			register(m, instruction.ProtocolName(prefix, op), protocolHandler(protocolPrefixes[prefix], spec))
		}
	}
}

// protocolHandler 协议指令：0 vault，随后是通用账户与协议账户，无需签名
func protocolHandler(id uint8, op protocolOp) handler {
	return func(p *Processor, r *request) error {
		if err := r.need(1); err != nil {
			return err
		}
		proto, err := p.registry.Get(id)
		if err != nil {
			return err
		}
		keys := make([]types.Pubkey, 0, len(r.accounts)-1)
		for _, a := range r.accounts[1:] {
			keys = append(keys, a.Pubkey)
		}
		return withVault(r, 0, func(v *state.Vault, key types.Pubkey) error {
			c, err := adapter.NewContext(r.rt, v, key, id, keys, op.generic, p.policy)
			if err != nil {
				return err
			}
			return op.run(p, r, c, proto, key)
		})
	}
}

func runInitialize(_ *Processor, _ *request, c *adapter.Context, proto adapter.Protocol, _ types.Pubkey) error {
	return adapter.Initialize(c, proto)
}

func runDeposit(_ *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error {
	amount, err := adapter.Deposit(c, proto)
	if err != nil {
		return err
	}
	r.emit(events.TypeProtocolDeposit, key, &events.ProtocolEvent{
		ProtocolID: proto.ID(), Amount: amount, Position: c.Position().Amount,
	})
	return nil
}

func runWithdraw(_ *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error {
	amount, err := adapter.Withdraw(c, proto, introspect.DefaultOffset)
	if err != nil {
		return err
	}
	r.emit(events.TypeProtocolWithdraw, key, &events.ProtocolEvent{
		ProtocolID: proto.ID(), Amount: amount, Position: c.Position().Amount,
	})
	return nil
}

func runRewards(_ *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error {
	rewards, err := adapter.Rewards(c, proto)
	if err != nil {
		return err
	}
	r.emit(events.TypeProtocolRewards, key, &events.ProtocolRewardsEvent{
		ProtocolID: proto.ID(), Rewards: rewards, Deposited: c.Position().Amount,
	})
	return nil
}

func runBorrow(_ *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error {
	amount, err := adapter.Borrow(c, proto)
	if err != nil {
		return err
	}
	r.emit(events.TypeProtocolBorrow, key, &events.ProtocolEvent{
		ProtocolID: proto.ID(), Amount: amount, Position: c.Position().Borrowed,
	})
	return nil
}

func runRepay(_ *Processor, r *request, c *adapter.Context, proto adapter.Protocol, key types.Pubkey) error {
	amount, err := adapter.Repay(c, proto)
	if err != nil {
		return err
	}
	r.emit(events.TypeProtocolRepay, key, &events.ProtocolEvent{
		ProtocolID: proto.ID(), Amount: amount, Position: c.Position().Borrowed,
	})
	return nil
}
