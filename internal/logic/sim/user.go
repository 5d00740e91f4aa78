package sim

import (
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
)

// User 一个持有 input 与 LP 代币账户的用户
type User struct {
	Key    types.Pubkey
	Input  types.Pubkey
	Lp     types.Pubkey
	Ticket types.Pubkey
	Bump   uint8
}

// NewUser 创建用户并给予 balance 个 input 代币
func (w *World) NewUser(label string, balance uint64) (*User, error) {
	u := &User{
		Key:   Key("user/" + label),
		Input: Key("user/" + label + "/input"),
		Lp:    Key("user/" + label + "/lp"),
	}
	w.Host.CreateTokenAccount(u.Input, w.InputMint, u.Key, balance)
	w.Host.CreateTokenAccount(u.Lp, w.LpMint, u.Key, 0)
	ticket, bump, err := types.FindProgramAddress(state.TicketAccountSeeds(w.TicketMint, u.Key), w.ProgramID)
	if err != nil {
		return nil, err
	}
	u.Ticket, u.Bump = ticket, bump
	return u, nil
}

func (w *World) userIx(u *User, name string, args any) (host.Instruction, error) {
	return instruction.New(w.ProgramID, name, args,
		host.SignerMeta(u.Key, false),
		host.WritableMeta(w.Vault),
		host.WritableMeta(u.Input),
		host.WritableMeta(u.Lp),
		host.WritableMeta(w.VaultInput),
		host.WritableMeta(w.LpMint),
	)
}

func (w *World) DepositIx(u *User, amount uint64) (host.Instruction, error) {
	return w.userIx(u, instruction.NameDeposit, &instruction.DepositArgs{Amount: amount})
}

func (w *World) WithdrawIx(u *User, lp uint64) (host.Instruction, error) {
	return w.userIx(u, instruction.NameWithdraw, &instruction.WithdrawArgs{LpAmount: lp})
}

func (w *World) CreateTicketAccountIx(u *User) (host.Instruction, error) {
	return instruction.New(w.ProgramID, instruction.NameCreateVaultUserTicketAccount, nil,
		host.SignerMeta(u.Key, true),
		host.ReadonlyMeta(w.Vault),
		host.ReadonlyMeta(w.TicketMint),
		host.WritableMeta(u.Ticket),
	)
}

func (w *World) OpenTicketIx(u *User, lp uint64) (host.Instruction, error) {
	return instruction.New(w.ProgramID, instruction.NameOpenWithdrawTicket,
		&instruction.TicketArgs{LpAmount: lp, Bump: u.Bump},
		host.SignerMeta(u.Key, false),
		host.WritableMeta(w.Vault),
		host.WritableMeta(u.Lp),
		host.WritableMeta(w.LpMint),
		host.WritableMeta(w.TicketMint),
		host.WritableMeta(u.Ticket),
	)
}

func (w *World) CloseTicketIx(u *User, lp uint64) (host.Instruction, error) {
	return instruction.New(w.ProgramID, instruction.NameCloseWithdrawTicket,
		&instruction.TicketArgs{LpAmount: lp, Bump: u.Bump},
		host.SignerMeta(u.Key, false),
		host.WritableMeta(w.Vault),
		host.WritableMeta(u.Input),
		host.WritableMeta(w.VaultInput),
		host.WritableMeta(w.LpMint),
		host.WritableMeta(w.TicketMint),
		host.WritableMeta(u.Ticket),
	)
}

// Deposit 用户单独执行一笔存款
func (w *World) Deposit(u *User, amount uint64) error {
	ix, err := w.DepositIx(u, amount)
	if err != nil {
		return err
	}
	return w.Run([]types.Pubkey{u.Key}, ix)
}

// Withdraw vault 手上的代币足够时直接提现
func (w *World) Withdraw(u *User, lp uint64) error {
	ix, err := w.WithdrawIx(u, lp)
	if err != nil {
		return err
	}
	return w.Run([]types.Pubkey{u.Key}, ix)
}

// WithdrawFrom 同一交易中先从协议取回缺口，再提现
func (w *World) WithdrawFrom(id uint8, u *User, lp uint64) error {
	pw, err := w.ProtocolIx(id, instruction.OpWithdraw)
	if err != nil {
		return err
	}
	ix, err := w.WithdrawIx(u, lp)
	if err != nil {
		return err
	}
	return w.Run([]types.Pubkey{u.Key}, pw, ix)
}

func (w *World) Balance(account types.Pubkey) uint64 {
	return w.Host.TokenBalance(account)
}
