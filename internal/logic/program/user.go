package program

import (
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/flows"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
)

func registerUserHandlers(m map[instruction.Discriminator]route) {
	register(m, instruction.NameCreateVaultUserTicketAccount, (*Processor).createTicketAccount)
	register(m, instruction.NameDeposit, (*Processor).deposit)
	register(m, instruction.NameWithdraw, (*Processor).withdraw)
	register(m, instruction.NameOpenWithdrawTicket, (*Processor).openWithdrawTicket)
	register(m, instruction.NameCloseWithdrawTicket, (*Processor).closeWithdrawTicket)
	register(m, instruction.NameRefreshWeights, (*Processor).refreshWeights)
}

func (p *Processor) env(r *request, v *state.Vault, key types.Pubkey) *flows.Env {
	return &flows.Env{RT: r.rt, Vault: v, VaultKey: key, Policy: p.policy}
}

// createTicketAccount
//
//	0 user (signer)  1 vault  2 ticket_mint  3 user_ticket_account
func (p *Processor) createTicketAccount(r *request) error {
	if err := r.need(4); err != nil {
		return err
	}
	user, err := r.signer(0)
	if err != nil {
		return err
	}
	v, key, err := loadVault(r, 1)
	if err != nil {
		return err
	}
	return flows.CreateTicketAccount(p.env(r, v, key), flows.CreateTicketAccounts{
		User:       user,
		TicketMint: r.key(2),
		UserTicket: r.key(3),
	})
}

// deposit
//
//	0 user (signer)  1 vault  2 user_input  3 user_lp  4 vault_input  5 lp_mint
func (p *Processor) deposit(r *request) error {
	if err := r.need(6); err != nil {
		return err
	}
	user, err := r.signer(0)
	if err != nil {
		return err
	}
	var args instruction.DepositArgs
	if err := r.args(&args); err != nil {
		return err
	}
	return withVault(r, 1, func(v *state.Vault, key types.Pubkey) error {
		ev, err := flows.Deposit(p.env(r, v, key), flows.DepositAccounts{
			User:       user,
			UserInput:  r.key(2),
			UserLp:     r.key(3),
			VaultInput: r.key(4),
			LpMint:     r.key(5),
		}, args.Amount)
		if err != nil {
			return err
		}
		r.emit(events.TypeDeposit, key, &ev)
		return nil
	})
}

// withdraw 账户顺序同 deposit，载荷恰好是一个 u64
func (p *Processor) withdraw(r *request) error {
	if err := r.need(6); err != nil {
		return err
	}
	user, err := r.signer(0)
	if err != nil {
		return err
	}
	var args instruction.WithdrawArgs
	if err := r.args(&args); err != nil {
		return err
	}
	return withVault(r, 1, func(v *state.Vault, key types.Pubkey) error {
		ev, err := flows.Withdraw(p.env(r, v, key), flows.WithdrawAccounts{
			User:       user,
			UserInput:  r.key(2),
			UserLp:     r.key(3),
			VaultInput: r.key(4),
			LpMint:     r.key(5),
		}, args.LpAmount)
		if err != nil {
			return err
		}
		r.emit(events.TypeWithdraw, key, &ev)
		return nil
	})
}

// openWithdrawTicket
//
//	0 user (signer)  1 vault  2 user_lp  3 lp_mint  4 ticket_mint  5 user_ticket_account
func (p *Processor) openWithdrawTicket(r *request) error {
	if err := r.need(6); err != nil {
		return err
	}
	user, err := r.signer(0)
	if err != nil {
		return err
	}
	var args instruction.TicketArgs
	if err := r.args(&args); err != nil {
		return err
	}
	return withVault(r, 1, func(v *state.Vault, key types.Pubkey) error {
		ev, err := flows.OpenWithdrawTicket(p.env(r, v, key), flows.OpenTicketAccounts{
			User:       user,
			UserLp:     r.key(2),
			LpMint:     r.key(3),
			TicketMint: r.key(4),
			UserTicket: r.key(5),
		}, args.LpAmount, args.Bump)
		if err != nil {
			return err
		}
		r.emit(events.TypeOpenTicket, key, &ev)
		return nil
	})
}

// closeWithdrawTicket
//
//	0 user (signer)  1 vault  2 user_input  3 vault_input  4 lp_mint  5 ticket_mint  6 user_ticket_account
func (p *Processor) closeWithdrawTicket(r *request) error {
	if err := r.need(7); err != nil {
		return err
	}
	user, err := r.signer(0)
	if err != nil {
		return err
	}
	var args instruction.TicketArgs
	if err := r.args(&args); err != nil {
		return err
	}
	return withVault(r, 1, func(v *state.Vault, key types.Pubkey) error {
		ev, err := flows.CloseWithdrawTicket(p.env(r, v, key), flows.CloseTicketAccounts{
			User:       user,
			UserInput:  r.key(2),
			VaultInput: r.key(3),
			LpMint:     r.key(4),
			TicketMint: r.key(5),
			UserTicket: r.key(6),
		}, args.LpAmount, args.Bump)
		if err != nil {
			return err
		}
		r.emit(events.TypeCloseTicket, key, &ev)
		return nil
	})
}

// refreshWeights 无需签名
//
//	0 vault  1 lp_mint  2 treasury_lp_account
func (p *Processor) refreshWeights(r *request) error {
	if err := r.need(3); err != nil {
		return err
	}
	return withVault(r, 0, func(v *state.Vault, key types.Pubkey) error {
		ev, err := flows.RefreshWeights(p.env(r, v, key), flows.RefreshAccounts{
			LpMint:     r.key(1),
			TreasuryLp: r.key(2),
		})
		if err != nil {
			return err
		}
		r.emit(events.TypeRefreshWeights, key, &ev)
		return nil
	})
}
