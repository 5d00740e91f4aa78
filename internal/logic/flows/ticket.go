package flows

import (
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// TicketAccount ["ticket_mint", ticket_mint, user] 的 PDA 与 bump
func TicketAccount(d host.Deriver, programID, ticketMint, user types.Pubkey) (types.Pubkey, uint8, error) {
	return d.FindProgramAddress(state.TicketAccountSeeds(ticketMint, user), programID)
}

// checkTicketAccount 票据账户必须是该用户的 PDA，由 vault 持有
func (e *Env) checkTicketAccount(ticketMint, user, account types.Pubkey, bump uint8) error {
	seeds := append(state.TicketAccountSeeds(ticketMint, user), []byte{bump})
	want, err := e.RT.CreateProgramAddress(seeds, e.RT.ProgramID())
	if err != nil || want != account {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "ticket account %s does not belong to %s", account, user)
	}
	return e.checkTokenAccount(account, e.VaultKey, ticketMint)
}

type CreateTicketAccounts struct {
	User       types.Pubkey
	TicketMint types.Pubkey
	UserTicket types.Pubkey
}

// CreateTicketAccount 为用户创建由 vault 持有的票据代币账户
func CreateTicketAccount(e *Env, a CreateTicketAccounts) error {
	if err := e.checkTicketMint(a.TicketMint); err != nil {
		return err
	}
	want, bump, err := TicketAccount(e.RT, e.RT.ProgramID(), a.TicketMint, a.User)
	if err != nil {
		return err
	}
	if want != a.UserTicket {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "ticket account %s, want %s", a.UserTicket, want)
	}
	seeds := append(state.TicketAccountSeeds(a.TicketMint, a.User), []byte{bump})
	return e.RT.InitializeAccount(a.UserTicket, a.TicketMint, e.VaultKey, seeds)
}

type OpenTicketAccounts struct {
	User       types.Pubkey // 签名者
	UserLp     types.Pubkey
	LpMint     types.Pubkey
	TicketMint types.Pubkey
	UserTicket types.Pubkey
}

// OpenWithdrawTicket 销毁 LP，等量铸造票据
func OpenWithdrawTicket(e *Env, a OpenTicketAccounts, lp uint64, bump uint8) (events.TicketEvent, error) {
	var ev events.TicketEvent
	if e.Policy.WithdrawPaused(e.Vault) {
		return ev, vaulterr.ErrOnPaused
	}
	if err := e.checkLpMint(a.LpMint); err != nil {
		return ev, err
	}
	if err := e.checkTicketMint(a.TicketMint); err != nil {
		return ev, err
	}
	if err := e.checkTicketAccount(a.TicketMint, a.User, a.UserTicket, bump); err != nil {
		return ev, err
	}
	if _, err := e.currentPrice(a.LpMint); err != nil {
		return ev, err
	}

	if err := e.RT.Burn(a.LpMint, a.UserLp, a.User, lp); err != nil {
		return ev, err
	}
	if err := e.RT.MintTo(a.TicketMint, a.UserTicket, e.VaultKey, lp, e.signer()); err != nil {
		return ev, err
	}
	return events.TicketEvent{User: a.User, LpAmount: lp}, nil
}

type CloseTicketAccounts struct {
	User       types.Pubkey // 签名者
	UserInput  types.Pubkey
	VaultInput types.Pubkey
	LpMint     types.Pubkey
	TicketMint types.Pubkey
	UserTicket types.Pubkey
}

// CloseWithdrawTicket 销毁票据，按上一次价格快照支付
func CloseWithdrawTicket(e *Env, a CloseTicketAccounts, lp uint64, bump uint8) (events.TicketEvent, error) {
	var ev events.TicketEvent
	if e.Policy.WithdrawPaused(e.Vault) {
		return ev, vaulterr.ErrOnPaused
	}
	if err := e.checkLpMint(a.LpMint); err != nil {
		return ev, err
	}
	if err := e.checkTicketMint(a.TicketMint); err != nil {
		return ev, err
	}
	if err := e.checkTicketAccount(a.TicketMint, a.User, a.UserTicket, bump); err != nil {
		return ev, err
	}
	if err := e.checkTokenAccount(a.VaultInput, e.VaultKey, e.Vault.InputMint); err != nil {
		return ev, err
	}
	if _, err := e.currentPrice(a.LpMint); err != nil {
		return ev, err
	}
	conservative, err := e.conservativeAmount(lp)
	if err != nil {
		return ev, err
	}

	if err := e.RT.Burn(a.TicketMint, a.UserTicket, e.VaultKey, lp, e.signer()); err != nil {
		return ev, err
	}
	if err := e.RT.Transfer(a.VaultInput, a.UserInput, e.VaultKey, conservative, e.signer()); err != nil {
		return ev, err
	}
	if err := e.debitTVL(conservative); err != nil {
		return ev, err
	}
	return events.TicketEvent{User: a.User, LpAmount: lp, Amount: conservative}, nil
}
