package flows

import (
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

type WithdrawAccounts struct {
	User       types.Pubkey // 签名者
	UserInput  types.Pubkey
	UserLp     types.Pubkey
	VaultInput types.Pubkey
	LpMint     types.Pubkey
}

// Withdraw 直接赎回 LP，按上一次价格快照支付，通常紧跟在协议取款之后
func Withdraw(e *Env, a WithdrawAccounts, lp uint64) (events.WithdrawEvent, error) {
	var ev events.WithdrawEvent
	if e.Policy.WithdrawPaused(e.Vault) {
		return ev, vaulterr.ErrOnPaused
	}
	if err := e.checkLpMint(a.LpMint); err != nil {
		return ev, err
	}
	if err := e.checkTokenAccount(a.VaultInput, e.VaultKey, e.Vault.InputMint); err != nil {
		return ev, err
	}
	current, err := e.currentPrice(a.LpMint)
	if err != nil {
		return ev, err
	}
	conservative, err := e.conservativeAmount(lp)
	if err != nil {
		return ev, err
	}

	if err := e.RT.Burn(a.LpMint, a.UserLp, a.User, lp); err != nil {
		return ev, err
	}
	if err := e.RT.Transfer(a.VaultInput, a.UserInput, e.VaultKey, conservative, e.signer()); err != nil {
		return ev, err
	}
	if err := e.debitTVL(conservative); err != nil {
		return ev, err
	}

	ev = events.WithdrawEvent{
		User:     a.User,
		LpAmount: lp,
		Amount:   conservative,
		TVL:      e.Vault.CurrentTVL,
		LpSupply: current.MintedTokens - lp,
	}
	return ev, nil
}
