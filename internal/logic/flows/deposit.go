package flows

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

type DepositAccounts struct {
	User       types.Pubkey // 签名者
	UserInput  types.Pubkey
	UserLp     types.Pubkey
	VaultInput types.Pubkey
	LpMint     types.Pubkey
}

// Deposit 按当前价格给用户铸造 LP
func Deposit(e *Env, a DepositAccounts, amount uint64) (events.DepositEvent, error) {
	var ev events.DepositEvent
	if e.Policy.DepositPaused(e.Vault) {
		return ev, vaulterr.ErrOnPaused
	}
	if amount < consts.MinDepositAmount {
		return ev, vaulterr.Wrap(vaulterr.ErrInvalidDepositAmount, "amount %d < %d", amount, consts.MinDepositAmount)
	}
	if err := e.checkLpMint(a.LpMint); err != nil {
		return ev, err
	}
	if err := e.checkTokenAccount(a.VaultInput, e.VaultKey, e.Vault.InputMint); err != nil {
		return ev, err
	}
	if err := e.checkTokenAccount(a.UserLp, a.User, a.LpMint); err != nil {
		return ev, err
	}

	current, err := e.currentPrice(a.LpMint)
	if err != nil {
		return ev, err
	}
	lp, err := current.TokenToLp(amount)
	if err != nil {
		return ev, err
	}

	if err := e.RT.Transfer(a.UserInput, a.VaultInput, a.User, amount); err != nil {
		return ev, err
	}
	if err := e.RT.MintTo(a.LpMint, a.UserLp, e.VaultKey, lp, e.signer()); err != nil {
		return ev, err
	}
	if e.Vault.CurrentTVL, err = wad.AddU64(e.Vault.CurrentTVL, amount); err != nil {
		return ev, err
	}

	ev = events.DepositEvent{
		User:     a.User,
		Amount:   amount,
		LpAmount: lp,
		TVL:      e.Vault.CurrentTVL,
		LpSupply: current.MintedTokens + lp,
	}
	return ev, nil
}
