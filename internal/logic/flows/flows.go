// Package flows 用户侧流程：存款、取款、提现票据与权重刷新。
// 只改动 Vault 的 TVL、价格快照与本程序的 LP / ticket mint。
package flows

import (
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
	"lending-vault-sol/internal/pkg/wad"
)

// Env 一次流程执行的环境，Vault 由调用方加载与写回
type Env struct {
	RT       host.Runtime
	Vault    *state.Vault
	VaultKey types.Pubkey
	Policy   state.Policy
}

func (e *Env) signer() host.SignerSeeds {
	return host.SignerSeeds(e.Vault.Seeds())
}

// checkLpMint LP mint 必须是 ["mint", vault] 的 PDA 且由 vault 铸造
func (e *Env) checkLpMint(lpMint types.Pubkey) error {
	want, _, err := e.RT.FindProgramAddress(state.LpMintSeeds(e.VaultKey), e.RT.ProgramID())
	if err != nil {
		return err
	}
	if lpMint != want {
		return vaulterr.Wrap(vaulterr.ErrInvalidMint, "lp mint %s, want %s", lpMint, want)
	}
	return e.checkMintAuthority(lpMint)
}

func (e *Env) checkTicketMint(ticketMint types.Pubkey) error {
	want, _, err := e.RT.FindProgramAddress(state.TicketMintSeeds(e.VaultKey), e.RT.ProgramID())
	if err != nil {
		return err
	}
	if ticketMint != want {
		return vaulterr.Wrap(vaulterr.ErrInvalidMint, "ticket mint %s, want %s", ticketMint, want)
	}
	return e.checkMintAuthority(ticketMint)
}

func (e *Env) checkMintAuthority(mint types.Pubkey) error {
	authority, ok, err := e.RT.MintAuthority(mint)
	if err != nil {
		return err
	}
	if !ok || authority != e.VaultKey {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "mint %s authority is not the vault", mint)
	}
	return nil
}

// checkTokenAccount owner 与 mint 校验
func (e *Env) checkTokenAccount(account, owner, mint types.Pubkey) error {
	o, err := e.RT.Owner(account)
	if err != nil {
		return err
	}
	if o != owner {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "token account %s owned by %s", account, o)
	}
	m, err := e.RT.Mint(account)
	if err != nil {
		return err
	}
	if m != mint {
		return vaulterr.Wrap(vaulterr.ErrInvalidMint, "token account %s has mint %s", account, m)
	}
	return nil
}

// currentPrice 当前价格并校验不低于上一次快照
func (e *Env) currentPrice(lpMint types.Pubkey) (state.LpPrice, error) {
	supply, err := e.RT.Supply(lpMint)
	if err != nil {
		return state.LpPrice{}, err
	}
	current := e.Vault.CurrentLpPrice(supply)
	if err := e.Vault.CheckLpPrice(current); err != nil {
		return state.LpPrice{}, err
	}
	return current, nil
}

// conservativeAmount 按上一次快照折算并少付 1
func (e *Env) conservativeAmount(lp uint64) (uint64, error) {
	amount, err := e.Vault.PreviousLpPrice.LpToToken(lp)
	if err != nil {
		return 0, err
	}
	if amount < 1 {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidZeroWithdraw, "lp %d is worth nothing", lp)
	}
	conservative := amount - 1
	if conservative <= 1 {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidZeroWithdraw, "lp %d is worth %d", lp, amount)
	}
	return conservative, nil
}

func (e *Env) debitTVL(amount uint64) error {
	tvl, err := wad.SubU64(e.Vault.CurrentTVL, amount)
	if err != nil {
		return err
	}
	e.Vault.CurrentTVL = tvl
	return nil
}
