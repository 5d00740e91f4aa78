package memhost

import (
	"fmt"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

var tokenProgramID = consts.TokenProgram

func (rt *runtime) tokenAccount(key types.Pubkey) (*TokenAccount, error) {
	t, ok := rt.h.ledger.tokens[key]
	if !ok {
		return nil, fmt.Errorf("token account %w: %s", ErrAccountNotFound, key)
	}
	return t, nil
}

func (rt *runtime) mint(key types.Pubkey) (*Mint, error) {
	m, ok := rt.h.ledger.mints[key]
	if !ok {
		return nil, fmt.Errorf("mint %w: %s", ErrAccountNotFound, key)
	}
	return m, nil
}

func (rt *runtime) Transfer(src, dst, authority types.Pubkey, amount uint64, seeds ...host.SignerSeeds) error {
	from, err := rt.tokenAccount(src)
	if err != nil {
		return err
	}
	to, err := rt.tokenAccount(dst)
	if err != nil {
		return err
	}
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}
	if from.Owner != authority {
		return fmt.Errorf("%w: %s is not owner of %s", ErrOwnerMismatch, authority, src)
	}
	if err := rt.requireSigner(authority, seeds); err != nil {
		return err
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: have %d want %d", ErrInsufficientFunds, from.Amount, amount)
	}
	from.Amount -= amount
	to.Amount += amount
	return nil
}

func (rt *runtime) MintTo(mint, dst, authority types.Pubkey, amount uint64, seeds ...host.SignerSeeds) error {
	m, err := rt.mint(mint)
	if err != nil {
		return err
	}
	to, err := rt.tokenAccount(dst)
	if err != nil {
		return err
	}
	if to.Mint != mint {
		return ErrMintMismatch
	}
	if !m.HasAuthority {
		return ErrNoMintAuthority
	}
	if m.Authority != authority {
		return fmt.Errorf("%w: %s is not mint authority", ErrOwnerMismatch, authority)
	}
	if err := rt.requireSigner(authority, seeds); err != nil {
		return err
	}
	if m.Supply+amount < m.Supply {
		return ErrTokenSupplyOverflow
	}
	m.Supply += amount
	to.Amount += amount
	return nil
}

func (rt *runtime) Burn(mint, src, authority types.Pubkey, amount uint64, seeds ...host.SignerSeeds) error {
	m, err := rt.mint(mint)
	if err != nil {
		return err
	}
	from, err := rt.tokenAccount(src)
	if err != nil {
		return err
	}
	if from.Mint != mint {
		return ErrMintMismatch
	}
	if from.Owner != authority {
		return fmt.Errorf("%w: %s is not owner of %s", ErrOwnerMismatch, authority, src)
	}
	if err := rt.requireSigner(authority, seeds); err != nil {
		return err
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: have %d want %d", ErrInsufficientFunds, from.Amount, amount)
	}
	from.Amount -= amount
	m.Supply -= amount
	return nil
}

func (rt *runtime) Balance(account types.Pubkey) (uint64, error) {
	t, err := rt.tokenAccount(account)
	if err != nil {
		return 0, err
	}
	return t.Amount, nil
}

func (rt *runtime) Supply(mint types.Pubkey) (uint64, error) {
	m, err := rt.mint(mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func (rt *runtime) MintAuthority(mint types.Pubkey) (types.Pubkey, bool, error) {
	m, err := rt.mint(mint)
	if err != nil {
		return types.Pubkey{}, false, err
	}
	return m.Authority, m.HasAuthority, nil
}

func (rt *runtime) Decimals(mint types.Pubkey) (uint8, error) {
	m, err := rt.mint(mint)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

func (rt *runtime) Owner(account types.Pubkey) (types.Pubkey, error) {
	t, err := rt.tokenAccount(account)
	if err != nil {
		return types.Pubkey{}, err
	}
	return t.Owner, nil
}

func (rt *runtime) Mint(account types.Pubkey) (types.Pubkey, error) {
	t, err := rt.tokenAccount(account)
	if err != nil {
		return types.Pubkey{}, err
	}
	return t.Mint, nil
}

// InitializeMint 新 mint 的地址必须由调用方签名（通常是 PDA）
func (rt *runtime) InitializeMint(mint types.Pubkey, decimals uint8, authority types.Pubkey, seeds ...host.SignerSeeds) error {
	if rt.h.ledger.exists(mint) {
		return fmt.Errorf("%w: %s", ErrAccountExists, mint)
	}
	if err := rt.requireSigner(mint, seeds); err != nil {
		return err
	}
	rt.h.ledger.mints[mint] = &Mint{Decimals: decimals, Authority: authority, HasAuthority: true}
	return nil
}

func (rt *runtime) InitializeAccount(account, mint, owner types.Pubkey, seeds ...host.SignerSeeds) error {
	if rt.h.ledger.exists(account) {
		return fmt.Errorf("%w: %s", ErrAccountExists, account)
	}
	if _, err := rt.mint(mint); err != nil {
		return err
	}
	if err := rt.requireSigner(account, seeds); err != nil {
		return err
	}
	rt.h.ledger.tokens[account] = &TokenAccount{Mint: mint, Owner: owner}
	return nil
}
