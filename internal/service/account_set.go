package service

import (
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/program/token"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/logic/keeper"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
)

const absent = -1

// marketIndex 某个协议的账户在批量请求中的下标
type marketIndex struct {
	protocolID    uint8
	reserveKey    types.Pubkey
	reserve       int
	collateral    int
	obligation    int
	borrowReserve int
	price         int
}

// accountSet 一次 GetMultipleAccounts 需要读取的全部账户
type accountSet struct {
	vault   types.Pubkey
	keys    []string
	markets []marketIndex
}

const (
	idxVault = iota
	idxLpMint
	idxVaultInput
)

func newAccountSet(c config.VaultConfig) (*accountSet, error) {
	vault, err := types.TryPubkeyFromBase58(c.Address)
	if err != nil {
		return nil, fmt.Errorf("vault.address: %w", err)
	}
	if c.LpMint == "" || c.VaultInput == "" {
		return nil, errors.New("vault.lp_mint and vault.vault_input are required")
	}
	s := &accountSet{vault: vault}
	add := func(addr string) (int, error) {
		if addr == "" {
			return absent, nil
		}
		if _, err := types.TryPubkeyFromBase58(addr); err != nil {
			return absent, err
		}
		s.keys = append(s.keys, addr)
		return len(s.keys) - 1, nil
	}
	for _, addr := range []string{c.Address, c.LpMint, c.VaultInput} {
		if _, err := add(addr); err != nil {
			return nil, err
		}
	}

	seen := make(map[uint8]bool)
	for _, m := range c.Markets {
		if seen[m.ProtocolID] {
			return nil, fmt.Errorf("market %d configured twice", m.ProtocolID)
		}
		seen[m.ProtocolID] = true
		reserveKey, err := types.TryPubkeyFromBase58(m.Reserve)
		if err != nil {
			return nil, fmt.Errorf("market %d reserve: %w", m.ProtocolID, err)
		}
		idx := marketIndex{protocolID: m.ProtocolID, reserveKey: reserveKey}
		for _, f := range []struct {
			dst  *int
			addr string
		}{
			{&idx.reserve, m.Reserve},
			{&idx.collateral, m.VaultCollateral},
			{&idx.obligation, m.Obligation},
			{&idx.borrowReserve, m.BorrowReserve},
			{&idx.price, m.PriceAccount},
		} {
			if *f.dst, err = add(f.addr); err != nil {
				return nil, fmt.Errorf("market %d: %w", m.ProtocolID, err)
			}
		}
		if idx.obligation == absent && idx.collateral == absent {
			return nil, fmt.Errorf("market %d needs vault_collateral or obligation", m.ProtocolID)
		}
		if idx.price != absent && idx.borrowReserve == absent {
			return nil, fmt.Errorf("market %d price_account without borrow_reserve", m.ProtocolID)
		}
		s.markets = append(s.markets, idx)
	}
	return s, nil
}

// Watched gRPC 订阅的账户列表
func (s *accountSet) Watched() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// assemble 把按 keys 顺序返回的账户数据组装成快照输入
func (s *accountSet) assemble(slot uint64, data [][]byte) (keeper.Inputs, error) {
	if len(data) != len(s.keys) {
		return keeper.Inputs{}, fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(data), len(s.keys))
	}
	for i, d := range data {
		if len(d) == 0 {
			return keeper.Inputs{}, fmt.Errorf("账户数据为空: %s", s.keys[i])
		}
	}

	mint, err := token.MintAccountFromData(data[idxLpMint])
	if err != nil {
		return keeper.Inputs{}, fmt.Errorf("lp mint: %w", err)
	}
	input, err := token.TokenAccountFromData(data[idxVaultInput])
	if err != nil {
		return keeper.Inputs{}, fmt.Errorf("vault input: %w", err)
	}
	in := keeper.Inputs{
		Slot:     slot,
		Vault:    s.vault,
		Data:     data[idxVault],
		LpSupply: mint.Supply,
		OnHand:   input.Amount,
		Markets:  make(map[uint8]keeper.MarketData, len(s.markets)),
	}
	for _, m := range s.markets {
		md := keeper.MarketData{ReserveKey: m.reserveKey, Reserve: data[m.reserve]}
		if m.collateral != absent {
			ta, err := token.TokenAccountFromData(data[m.collateral])
			if err != nil {
				return keeper.Inputs{}, fmt.Errorf("market %d collateral: %w", m.protocolID, err)
			}
			md.CollateralOwned = ta.Amount
		}
		if m.obligation != absent {
			md.Obligation = data[m.obligation]
		}
		if m.price != absent {
			borrow, err := lending.DecodeReserve(data[m.borrowReserve])
			if err != nil {
				return keeper.Inputs{}, fmt.Errorf("market %d borrow reserve: %w", m.protocolID, err)
			}
			md.Price = data[m.price]
			md.BorrowDecimals = borrow.Liquidity.MintDecimals
		}
		in.Markets[m.protocolID] = md
	}
	return in, nil
}
