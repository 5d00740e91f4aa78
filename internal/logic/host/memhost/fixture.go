package memhost

import (
	"fmt"

	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/logic/oracle"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

// SetPythPrice 写入一个 Pyth 价格账户
func (h *Host) SetPythPrice(key, owner types.Pubkey, p oracle.Price) {
	h.SetAccount(key, owner, oracle.EncodePriceAccount(p))
}

// AccrueInterest 模拟 reserve 产生利息：流动性增加而 cToken 供应不变，汇率随之下降
func (h *Host) AccrueInterest(reserve types.Pubkey, amount uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.ledger.accounts[reserve]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, reserve)
	}
	r, err := lending.DecodeReserve(a.Data)
	if err != nil {
		return err
	}
	supply, ok := h.ledger.tokens[r.Liquidity.SupplyPubkey]
	if !ok {
		return fmt.Errorf("%w: liquidity supply %s", ErrAccountNotFound, r.Liquidity.SupplyPubkey)
	}
	if r.Liquidity.AvailableAmount, err = wad.AddU64(r.Liquidity.AvailableAmount, amount); err != nil {
		return err
	}
	supply.Amount += amount
	if m, ok := h.ledger.mints[supply.Mint]; ok {
		m.Supply += amount
	}
	data, err := lending.EncodeReserve(r)
	if err != nil {
		return err
	}
	a.Data = data
	return nil
}

// SetObligationValues 直接改写 obligation 的汇总价值（WAD），用于构造健康度场景
func (h *Host) SetObligationValues(obligation types.Pubkey, allowed, unhealthy, borrowed wad.Decimal) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.ledger.accounts[obligation]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, obligation)
	}
	o, err := lending.DecodeObligation(a.Data)
	if err != nil {
		return err
	}
	o.AllowedBorrowValue = allowed.Scaled()
	o.UnhealthyBorrowValue = unhealthy.Scaled()
	o.BorrowedValue = borrowed.Scaled()
	data, err := lending.EncodeObligation(o)
	if err != nil {
		return err
	}
	a.Data = data
	return nil
}
