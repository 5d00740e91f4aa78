package memhost

import (
	"lending-vault-sol/internal/pkg/types"
)

type Account struct {
	Owner types.Pubkey
	Data  []byte
}

type Mint struct {
	Supply       uint64
	Decimals     uint8
	Authority    types.Pubkey
	HasAuthority bool
}

type TokenAccount struct {
	Mint   types.Pubkey
	Owner  types.Pubkey
	Amount uint64
}

// ledger 全部链上状态，交易失败时整体回滚
type ledger struct {
	accounts map[types.Pubkey]*Account
	mints    map[types.Pubkey]*Mint
	tokens   map[types.Pubkey]*TokenAccount
}

func newLedger() *ledger {
	return &ledger{
		accounts: make(map[types.Pubkey]*Account),
		mints:    make(map[types.Pubkey]*Mint),
		tokens:   make(map[types.Pubkey]*TokenAccount),
	}
}

func (l *ledger) clone() *ledger {
	c := newLedger()
	for k, a := range l.accounts {
		c.accounts[k] = &Account{Owner: a.Owner, Data: append([]byte(nil), a.Data...)}
	}
	for k, m := range l.mints {
		cp := *m
		c.mints[k] = &cp
	}
	for k, t := range l.tokens {
		cp := *t
		c.tokens[k] = &cp
	}
	return c
}

func (l *ledger) exists(key types.Pubkey) bool {
	_, a := l.accounts[key]
	_, m := l.mints[key]
	_, t := l.tokens[key]
	return a || m || t
}
