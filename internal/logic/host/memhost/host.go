// Package memhost 内存版链上运行时：账户、SPL Token、指令 sysvar、CPI 与 PDA 签名校验。
// 一笔交易内的指令按顺序执行，任一失败则整笔回滚。
package memhost

import (
	"errors"
	"fmt"
	"sync"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrProgramNotFound     = errors.New("program not registered")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrIllegalOwner        = errors.New("account not owned by program")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrMintMismatch        = errors.New("token account mint mismatch")
	ErrOwnerMismatch       = errors.New("token account owner mismatch")
	ErrInvalidIndex        = errors.New("instruction index out of range")
	ErrCallDepthExceeded   = errors.New("cpi call depth exceeded")
	ErrNoMintAuthority     = errors.New("mint has no authority")
	ErrTokenSupplyOverflow = errors.New("token supply overflow")
)

const maxCallDepth = 4

// Transaction 一笔原子交易
type Transaction struct {
	Signers      []types.Pubkey
	Instructions []host.Instruction
}

type Host struct {
	mu       sync.Mutex
	ledger   *ledger
	programs map[types.Pubkey]host.Program
	slot     uint64
	unixTs   int64

	pending     []any // 当前交易内发出的事件
	subscribers []func(any)
}

func New() *Host {
	return &Host{
		ledger:   newLedger(),
		programs: make(map[types.Pubkey]host.Program),
		slot:     1,
	}
}

// Register 注册可被调度的程序
func (h *Host) Register(programID types.Pubkey, p host.Program) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.programs[programID] = p
}

func (h *Host) SetSlot(slot uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slot = slot
}

func (h *Host) AdvanceSlots(n uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slot += n
	return h.slot
}

func (h *Host) Slot() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slot
}

func (h *Host) SetUnixTimestamp(ts int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unixTs = ts
}

// Execute 依次执行交易中的指令，失败时恢复到执行前的状态
func (h *Host) Execute(tx Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := h.ledger.clone()
	signers := make(map[types.Pubkey]bool, len(tx.Signers))
	for _, s := range tx.Signers {
		signers[s] = true
	}

	h.pending = h.pending[:0]
	for i, ix := range tx.Instructions {
		if err := h.dispatch(tx.Instructions, i, ix, signers); err != nil {
			h.ledger = snapshot
			h.pending = h.pending[:0]
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	for _, e := range h.pending {
		for _, fn := range h.subscribers {
			fn(e)
		}
	}
	h.pending = h.pending[:0]
	return nil
}

// Subscribe 交易成功后按顺序收到其中发出的事件
func (h *Host) Subscribe(fn func(event any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

// Process Execute 的简写
func (h *Host) Process(signers []types.Pubkey, ixs ...host.Instruction) error {
	return h.Execute(Transaction{Signers: signers, Instructions: ixs})
}

func (h *Host) dispatch(ixs []host.Instruction, index int, ix host.Instruction, signers map[types.Pubkey]bool) error {
	for _, meta := range ix.Accounts {
		if meta.IsSigner && !signers[meta.Pubkey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.Pubkey)
		}
	}
	prog, ok := h.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ix.ProgramID)
	}
	rt := &runtime{
		h:         h,
		programID: ix.ProgramID,
		index:     index,
		ixs:       ixs,
		signers:   signers,
	}
	return prog.Process(rt, ix.Accounts, ix.Data)
}

// ---------- 测试与模拟用的状态读写 ----------

// SetAccount 直接写入普通账户
func (h *Host) SetAccount(key, owner types.Pubkey, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledger.accounts[key] = &Account{Owner: owner, Data: append([]byte(nil), data...)}
}

func (h *Host) Account(key types.Pubkey) (Account, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.ledger.accounts[key]
	if !ok {
		return Account{}, false
	}
	return Account{Owner: a.Owner, Data: append([]byte(nil), a.Data...)}, true
}

func (h *Host) CreateMint(mint, authority types.Pubkey, decimals uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledger.mints[mint] = &Mint{Decimals: decimals, Authority: authority, HasAuthority: true}
}

// CreateTokenAccount 创建代币账户并凭空铸造 amount
func (h *Host) CreateTokenAccount(account, mint, owner types.Pubkey, amount uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledger.tokens[account] = &TokenAccount{Mint: mint, Owner: owner, Amount: amount}
	if m, ok := h.ledger.mints[mint]; ok {
		m.Supply += amount
	}
}

// SetTokenBalance 直接改写余额，同步调整供应量
func (h *Host) SetTokenBalance(account types.Pubkey, amount uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.ledger.tokens[account]
	if !ok {
		return
	}
	if m, ok := h.ledger.mints[t.Mint]; ok {
		m.Supply = m.Supply - t.Amount + amount
	}
	t.Amount = amount
}

func (h *Host) TokenBalance(account types.Pubkey) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.ledger.tokens[account]; ok {
		return t.Amount
	}
	return 0
}

func (h *Host) TokenAccount(account types.Pubkey) (TokenAccount, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.ledger.tokens[account]
	if !ok {
		return TokenAccount{}, false
	}
	return *t, true
}

func (h *Host) MintSupply(mint types.Pubkey) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.ledger.mints[mint]; ok {
		return m.Supply
	}
	return 0
}

func (h *Host) MintInfo(mint types.Pubkey) (Mint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.ledger.mints[mint]
	if !ok {
		return Mint{}, false
	}
	return *m, true
}
