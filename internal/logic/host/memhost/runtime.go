package memhost

import (
	"fmt"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

// runtime 单条指令（或 CPI）的执行上下文
type runtime struct {
	h         *Host
	programID types.Pubkey
	index     int
	ixs       []host.Instruction
	signers   map[types.Pubkey]bool // 交易签名者与调用链上已证明的 PDA
	depth     int
}

var _ host.Runtime = (*runtime)(nil)

func (rt *runtime) ProgramID() types.Pubkey { return rt.programID }

func (rt *runtime) Slot() uint64 { return rt.h.slot }

func (rt *runtime) UnixTimestamp() int64 { return rt.h.unixTs }

func (rt *runtime) Emit(event any) { rt.h.pending = append(rt.h.pending, event) }

func (rt *runtime) CurrentIndex() (int, error) { return rt.index, nil }

func (rt *runtime) InstructionAt(index int) (host.Instruction, error) {
	if index < 0 || index >= len(rt.ixs) {
		return host.Instruction{}, ErrInvalidIndex
	}
	return rt.ixs[index], nil
}

func (rt *runtime) FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	return types.FindProgramAddress(seeds, programID)
}

func (rt *runtime) CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	return types.CreateProgramAddress(seeds, programID)
}

func (rt *runtime) CreateWithSeed(base types.Pubkey, seed string, owner types.Pubkey) types.Pubkey {
	return types.CreateWithSeed(base, seed, owner)
}

// signerSet 当前签名者加上由 seeds 证明的 PDA（相对当前程序）
func (rt *runtime) signerSet(seeds []host.SignerSeeds) (map[types.Pubkey]bool, error) {
	set := make(map[types.Pubkey]bool, len(rt.signers)+len(seeds))
	for k := range rt.signers {
		set[k] = true
	}
	for _, s := range seeds {
		pda, err := types.CreateProgramAddress(s, rt.programID)
		if err != nil {
			return nil, fmt.Errorf("invalid signer seeds: %w", err)
		}
		set[pda] = true
	}
	return set, nil
}

func (rt *runtime) requireSigner(key types.Pubkey, seeds []host.SignerSeeds) error {
	set, err := rt.signerSet(seeds)
	if err != nil {
		return err
	}
	if !set[key] {
		return fmt.Errorf("%w: %s", ErrMissingSignature, key)
	}
	return nil
}

func (rt *runtime) InvokeSigned(ix host.Instruction, seeds ...host.SignerSeeds) error {
	if rt.depth+1 > maxCallDepth {
		return ErrCallDepthExceeded
	}
	set, err := rt.signerSet(seeds)
	if err != nil {
		return err
	}
	for _, meta := range ix.Accounts {
		if meta.IsSigner && !set[meta.Pubkey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.Pubkey)
		}
	}
	prog, ok := rt.h.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ix.ProgramID)
	}
	child := &runtime{
		h:         rt.h,
		programID: ix.ProgramID,
		index:     rt.index,
		ixs:       rt.ixs,
		signers:   set,
		depth:     rt.depth + 1,
	}
	if err := prog.Process(child, ix.Accounts, ix.Data); err != nil {
		return fmt.Errorf("cpi %s: %w", ix.ProgramID, err)
	}
	return nil
}

// ---------- AccountStore ----------

func (rt *runtime) AccountData(key types.Pubkey) ([]byte, error) {
	a, ok := rt.h.ledger.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return append([]byte(nil), a.Data...), nil
}

func (rt *runtime) AccountOwner(key types.Pubkey) (types.Pubkey, error) {
	l := rt.h.ledger
	if a, ok := l.accounts[key]; ok {
		return a.Owner, nil
	}
	if _, ok := l.mints[key]; ok {
		return tokenProgramID, nil
	}
	if _, ok := l.tokens[key]; ok {
		return tokenProgramID, nil
	}
	return types.Pubkey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
}

// CreateAccount 新账户必须签名（普通签名者或由 seeds 证明的 PDA）
func (rt *runtime) CreateAccount(key, owner types.Pubkey, data []byte, seeds ...host.SignerSeeds) error {
	if rt.h.ledger.exists(key) {
		return fmt.Errorf("%w: %s", ErrAccountExists, key)
	}
	if err := rt.requireSigner(key, seeds); err != nil {
		return err
	}
	rt.h.ledger.accounts[key] = &Account{Owner: owner, Data: append([]byte(nil), data...)}
	return nil
}

// CreateAccountWithSeed base 签名即可创建 create_with_seed(base, seed, owner) 账户
func (rt *runtime) CreateAccountWithSeed(base types.Pubkey, seed string, owner types.Pubkey, data []byte,
	seeds ...host.SignerSeeds) (types.Pubkey, error) {
	key := types.CreateWithSeed(base, seed, owner)
	if rt.h.ledger.exists(key) {
		return key, fmt.Errorf("%w: %s", ErrAccountExists, key)
	}
	if err := rt.requireSigner(base, seeds); err != nil {
		return key, err
	}
	rt.h.ledger.accounts[key] = &Account{Owner: owner, Data: append([]byte(nil), data...)}
	return key, nil
}

func (rt *runtime) WriteAccount(key types.Pubkey, data []byte) error {
	a, ok := rt.h.ledger.accounts[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if a.Owner != rt.programID {
		return fmt.Errorf("%w: %s", ErrIllegalOwner, key)
	}
	a.Data = append(a.Data[:0], data...)
	return nil
}
