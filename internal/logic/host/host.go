// Package host 定义 Vault 程序运行所依赖的链上环境接口。
// 链上由运行时提供，测试与本地模拟使用 memhost。
package host

import (
	"lending-vault-sol/internal/pkg/types"
)

type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

func ReadonlyMeta(key types.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key}
}

func WritableMeta(key types.Pubkey) AccountMeta {
	return AccountMeta{Pubkey: key, IsWritable: true}
}

func SignerMeta(key types.Pubkey, writable bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: true, IsWritable: writable}
}

// Instruction 一条指令（顶层或 CPI）
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Keys 账户公钥列表，按传入顺序
func (ix Instruction) Keys() []types.Pubkey {
	keys := make([]types.Pubkey, len(ix.Accounts))
	for i, a := range ix.Accounts {
		keys[i] = a.Pubkey
	}
	return keys
}

// SignerSeeds 一组 PDA 签名种子（含 bump）
type SignerSeeds [][]byte

type Clock interface {
	Slot() uint64
	UnixTimestamp() int64
}

// InstructionSysvar 读取当前交易中的指令
type InstructionSysvar interface {
	CurrentIndex() (int, error)
	InstructionAt(index int) (Instruction, error)
}

type Invoker interface {
	InvokeSigned(ix Instruction, signers ...SignerSeeds) error
}

type Deriver interface {
	FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error)
	CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error)
	CreateWithSeed(base types.Pubkey, seed string, owner types.Pubkey) types.Pubkey
}

// AccountStore 普通账户的读写，写入仅限当前程序拥有的账户
type AccountStore interface {
	AccountData(key types.Pubkey) ([]byte, error)
	AccountOwner(key types.Pubkey) (types.Pubkey, error)
	CreateAccount(key, owner types.Pubkey, data []byte, signers ...SignerSeeds) error
	CreateAccountWithSeed(base types.Pubkey, seed string, owner types.Pubkey, data []byte, signers ...SignerSeeds) (types.Pubkey, error)
	WriteAccount(key types.Pubkey, data []byte) error
}

// TokenService SPL Token 能力
type TokenService interface {
	Transfer(src, dst, authority types.Pubkey, amount uint64, signers ...SignerSeeds) error
	MintTo(mint, dst, authority types.Pubkey, amount uint64, signers ...SignerSeeds) error
	Burn(mint, src, authority types.Pubkey, amount uint64, signers ...SignerSeeds) error
	Balance(account types.Pubkey) (uint64, error)
	Supply(mint types.Pubkey) (uint64, error)
	MintAuthority(mint types.Pubkey) (types.Pubkey, bool, error)
	Decimals(mint types.Pubkey) (uint8, error)
	Owner(account types.Pubkey) (types.Pubkey, error)
	Mint(account types.Pubkey) (types.Pubkey, error)
	InitializeMint(mint types.Pubkey, decimals uint8, authority types.Pubkey, signers ...SignerSeeds) error
	InitializeAccount(account, mint, owner types.Pubkey, signers ...SignerSeeds) error
}

// EventLog 程序日志中的结构化事件，交易失败时一并丢弃
type EventLog interface {
	Emit(event any)
}

// Runtime 单条指令执行期间可用的全部能力
type Runtime interface {
	Clock
	InstructionSysvar
	Invoker
	Deriver
	AccountStore
	TokenService
	EventLog

	// ProgramID 当前正在执行的程序
	ProgramID() types.Pubkey
}

// Program 可被运行时调度的程序
type Program interface {
	Process(rt Runtime, accounts []AccountMeta, data []byte) error
}
