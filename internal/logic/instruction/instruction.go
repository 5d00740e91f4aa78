// Package instruction Vault 程序的指令编码：8 字节 discriminator + borsh 参数。
// 指令字节是对外 ABI，协议提现会按这里的格式读取同一交易中的下一条 withdraw 指令。
package instruction

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/near/borsh-go"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

const DiscriminatorSize = 8

type Discriminator [DiscriminatorSize]byte

// 指令名
const (
	NameInitializeVault              = "initialize_vault"
	NameAddProtocol                  = "add_protocol"
	NameSetHashes                    = "set_hashes"
	NameSetLeverageHashes            = "set_leverage_hashes"
	NameSetProtocolWeights           = "set_protocol_weights"
	NameSetRefreshParams             = "set_refresh_params"
	NameSetPaused                    = "set_paused"
	NameCreateVaultUserTicketAccount = "create_vault_user_ticket_account"
	NameDeposit                      = "deposit"
	NameWithdraw                     = "withdraw"
	NameOpenWithdrawTicket           = "open_withdraw_ticket"
	NameCloseWithdrawTicket          = "close_withdraw_ticket"
	NameRefreshWeights               = "refresh_weights"
)

// 协议指令的前缀与操作
const (
	PrefixFrancium = "francium"
	PrefixPort     = "port"
	PrefixSolend   = "solend"

	OpInitialize = "initialize"
	OpDeposit    = "deposit"
	OpWithdraw   = "withdraw"
	OpTVL        = "tvl"
	OpBorrow     = "borrow"
	OpRepay      = "repay"
)

var (
	ErrShortData    = errors.New("instruction data shorter than discriminator")
	ErrTrailingData = errors.New("instruction args followed by trailing bytes")
)

// NewDiscriminator sha256("global:<name>")[:8]
func NewDiscriminator(name string) Discriminator {
	var d Discriminator
	h := types.HashV([]byte("global:" + name))
	copy(d[:], h[:DiscriminatorSize])
	return d
}

// ProtocolName 例如 solend_deposit
func ProtocolName(prefix, op string) string {
	return prefix + "_" + op
}

// ProtocolPrefixes 协议编号 -> 指令前缀
var ProtocolPrefixes = map[uint8]string{
	consts.ProtocolFrancium: PrefixFrancium,
	consts.ProtocolPort:     PrefixPort,
	consts.ProtocolSolend:   PrefixSolend,
}

var (
	DepositDiscriminator  = NewDiscriminator(NameDeposit)
	WithdrawDiscriminator = NewDiscriminator(NameWithdraw)
)

type InitializeVaultArgs struct {
	SeedNumber uint8
}

type AddProtocolArgs struct {
	ProtocolID uint8
}

type SetHashesArgs struct {
	ProtocolID uint8
	Hashes     [3]types.CheckHash
}

type SetLeverageHashesArgs struct {
	ProtocolID uint8
	Hashes     [2]types.CheckHash
}

type SetProtocolWeightsArgs struct {
	Weights []uint32
}

type SetRefreshParamsArgs struct {
	MinElapsedTime     int64
	MinDepositLamports uint64
}

type SetPausedArgs struct {
	Paused bool
}

type DepositArgs struct {
	Amount uint64
}

// WithdrawArgs 载荷必须恰好是一个 u64
type WithdrawArgs struct {
	LpAmount uint64
}

const WithdrawArgsSize = 8

type TicketArgs struct {
	LpAmount uint64
	Bump     uint8
}

// argsValue 解开指针；borsh-go 会把指针编码成 Option（多一个 tag 字节）
func argsValue(args any) any {
	if args == nil {
		return nil
	}
	v := reflect.ValueOf(args)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// Encode discriminator + borsh(args)，args 可以是值或指针，为 nil 时只有 discriminator
func Encode(name string, args any) ([]byte, error) {
	d := NewDiscriminator(name)
	args = argsValue(args)
	if args == nil {
		return d[:], nil
	}
	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return append(d[:], body...), nil
}

// Split 拆出 discriminator 与参数
func Split(data []byte) (Discriminator, []byte, error) {
	var d Discriminator
	if len(data) < DiscriminatorSize {
		return d, nil, ErrShortData
	}
	copy(d[:], data[:DiscriminatorSize])
	return d, data[DiscriminatorSize:], nil
}

// DecodeArgs borsh 解码参数，args 必须为指针；载荷必须被完整消费
func DecodeArgs(payload []byte, args any) error {
	if err := borsh.Deserialize(args, payload); err != nil {
		return err
	}
	// borsh 编码是确定的，重新编码的长度即实际消费的字节数
	body, err := borsh.Serialize(argsValue(args))
	if err != nil {
		return err
	}
	if len(body) != len(payload) {
		return fmt.Errorf("%w: %d of %d bytes used", ErrTrailingData, len(body), len(payload))
	}
	return nil
}

// Is 判断 data 是否为指定指令
func Is(data []byte, d Discriminator) bool {
	return len(data) >= DiscriminatorSize && bytes.Equal(data[:DiscriminatorSize], d[:])
}

// New 构造一条 Vault 程序指令
func New(programID types.Pubkey, name string, args any, accounts ...host.AccountMeta) (host.Instruction, error) {
	data, err := Encode(name, args)
	if err != nil {
		return host.Instruction{}, err
	}
	return host.Instruction{ProgramID: programID, Accounts: accounts, Data: data}, nil
}
