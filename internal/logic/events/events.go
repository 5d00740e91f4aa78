// Package events Vault 程序在每次状态变更后发出的事件。
package events

import (
	"sync"

	"lending-vault-sol/internal/pkg/types"
)

type Type uint32

const (
	TypeDeposit Type = iota + 1
	TypeWithdraw
	TypeOpenTicket
	TypeCloseTicket
	TypeProtocolDeposit
	TypeProtocolWithdraw
	TypeProtocolRewards
	TypeProtocolBorrow
	TypeProtocolRepay
	TypeRefreshWeights
	TypeVaultSnapshot
	TypeKeeperPlan
)

var typeNames = map[Type]string{
	TypeDeposit:          "Deposit",
	TypeWithdraw:         "Withdraw",
	TypeOpenTicket:       "OpenWithdrawTicket",
	TypeCloseTicket:      "CloseWithdrawTicket",
	TypeProtocolDeposit:  "ProtocolDeposit",
	TypeProtocolWithdraw: "ProtocolWithdraw",
	TypeProtocolRewards:  "ProtocolRewards",
	TypeProtocolBorrow:   "ProtocolBorrow",
	TypeProtocolRepay:    "ProtocolRepay",
	TypeRefreshWeights:   "RefreshWeights",
	TypeVaultSnapshot:    "VaultSnapshot",
	TypeKeeperPlan:       "KeeperPlan",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// Event 一条事件，Payload 为下面的某个 *Event 结构
type Event struct {
	ID      uint32
	Type    Type
	Slot    uint64
	Vault   types.Pubkey
	Payload any
}

// BuildEventID 由指令序号与指令内序号组合：
//
//	[ 16 bits ixIndex ] [ 16 bits seq ]
func BuildEventID(ixIndex int, seq uint16) uint32 {
	return uint32(ixIndex)<<16 | uint32(seq)
}

type DepositEvent struct {
	User     types.Pubkey
	Amount   uint64
	LpAmount uint64
	TVL      uint64
	LpSupply uint64
}

type WithdrawEvent struct {
	User     types.Pubkey
	LpAmount uint64
	Amount   uint64
	TVL      uint64
	LpSupply uint64
}

type TicketEvent struct {
	User     types.Pubkey
	LpAmount uint64
	Amount   uint64 // 仅 close 时有值
}

type ProtocolEvent struct {
	ProtocolID uint8
	Amount     uint64
	Position   uint64 // 操作后的仓位数量（borrow/repay 为借款数量）
}

type ProtocolRewardsEvent struct {
	ProtocolID uint8
	Rewards    int64
	Deposited  uint64
}

type RefreshWeightsEvent struct {
	Weights        []uint32
	RewardsSum     int64
	LpFee          uint64
	CurrentTVL     uint64
	PreviousTotal  uint64
	PreviousMinted uint64
}

// Sink 事件的接收方
type Sink interface {
	Emit(e Event)
}

// Discard 丢弃所有事件
type Discard struct{}

func (Discard) Emit(Event) {}

// Recorder 内存中按顺序保存事件，测试与本地模拟使用
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType 过滤指定类型
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
