// Package introspect 通过指令 sysvar 查看同一交易内的其他指令。
package introspect

import (
	"bytes"
	"encoding/binary"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

// DefaultOffset 协议取款指令后紧跟用户 withdraw
const DefaultOffset = 1

// PendingWithdraw 读取 current+offset 处的指令，若是本程序的 withdraw 则返回其 lp 数量。
// 不存在或不是 withdraw 时 ok 为 false。
func PendingWithdraw(sys host.InstructionSysvar, programID types.Pubkey, offset int) (lp uint64, ok bool, err error) {
	current, err := sys.CurrentIndex()
	if err != nil {
		return 0, false, err
	}
	ix, err := sys.InstructionAt(current + offset)
	if err != nil {
		return 0, false, nil
	}
	if ix.ProgramID != programID || !instruction.Is(ix.Data, instruction.WithdrawDiscriminator) {
		return 0, false, nil
	}
	payload := ix.Data[instruction.DiscriminatorSize:]
	if len(payload) != instruction.WithdrawArgsSize {
		return 0, false, vaulterr.Wrap(vaulterr.ErrInvalidInstructions,
			"withdraw payload has %d bytes", len(payload))
	}
	return binary.LittleEndian.Uint64(payload), true, nil
}

// WithdrawAmount 协议取款数量：有后续 withdraw 时只取回用户缺口，否则按权重回收超出部分
func WithdrawAmount(sys host.InstructionSysvar, programID types.Pubkey, offset int,
	v *state.Vault, idx int, onHand uint64) (uint64, error) {
	lp, ok, err := PendingWithdraw(sys, programID, offset)
	if err != nil {
		return 0, err
	}
	if !ok {
		return v.CalculateWithdraw(idx, 0)
	}
	amount, err := v.PreviousLpPrice.LpToToken(lp)
	if err != nil {
		return 0, err
	}
	if amount <= onHand {
		return 0, vaulterr.Wrap(vaulterr.ErrInvalidInstructions,
			"withdraw of %d is covered by on-hand %d", amount, onHand)
	}
	return v.CalculateWithdraw(idx, amount-onHand)
}

// IsLastOfDuplicatedIxs 当前指令必须与前一条或后一条（恰好其一）完全相同，
// 返回当前是否为两条中的后一条
func IsLastOfDuplicatedIxs(sys host.InstructionSysvar) (bool, error) {
	current, err := sys.CurrentIndex()
	if err != nil {
		return false, err
	}
	ix, err := sys.InstructionAt(current)
	if err != nil {
		return false, err
	}

	sameAsPrev := false
	if current > 0 {
		if prev, err := sys.InstructionAt(current - 1); err == nil {
			sameAsPrev = equal(prev, ix)
		}
	}
	sameAsNext := false
	if next, err := sys.InstructionAt(current + 1); err == nil {
		sameAsNext = equal(next, ix)
	}

	if sameAsPrev == sameAsNext {
		return false, vaulterr.Wrap(vaulterr.ErrInvalidInstructions, "instruction %d is not part of a duplicated pair", current)
	}
	return sameAsPrev, nil
}

func equal(a, b host.Instruction) bool {
	if a.ProgramID != b.ProgramID || len(a.Accounts) != len(b.Accounts) || !bytes.Equal(a.Data, b.Data) {
		return false
	}
	for i := range a.Accounts {
		if a.Accounts[i] != b.Accounts[i] {
			return false
		}
	}
	return true
}
