package vaulterr

import (
	"errors"
	"fmt"
)

// Code 是对外暴露的错误码，数值从 6000 起按声明顺序递增（与链上 IDL 保持一致）
type Code uint32

const (
	ErrInvalidZeroWithdraw Code = 6000 + iota
	ErrInvalidLpPrice
	ErrForbiddenRefresh
	ErrStaleProtocolTVL
	ErrInvalidProtocolDeposit
	ErrInvalidProtocolWithdraw
	ErrInvalidDepositAmount
	ErrInvalidOwner
	ErrInvalidMint
	ErrOnPaused
	ErrInvalidInstructions
	ErrMathOverflow
	ErrInvalidWeights
	ErrInvalidHash
	ErrInvalidArraySize
	ErrInvalidObligationOwner
	ErrInvalidObligationReserve
	ErrUnauthorizedUser
	ErrProtocolNotFoundInVault
	ErrProtocolAlreadyExists
	ErrInvalidProtocolID
	ErrInvalidBorrow
	ErrInvalidReapy
	ErrUnhealthyOperation
)

var names = map[Code]struct {
	name string
	msg  string
}{
	ErrInvalidZeroWithdraw:      {"InvalidZeroWithdraw", "withdraw amount too small"},
	ErrInvalidLpPrice:           {"InvalidLpPrice", "lp price decreased"},
	ErrForbiddenRefresh:         {"ForbiddenRefresh", "refresh called too early"},
	ErrStaleProtocolTVL:         {"StaleProtocolTVL", "protocol tvl not updated recently"},
	ErrInvalidProtocolDeposit:   {"InvalidProtocolDeposit", "nothing to deposit into protocol"},
	ErrInvalidProtocolWithdraw:  {"InvalidProtocolWithdraw", "nothing to withdraw from protocol"},
	ErrInvalidDepositAmount:     {"InvalidDepositAmount", "deposit amount below minimum"},
	ErrInvalidOwner:             {"InvalidOwner", "invalid account owner"},
	ErrInvalidMint:              {"InvalidMint", "invalid mint"},
	ErrOnPaused:                 {"OnPaused", "operation paused"},
	ErrInvalidInstructions:      {"InvalidInstructions", "invalid instructions in transaction"},
	ErrMathOverflow:             {"MathOverflow", "math overflow"},
	ErrInvalidWeights:           {"InvalidWeights", "invalid protocol weights"},
	ErrInvalidHash:              {"InvalidHash", "cpi accounts hash mismatch"},
	ErrInvalidArraySize:         {"InvalidArraySize", "invalid array size"},
	ErrInvalidObligationOwner:   {"InvalidObligationOwner", "obligation not owned by vault"},
	ErrInvalidObligationReserve: {"InvalidObligationReserve", "obligation reserve mismatch"},
	ErrUnauthorizedUser:         {"UnauthorizedUser", "unauthorized user"},
	ErrProtocolNotFoundInVault:  {"ProtocolNotFoundInVault", "protocol not found in vault"},
	ErrProtocolAlreadyExists:    {"ProtocolAlreadyExists", "protocol already exists in vault"},
	ErrInvalidProtocolID:        {"InvalidProtocolId", "invalid protocol id"},
	ErrInvalidBorrow:            {"InvalidBorrow", "invalid borrow amount"},
	ErrInvalidReapy:             {"InvalidReapy", "invalid repay amount"},
	ErrUnhealthyOperation:       {"UnhealthyOperation", "operation leaves obligation unhealthy"},
}

func (c Code) Error() string {
	if n, ok := names[c]; ok {
		return fmt.Sprintf("%s (%d): %s", n.name, uint32(c), n.msg)
	}
	return fmt.Sprintf("unknown error code %d", uint32(c))
}

// Name 返回错误名（IDL 中的名称）
func (c Code) Name() string {
	if n, ok := names[c]; ok {
		return n.name
	}
	return "Unknown"
}

// CodeOf 从包装链中取出错误码
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}

// Wrap 附加上下文，保留错误码以便 errors.Is 判断
func Wrap(c Code, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), c)
}
