package lending

import (
	"fmt"

	"github.com/near/borsh-go"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/pkg/types"
)

// token-lending 指令编号
const (
	TagDepositReserveLiquidity                                uint8 = 4
	TagRedeemReserveCollateral                                uint8 = 5
	TagInitObligation                                         uint8 = 6
	TagBorrowObligationLiquidity                              uint8 = 10
	TagRepayObligationLiquidity                               uint8 = 11
	TagDepositReserveLiquidityAndObligationCollateral         uint8 = 14
	TagWithdrawObligationCollateralAndRedeemReserveCollateral uint8 = 15
)

// AmountData 所有带金额指令的载荷：tag + u64
type AmountData struct {
	Instruction uint8
	Amount      uint64
}

func EncodeAmount(tag uint8, amount uint64) []byte {
	data, _ := borsh.Serialize(AmountData{Instruction: tag, Amount: amount})
	return data
}

// DecodeAmount 解析 tag + u64，tag 不带金额时 amount 为 0
func DecodeAmount(data []byte) (uint8, uint64, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty lending instruction")
	}
	if len(data) == 1 {
		return data[0], 0, nil
	}
	var d AmountData
	if err := borsh.Deserialize(&d, data); err != nil {
		return 0, 0, err
	}
	return d.Instruction, d.Amount, nil
}

// MarketAuthority lending market 的 PDA 签名者
func MarketAuthority(d host.Deriver, programID, market types.Pubkey) (types.Pubkey, uint8, error) {
	return d.FindProgramAddress([][]byte{market.Bytes()}, programID)
}

// ObligationSeed create_with_seed 使用的种子：market base58 前 32 个字符
func ObligationSeed(market types.Pubkey) string {
	s := market.String()
	if len(s) > 32 {
		return s[:32]
	}
	return s
}

// ReserveAccounts 一个 reserve 相关的公钥
type ReserveAccounts struct {
	Reserve          types.Pubkey
	LiquiditySupply  types.Pubkey
	CollateralMint   types.Pubkey
	CollateralSupply types.Pubkey
	LendingMarket    types.Pubkey
	MarketAuthority  types.Pubkey
}

// DepositReserveLiquidity 存入流动性换取 cToken
func DepositReserveLiquidity(programID types.Pubkey, amount uint64, sourceLiquidity, destCollateral types.Pubkey,
	r ReserveAccounts, transferAuthority types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(sourceLiquidity),
			host.WritableMeta(destCollateral),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(r.LiquiditySupply),
			host.WritableMeta(r.CollateralMint),
			host.ReadonlyMeta(r.LendingMarket),
			host.ReadonlyMeta(r.MarketAuthority),
			host.SignerMeta(transferAuthority, false),
		},
		Data: EncodeAmount(TagDepositReserveLiquidity, amount),
	}
}

// RedeemReserveCollateral 赎回 cToken
func RedeemReserveCollateral(programID types.Pubkey, collateral uint64, sourceCollateral, destLiquidity types.Pubkey,
	r ReserveAccounts, transferAuthority types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(sourceCollateral),
			host.WritableMeta(destLiquidity),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(r.CollateralMint),
			host.WritableMeta(r.LiquiditySupply),
			host.ReadonlyMeta(r.LendingMarket),
			host.ReadonlyMeta(r.MarketAuthority),
			host.SignerMeta(transferAuthority, false),
		},
		Data: EncodeAmount(TagRedeemReserveCollateral, collateral),
	}
}

func InitObligation(programID, obligation, market, owner types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(obligation),
			host.ReadonlyMeta(market),
			host.SignerMeta(owner, false),
		},
		Data: []byte{TagInitObligation},
	}
}

// DepositReserveLiquidityAndObligationCollateral 存入流动性并直接作为 obligation 抵押
func DepositReserveLiquidityAndObligationCollateral(programID types.Pubkey, amount uint64,
	sourceLiquidity, userCollateral types.Pubkey, r ReserveAccounts, obligation, owner types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(sourceLiquidity),
			host.WritableMeta(userCollateral),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(r.LiquiditySupply),
			host.WritableMeta(r.CollateralMint),
			host.ReadonlyMeta(r.LendingMarket),
			host.ReadonlyMeta(r.MarketAuthority),
			host.WritableMeta(r.CollateralSupply),
			host.WritableMeta(obligation),
			host.SignerMeta(owner, false),
		},
		Data: EncodeAmount(TagDepositReserveLiquidityAndObligationCollateral, amount),
	}
}

// WithdrawObligationCollateralAndRedeemReserveCollateral 取回抵押并赎回为流动性，amount 为 cToken 数量
func WithdrawObligationCollateralAndRedeemReserveCollateral(programID types.Pubkey, collateral uint64,
	userCollateral, destLiquidity types.Pubkey, r ReserveAccounts, obligation, owner types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(r.CollateralSupply),
			host.WritableMeta(userCollateral),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(obligation),
			host.ReadonlyMeta(r.LendingMarket),
			host.ReadonlyMeta(r.MarketAuthority),
			host.WritableMeta(destLiquidity),
			host.WritableMeta(r.CollateralMint),
			host.WritableMeta(r.LiquiditySupply),
			host.SignerMeta(owner, false),
		},
		Data: EncodeAmount(TagWithdrawObligationCollateralAndRedeemReserveCollateral, collateral),
	}
}

func BorrowObligationLiquidity(programID types.Pubkey, amount uint64, destLiquidity types.Pubkey,
	r ReserveAccounts, obligation, owner types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(r.LiquiditySupply),
			host.WritableMeta(destLiquidity),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(obligation),
			host.ReadonlyMeta(r.LendingMarket),
			host.ReadonlyMeta(r.MarketAuthority),
			host.SignerMeta(owner, false),
		},
		Data: EncodeAmount(TagBorrowObligationLiquidity, amount),
	}
}

func RepayObligationLiquidity(programID types.Pubkey, amount uint64, sourceLiquidity types.Pubkey,
	r ReserveAccounts, obligation, transferAuthority types.Pubkey) host.Instruction {
	return host.Instruction{
		ProgramID: programID,
		Accounts: []host.AccountMeta{
			host.WritableMeta(sourceLiquidity),
			host.WritableMeta(r.LiquiditySupply),
			host.WritableMeta(r.Reserve),
			host.WritableMeta(obligation),
			host.ReadonlyMeta(r.LendingMarket),
			host.SignerMeta(transferAuthority, false),
		},
		Data: EncodeAmount(TagRepayObligationLiquidity, amount),
	}
}
