package consts

import (
	"lending-vault-sol/internal/pkg/types"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对
var (
	// Programs
	SystemProgram          types.Pubkey
	TokenProgram           types.Pubkey
	AssociatedTokenProgram types.Pubkey
	SysvarInstructions     types.Pubkey
	SysvarClock            types.Pubkey

	VaultProgram types.Pubkey
	Admin        types.Pubkey
	Treasury     types.Pubkey

	SolendProgram          types.Pubkey
	PortProgram            types.Pubkey
	FranciumLendingProgram types.Pubkey

	WSOLMint types.Pubkey
	USDCMint types.Pubkey
	USDTMint types.Pubkey
)

// init 自动将 base58 字符串地址转换为 types.Pubkey
func init() {
	SystemProgram = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram = types.PubkeyFromBase58(TokenProgramStr)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)
	SysvarInstructions = types.PubkeyFromBase58(SysvarInstructionsStr)
	SysvarClock = types.PubkeyFromBase58(SysvarClockStr)

	VaultProgram = types.PubkeyFromBase58(VaultProgramStr)
	Admin = types.PubkeyFromBase58(AdminStr)
	Treasury = types.PubkeyFromBase58(TreasuryStr)

	SolendProgram = types.PubkeyFromBase58(SolendProgramStr)
	PortProgram = types.PubkeyFromBase58(PortProgramStr)
	FranciumLendingProgram = types.PubkeyFromBase58(FranciumLendingProgramStr)

	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)
	USDCMint = types.PubkeyFromBase58(USDCMintStr)
	USDTMint = types.PubkeyFromBase58(USDTMintStr)
}
