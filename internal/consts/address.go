package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	//  Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	SysvarInstructionsStr     = "Sysvar1nstructions1111111111111111111111111"
	SysvarClockStr            = "SysvarC1ock11111111111111111111111111111111"

	// Vault 程序及其管理地址
	VaultProgramStr = "GGo34nYpjKfe9omzUaFtaCyizvwpAMf3NhxSCMD61F3A"
	AdminStr        = "DrrB1p8sxhwBZ3cXE8u5t2GxqEcTNuwAm7RcrQ8Yqjod"
	TreasuryStr     = "8XhNoDjjNoLP5Rys1pBJKGdE8acEC1HJsWGkfkMt6JP1"

	// 借贷协议
	SolendProgramStr          = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
	PortProgramStr            = "Port7uDYB3wk6GJAw4KT1WpTeMtSu9bTcChBHkX2LfR"
	FranciumLendingProgramStr = "FC81tbGt6JWRXidaWYFXxGnTk4VgobhJHATvTRVMqgWj"

	// 常用 Mint
	WSOLMintStr = "So11111111111111111111111111111111111111112"
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMintStr = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)
