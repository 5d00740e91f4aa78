// Package sim 在 memhost 上搭建完整的 Vault 部署：三个借贷市场、Vault、LP/ticket mint 与管理配置。
// 测试与本地模拟共用。
package sim

import (
	"fmt"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/adapter"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/host/memhost"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/logic/oracle"
	"lending-vault-sol/internal/logic/program"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

type Options struct {
	SeedNumber     uint8
	InputDecimals  uint8
	BorrowDecimals uint8
	Weights        []uint32 // 按 Protocols 顺序：Francium, Port, Solend

	// Solend 输入 reserve 的参数，借款要求 0.7*LTV > 清算阈值
	SolendLTV                  uint8
	SolendLiquidationThreshold uint8

	BorrowLiquidity uint64 // 借款 reserve 初始流动性
	BorrowPrice     int64  // Pyth 价格，Expo 为 0
	Policy          state.Policy
}

func DefaultOptions() Options {
	return Options{
		InputDecimals:              6,
		BorrowDecimals:             6,
		Weights:                    []uint32{3000, 3000, 4000},
		SolendLTV:                  80,
		SolendLiquidationThreshold: 50,
		BorrowLiquidity:            1_000_000_000,
		BorrowPrice:                1,
		Policy:                     state.DefaultPolicy(),
	}
}

// Market 一个借贷协议在模拟中的全部账户
type Market struct {
	ProtocolID      uint8
	Program         types.Pubkey
	Reserve         lending.ReserveAccounts
	VaultCollateral types.Pubkey
	Obligation      types.Pubkey // RawPool 为零值

	// 仅 Solend
	BorrowReserve lending.ReserveAccounts
	PriceAccount  types.Pubkey
}

type World struct {
	Host      *memhost.Host
	Lending   *memhost.LendingProgram
	Processor *program.Processor
	Events    *events.Recorder
	Options   Options

	ProgramID types.Pubkey
	Admin     types.Pubkey
	Treasury  types.Pubkey

	InputMint  types.Pubkey
	BorrowMint types.Pubkey
	Vault      types.Pubkey
	LpMint     types.Pubkey
	TicketMint types.Pubkey

	VaultInput  types.Pubkey
	VaultBorrow types.Pubkey
	TreasuryLp  types.Pubkey

	// Protocols 添加顺序，与 Vault.Protocols 一致
	Protocols []uint8
	Markets   map[uint8]*Market
}

// Key 由标签生成确定性的公钥
func Key(label string) types.Pubkey {
	return types.Pubkey(types.HashV([]byte("sim:" + label)))
}

func New(opts Options) (*World, error) {
	h := memhost.New()
	w := &World{
		Host:       h,
		Lending:    memhost.NewLendingProgram(),
		Processor:  program.New(adapter.DefaultRegistry(), opts.Policy),
		Events:     &events.Recorder{},
		Options:    opts,
		ProgramID:  consts.VaultProgram,
		Admin:      opts.Policy.Admin,
		Treasury:   opts.Policy.Treasury,
		InputMint:  Key("input_mint"),
		BorrowMint: Key("borrow_mint"),
		Protocols:  []uint8{consts.ProtocolFrancium, consts.ProtocolPort, consts.ProtocolSolend},
		Markets:    make(map[uint8]*Market),
	}
	h.Register(w.ProgramID, w.Processor)
	for _, p := range []types.Pubkey{consts.FranciumLendingProgram, consts.PortProgram, consts.SolendProgram} {
		h.Register(p, w.Lending)
	}
	h.Subscribe(func(e any) {
		if ev, ok := e.(events.Event); ok {
			w.Events.Emit(ev)
		}
	})

	h.CreateMint(w.InputMint, Key("input_mint_authority"), opts.InputDecimals)
	h.CreateMint(w.BorrowMint, Key("borrow_mint_authority"), opts.BorrowDecimals)

	if err := w.initializeVault(); err != nil {
		return nil, fmt.Errorf("initialize vault: %w", err)
	}
	for _, id := range w.Protocols {
		if err := w.setupMarket(id); err != nil {
			return nil, fmt.Errorf("setup %s: %w", consts.ProtocolName(id), err)
		}
	}
	if err := w.configure(); err != nil {
		return nil, fmt.Errorf("configure vault: %w", err)
	}
	return w, nil
}

func (w *World) initializeVault() error {
	vault, _, err := types.FindProgramAddress(
		[][]byte{[]byte(consts.VaultSeed), {w.Options.SeedNumber}, w.InputMint.Bytes()}, w.ProgramID)
	if err != nil {
		return err
	}
	w.Vault = vault
	if w.LpMint, _, err = types.FindProgramAddress(state.LpMintSeeds(vault), w.ProgramID); err != nil {
		return err
	}
	if w.TicketMint, _, err = types.FindProgramAddress(state.TicketMintSeeds(vault), w.ProgramID); err != nil {
		return err
	}
	w.TreasuryLp = Key("treasury_lp")

	ix, err := instruction.New(w.ProgramID, instruction.NameInitializeVault,
		&instruction.InitializeVaultArgs{SeedNumber: w.Options.SeedNumber},
		host.SignerMeta(w.Admin, true),
		host.WritableMeta(w.Vault),
		host.ReadonlyMeta(w.InputMint),
		host.ReadonlyMeta(w.BorrowMint),
		host.WritableMeta(w.LpMint),
		host.WritableMeta(w.TicketMint),
		host.ReadonlyMeta(w.TreasuryLp),
	)
	if err != nil {
		return err
	}
	if err := w.Host.Process([]types.Pubkey{w.Admin}, ix); err != nil {
		return err
	}

	w.VaultInput = Key("vault_input")
	w.VaultBorrow = Key("vault_borrow")
	w.Host.CreateTokenAccount(w.VaultInput, w.InputMint, w.Vault, 0)
	w.Host.CreateTokenAccount(w.VaultBorrow, w.BorrowMint, w.Vault, 0)
	w.Host.CreateTokenAccount(w.TreasuryLp, w.LpMint, w.Treasury, 0)
	return nil
}

func programOf(id uint8) types.Pubkey {
	switch id {
	case consts.ProtocolFrancium:
		return consts.FranciumLendingProgram
	case consts.ProtocolPort:
		return consts.PortProgram
	default:
		return consts.SolendProgram
	}
}

type marketKeys struct {
	market    types.Pubkey
	authority types.Pubkey
}

func newMarket(label string, program types.Pubkey) (marketKeys, error) {
	market := Key(label + "/market")
	auth, _, err := types.FindProgramAddress([][]byte{market.Bytes()}, program)
	if err != nil {
		return marketKeys{}, err
	}
	return marketKeys{market: market, authority: auth}, nil
}

// newReserve 在 market 下创建一个 reserve 及其供应账户与 cToken mint
func (w *World) newReserve(label string, program types.Pubkey, mk marketKeys, mint types.Pubkey,
	decimals, ltv, threshold uint8, liquidity uint64) (lending.ReserveAccounts, error) {
	ra := lending.ReserveAccounts{
		Reserve:          Key(label + "/reserve"),
		LiquiditySupply:  Key(label + "/liquidity_supply"),
		CollateralMint:   Key(label + "/collateral_mint"),
		CollateralSupply: Key(label + "/collateral_supply"),
		LendingMarket:    mk.market,
		MarketAuthority:  mk.authority,
	}
	w.Host.CreateMint(ra.CollateralMint, mk.authority, decimals)
	w.Host.CreateTokenAccount(ra.LiquiditySupply, mint, mk.authority, liquidity)
	w.Host.CreateTokenAccount(ra.CollateralSupply, ra.CollateralMint, mk.authority, 0)

	r := &lending.Reserve{
		Version:       lending.ReserveVersion,
		LendingMarket: mk.market,
		Liquidity: lending.ReserveLiquidity{
			MintPubkey:      mint,
			MintDecimals:    decimals,
			SupplyPubkey:    ra.LiquiditySupply,
			AvailableAmount: liquidity,
			MarketPrice:     wad.DecimalFromU64(1).Scaled(),
		},
		Collateral: lending.ReserveCollateral{
			MintPubkey:   ra.CollateralMint,
			SupplyPubkey: ra.CollateralSupply,
		},
		Config: lending.ReserveConfig{LoanToValueRatio: ltv, LiquidationThreshold: threshold},
	}
	data, err := lending.EncodeReserve(r)
	if err != nil {
		return lending.ReserveAccounts{}, err
	}
	w.Host.SetAccount(ra.Reserve, program, data)
	return ra, nil
}

func (w *World) setupMarket(id uint8) error {
	name := consts.ProtocolName(id)
	prog := programOf(id)
	mk, err := newMarket(name, prog)
	if err != nil {
		return err
	}
	ltv, threshold := uint8(75), uint8(80)
	if id == consts.ProtocolSolend {
		ltv, threshold = w.Options.SolendLTV, w.Options.SolendLiquidationThreshold
	}
	ra, err := w.newReserve(name, prog, mk, w.InputMint, w.Options.InputDecimals, ltv, threshold, 0)
	if err != nil {
		return err
	}
	m := &Market{
		ProtocolID:      id,
		Program:         prog,
		Reserve:         ra,
		VaultCollateral: Key(name + "/vault_collateral"),
	}
	w.Host.CreateTokenAccount(m.VaultCollateral, ra.CollateralMint, w.Vault, 0)
	if id != consts.ProtocolFrancium {
		m.Obligation = adapter.ObligationAddress(w.Vault, mk.market, prog)
	}
	if id == consts.ProtocolSolend {
		br, err := w.newReserve(name+"/borrow", prog, mk, w.BorrowMint, w.Options.BorrowDecimals, 0, 0, w.Options.BorrowLiquidity)
		if err != nil {
			return err
		}
		m.BorrowReserve = br
		m.PriceAccount = priceAccount()
		w.SetBorrowPrice(w.Options.BorrowPrice, 0)
	}
	w.Markets[id] = m
	return nil
}

func priceAccount() types.Pubkey {
	return Key(consts.ProtocolName(consts.ProtocolSolend) + "/price")
}

// SetBorrowPrice 更新借款币的 Pyth 价格账户
func (w *World) SetBorrowPrice(price int64, conf uint64) {
	w.Host.SetPythPrice(priceAccount(), Key("pyth_program"), oracle.Price{
		Price:       price,
		Conf:        conf,
		Status:      oracle.StatusTrading,
		PublishSlot: w.Host.Slot(),
	})
}

// configure add_protocol、初始化 obligation、写入哈希与权重
func (w *World) configure() error {
	var ixs []host.Instruction
	for _, id := range w.Protocols {
		ix, err := w.AddProtocolIx(id)
		if err != nil {
			return err
		}
		ixs = append(ixs, ix)
	}
	if err := w.Host.Process([]types.Pubkey{w.Admin}, ixs...); err != nil {
		return err
	}

	for _, id := range w.Protocols {
		if id == consts.ProtocolFrancium {
			continue
		}
		ix, err := w.ProtocolIx(id, instruction.OpInitialize)
		if err != nil {
			return err
		}
		if err := w.Host.Process(nil, ix); err != nil {
			return err
		}
	}

	ixs = ixs[:0]
	for _, id := range w.Protocols {
		ix, err := w.SetHashesIx(id, w.Hashes(id))
		if err != nil {
			return err
		}
		ixs = append(ixs, ix)
	}
	lev, err := w.SetLeverageHashesIx(consts.ProtocolSolend, w.LeverageHashes(consts.ProtocolSolend))
	if err != nil {
		return err
	}
	weights, err := w.SetWeightsIx(w.Options.Weights)
	if err != nil {
		return err
	}
	ixs = append(ixs, lev, weights)
	return w.Host.Process([]types.Pubkey{w.Admin}, ixs...)
}
