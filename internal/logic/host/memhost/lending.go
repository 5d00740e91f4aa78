package memhost

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/lending"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

var (
	ErrUnknownLendingInstruction = errors.New("unknown lending instruction")
	ErrReserveMismatch           = errors.New("reserve account mismatch")
	ErrObligationOwner           = errors.New("obligation owner mismatch")
	ErrObligationInitialized     = errors.New("obligation already initialized")
	ErrBorrowTooLarge            = errors.New("borrow exceeds allowed value")
	ErrWithdrawTooLarge          = errors.New("withdraw leaves obligation unhealthy")
	ErrInsufficientLiquidity     = errors.New("insufficient reserve liquidity")
	ErrZeroAmount                = errors.New("amount converts to zero")
)

// LendingProgram token-lending 的最小实现，支持 Vault 用到的指令。
// 同一个实例可以注册在多个 program id 下（Solend、Port、Francium）。
type LendingProgram struct {
	calls atomic.Int64
}

func NewLendingProgram() *LendingProgram { return &LendingProgram{} }

// Calls 累计被调用次数（含失败的调用）
func (p *LendingProgram) Calls() int64 { return p.calls.Load() }

var _ host.Program = (*LendingProgram)(nil)

func (p *LendingProgram) Process(rt host.Runtime, accounts []host.AccountMeta, data []byte) error {
	p.calls.Add(1)
	tag, amount, err := lending.DecodeAmount(data)
	if err != nil {
		return err
	}
	keys := make([]types.Pubkey, len(accounts))
	for i, a := range accounts {
		keys[i] = a.Pubkey
	}
	need := map[uint8]int{
		lending.TagDepositReserveLiquidity:                                8,
		lending.TagRedeemReserveCollateral:                                8,
		lending.TagInitObligation:                                         3,
		lending.TagBorrowObligationLiquidity:                              7,
		lending.TagRepayObligationLiquidity:                               6,
		lending.TagDepositReserveLiquidityAndObligationCollateral:         10,
		lending.TagWithdrawObligationCollateralAndRedeemReserveCollateral: 10,
	}
	n, ok := need[tag]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLendingInstruction, tag)
	}
	if len(keys) < n {
		return fmt.Errorf("lending instruction %d: not enough accounts", tag)
	}

	switch tag {
	case lending.TagDepositReserveLiquidity:
		return p.depositReserveLiquidity(rt, amount, keys)
	case lending.TagRedeemReserveCollateral:
		return p.redeemReserveCollateral(rt, amount, keys)
	case lending.TagInitObligation:
		return p.initObligation(rt, keys)
	case lending.TagBorrowObligationLiquidity:
		return p.borrow(rt, amount, keys)
	case lending.TagRepayObligationLiquidity:
		return p.repay(rt, amount, keys)
	case lending.TagDepositReserveLiquidityAndObligationCollateral:
		return p.depositObligation(rt, amount, keys)
	default:
		return p.withdrawObligation(rt, amount, keys)
	}
}

// ---------- reserve ----------

func loadReserve(rt host.Runtime, key types.Pubkey) (*lending.Reserve, error) {
	data, err := rt.AccountData(key)
	if err != nil {
		return nil, err
	}
	return lending.DecodeReserve(data)
}

func saveReserve(rt host.Runtime, key types.Pubkey, r *lending.Reserve) error {
	data, err := lending.EncodeReserve(r)
	if err != nil {
		return err
	}
	return rt.WriteAccount(key, data)
}

func loadObligation(rt host.Runtime, key types.Pubkey) (*lending.Obligation, error) {
	data, err := rt.AccountData(key)
	if err != nil {
		return nil, err
	}
	return lending.DecodeObligation(data)
}

func saveObligation(rt host.Runtime, key types.Pubkey, o *lending.Obligation) error {
	data, err := lending.EncodeObligation(o)
	if err != nil {
		return err
	}
	return rt.WriteAccount(key, data)
}

// marketSeeds lending market authority 的签名种子
func marketSeeds(rt host.Runtime, market, authority types.Pubkey) (host.SignerSeeds, error) {
	key, bump, err := lending.MarketAuthority(rt, rt.ProgramID(), market)
	if err != nil {
		return nil, err
	}
	if key != authority {
		return nil, fmt.Errorf("%w: market authority", ErrReserveMismatch)
	}
	return host.SignerSeeds{market.Bytes(), {bump}}, nil
}

func checkReserve(r *lending.Reserve, market, liquiditySupply, collateralMint types.Pubkey) error {
	if r.LendingMarket != market {
		return fmt.Errorf("%w: lending market", ErrReserveMismatch)
	}
	if r.Liquidity.SupplyPubkey != liquiditySupply {
		return fmt.Errorf("%w: liquidity supply", ErrReserveMismatch)
	}
	if r.Collateral.MintPubkey != collateralMint {
		return fmt.Errorf("%w: collateral mint", ErrReserveMismatch)
	}
	return nil
}

// mintCollateral 流动性进入 reserve，按当前汇率铸造 cToken
func (p *LendingProgram) mintCollateral(rt host.Runtime, r *lending.Reserve, amount uint64,
	src, dst, authority, market, marketAuth types.Pubkey) (uint64, error) {
	seeds, err := marketSeeds(rt, market, marketAuth)
	if err != nil {
		return 0, err
	}
	coll, err := r.LiquidityToCollateral(amount)
	if err != nil {
		return 0, err
	}
	if coll == 0 {
		return 0, ErrZeroAmount
	}
	if err := rt.Transfer(src, r.Liquidity.SupplyPubkey, authority, amount); err != nil {
		return 0, err
	}
	if err := rt.MintTo(r.Collateral.MintPubkey, dst, marketAuth, coll, seeds); err != nil {
		return 0, err
	}
	if r.Liquidity.AvailableAmount, err = wad.AddU64(r.Liquidity.AvailableAmount, amount); err != nil {
		return 0, err
	}
	if r.Collateral.MintTotalSupply, err = wad.AddU64(r.Collateral.MintTotalSupply, coll); err != nil {
		return 0, err
	}
	return coll, nil
}

// burnCollateral 销毁 cToken，按当前汇率付出流动性
func (p *LendingProgram) burnCollateral(rt host.Runtime, r *lending.Reserve, coll uint64,
	src, dst, authority, market, marketAuth types.Pubkey) (uint64, error) {
	seeds, err := marketSeeds(rt, market, marketAuth)
	if err != nil {
		return 0, err
	}
	liq, err := r.CollateralToLiquidity(coll)
	if err != nil {
		return 0, err
	}
	if liq == 0 {
		return 0, ErrZeroAmount
	}
	if liq > r.Liquidity.AvailableAmount {
		return 0, ErrInsufficientLiquidity
	}
	if err := rt.Burn(r.Collateral.MintPubkey, src, authority, coll); err != nil {
		return 0, err
	}
	if err := rt.Transfer(r.Liquidity.SupplyPubkey, dst, marketAuth, liq, seeds); err != nil {
		return 0, err
	}
	r.Liquidity.AvailableAmount -= liq
	r.Collateral.MintTotalSupply -= coll
	return liq, nil
}

func (p *LendingProgram) depositReserveLiquidity(rt host.Runtime, amount uint64, k []types.Pubkey) error {
	src, dstColl, reserveKey, liqSupply, collMint, market, marketAuth, authority :=
		k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if err := checkReserve(r, market, liqSupply, collMint); err != nil {
		return err
	}
	if _, err := p.mintCollateral(rt, r, amount, src, dstColl, authority, market, marketAuth); err != nil {
		return err
	}
	return saveReserve(rt, reserveKey, r)
}

func (p *LendingProgram) redeemReserveCollateral(rt host.Runtime, coll uint64, k []types.Pubkey) error {
	srcColl, dst, reserveKey, collMint, liqSupply, market, marketAuth, authority :=
		k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if err := checkReserve(r, market, liqSupply, collMint); err != nil {
		return err
	}
	if _, err := p.burnCollateral(rt, r, coll, srcColl, dst, authority, market, marketAuth); err != nil {
		return err
	}
	return saveReserve(rt, reserveKey, r)
}

// ---------- obligation ----------

func (p *LendingProgram) initObligation(rt host.Runtime, k []types.Pubkey) error {
	obligationKey, market, owner := k[0], k[1], k[2]
	data, err := rt.AccountData(obligationKey)
	if err != nil {
		return err
	}
	if len(data) > 0 && data[0] != 0 {
		return ErrObligationInitialized
	}
	o := &lending.Obligation{
		Version:       lending.ObligationVersion,
		LendingMarket: market,
		Owner:         owner,
	}
	return saveObligation(rt, obligationKey, o)
}

func checkObligation(o *lending.Obligation, market, owner types.Pubkey) error {
	if o.LendingMarket != market {
		return fmt.Errorf("%w: obligation market", ErrReserveMismatch)
	}
	if o.Owner != owner {
		return ErrObligationOwner
	}
	return nil
}

func (p *LendingProgram) depositObligation(rt host.Runtime, amount uint64, k []types.Pubkey) error {
	src, userColl, reserveKey, liqSupply, collMint, market, marketAuth, collSupply, obligationKey, owner :=
		k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7], k[8], k[9]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if err := checkReserve(r, market, liqSupply, collMint); err != nil {
		return err
	}
	if r.Collateral.SupplyPubkey != collSupply {
		return fmt.Errorf("%w: collateral supply", ErrReserveMismatch)
	}
	o, err := loadObligation(rt, obligationKey)
	if err != nil {
		return err
	}
	if err := checkObligation(o, market, owner); err != nil {
		return err
	}
	coll, err := p.mintCollateral(rt, r, amount, src, userColl, owner, market, marketAuth)
	if err != nil {
		return err
	}
	if err := rt.Transfer(userColl, collSupply, owner, coll); err != nil {
		return err
	}
	if i, ok := o.FindDeposit(reserveKey); ok {
		if o.Deposits[i].DepositedAmount, err = wad.AddU64(o.Deposits[i].DepositedAmount, coll); err != nil {
			return err
		}
	} else {
		o.Deposits = append(o.Deposits, lending.ObligationCollateral{DepositReserve: reserveKey, DepositedAmount: coll})
	}
	if err := saveReserve(rt, reserveKey, r); err != nil {
		return err
	}
	if err := refreshObligation(rt, o); err != nil {
		return err
	}
	return saveObligation(rt, obligationKey, o)
}

func (p *LendingProgram) withdrawObligation(rt host.Runtime, coll uint64, k []types.Pubkey) error {
	collSupply, userColl, reserveKey, obligationKey, market, marketAuth, dst, collMint, liqSupply, owner :=
		k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7], k[8], k[9]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if err := checkReserve(r, market, liqSupply, collMint); err != nil {
		return err
	}
	if r.Collateral.SupplyPubkey != collSupply {
		return fmt.Errorf("%w: collateral supply", ErrReserveMismatch)
	}
	o, err := loadObligation(rt, obligationKey)
	if err != nil {
		return err
	}
	if err := checkObligation(o, market, owner); err != nil {
		return err
	}
	i, ok := o.FindDeposit(reserveKey)
	if !ok {
		return fmt.Errorf("%w: no deposit for reserve", ErrInsufficientFunds)
	}
	if coll == math.MaxUint64 {
		coll = o.Deposits[i].DepositedAmount
	}
	if coll > o.Deposits[i].DepositedAmount {
		return fmt.Errorf("%w: collateral", ErrInsufficientFunds)
	}

	o.Deposits[i].DepositedAmount -= coll
	if o.Deposits[i].DepositedAmount == 0 {
		o.Deposits = append(o.Deposits[:i], o.Deposits[i+1:]...)
	}
	if err := refreshObligation(rt, o); err != nil {
		return err
	}
	if o.BorrowedValue.Int().Cmp(o.AllowedBorrowValue.Int()) > 0 {
		return ErrWithdrawTooLarge
	}

	seeds, err := marketSeeds(rt, market, marketAuth)
	if err != nil {
		return err
	}
	if err := rt.Transfer(collSupply, userColl, marketAuth, coll, seeds); err != nil {
		return err
	}
	if _, err := p.burnCollateral(rt, r, coll, userColl, dst, owner, market, marketAuth); err != nil {
		return err
	}
	if err := saveReserve(rt, reserveKey, r); err != nil {
		return err
	}
	return saveObligation(rt, obligationKey, o)
}

func (p *LendingProgram) borrow(rt host.Runtime, amount uint64, k []types.Pubkey) error {
	liqSupply, dst, reserveKey, obligationKey, market, marketAuth, owner := k[0], k[1], k[2], k[3], k[4], k[5], k[6]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if r.LendingMarket != market || r.Liquidity.SupplyPubkey != liqSupply {
		return ErrReserveMismatch
	}
	o, err := loadObligation(rt, obligationKey)
	if err != nil {
		return err
	}
	if err := checkObligation(o, market, owner); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount > r.Liquidity.AvailableAmount {
		return ErrInsufficientLiquidity
	}
	seeds, err := marketSeeds(rt, market, marketAuth)
	if err != nil {
		return err
	}

	borrowed := wad.DecimalFromU64(amount)
	total, err := wad.DecimalFromScaled(r.Liquidity.BorrowedAmountWads).TryAdd(borrowed)
	if err != nil {
		return err
	}
	r.Liquidity.BorrowedAmountWads = total.Scaled()
	r.Liquidity.AvailableAmount -= amount
	if err := saveReserve(rt, reserveKey, r); err != nil {
		return err
	}

	if i, ok := o.FindBorrow(reserveKey); ok {
		sum, err := wad.DecimalFromScaled(o.Borrows[i].BorrowedAmountWads).TryAdd(borrowed)
		if err != nil {
			return err
		}
		o.Borrows[i].BorrowedAmountWads = sum.Scaled()
	} else {
		o.Borrows = append(o.Borrows, lending.ObligationLiquidity{BorrowReserve: reserveKey, BorrowedAmountWads: borrowed.Scaled()})
	}
	if err := refreshObligation(rt, o); err != nil {
		return err
	}
	if o.BorrowedValue.Int().Cmp(o.AllowedBorrowValue.Int()) > 0 {
		return ErrBorrowTooLarge
	}
	if err := rt.Transfer(liqSupply, dst, marketAuth, amount, seeds); err != nil {
		return err
	}
	return saveObligation(rt, obligationKey, o)
}

func (p *LendingProgram) repay(rt host.Runtime, amount uint64, k []types.Pubkey) error {
	src, liqSupply, reserveKey, obligationKey, market, authority := k[0], k[1], k[2], k[3], k[4], k[5]
	r, err := loadReserve(rt, reserveKey)
	if err != nil {
		return err
	}
	if r.LendingMarket != market || r.Liquidity.SupplyPubkey != liqSupply {
		return ErrReserveMismatch
	}
	o, err := loadObligation(rt, obligationKey)
	if err != nil {
		return err
	}
	if o.LendingMarket != market {
		return ErrReserveMismatch
	}
	i, ok := o.FindBorrow(reserveKey)
	if !ok {
		return fmt.Errorf("%w: no borrow for reserve", ErrInsufficientFunds)
	}
	owed := wad.DecimalFromScaled(o.Borrows[i].BorrowedAmountWads)
	owedCeil, err := owed.TryCeilU64()
	if err != nil {
		return err
	}
	if amount > owedCeil {
		amount = owedCeil
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if err := rt.Transfer(src, liqSupply, authority, amount); err != nil {
		return err
	}

	paid := wad.DecimalFromU64(amount)
	if r.Liquidity.AvailableAmount, err = wad.AddU64(r.Liquidity.AvailableAmount, amount); err != nil {
		return err
	}
	r.Liquidity.BorrowedAmountWads = saturatingSub(wad.DecimalFromScaled(r.Liquidity.BorrowedAmountWads), paid).Scaled()
	if err := saveReserve(rt, reserveKey, r); err != nil {
		return err
	}

	left := saturatingSub(owed, paid)
	if left.IsZero() {
		o.Borrows = append(o.Borrows[:i], o.Borrows[i+1:]...)
	} else {
		o.Borrows[i].BorrowedAmountWads = left.Scaled()
	}
	if err := refreshObligation(rt, o); err != nil {
		return err
	}
	return saveObligation(rt, obligationKey, o)
}

func saturatingSub(a, b wad.Decimal) wad.Decimal {
	d, err := a.TrySub(b)
	if err != nil {
		return wad.Zero()
	}
	return d
}

// refreshObligation 按 reserve 的市场价重新计算 obligation 的各项价值
func refreshObligation(rt host.Runtime, o *lending.Obligation) error {
	deposited, allowed, unhealthy, borrowed := wad.Zero(), wad.Zero(), wad.Zero(), wad.Zero()

	for i := range o.Deposits {
		d := &o.Deposits[i]
		r, err := loadReserve(rt, d.DepositReserve)
		if err != nil {
			return err
		}
		liq, err := r.CollateralToLiquidity(d.DepositedAmount)
		if err != nil {
			return err
		}
		value, err := marketValue(r, wad.DecimalFromU64(liq))
		if err != nil {
			return err
		}
		d.MarketValue = value.Scaled()
		if deposited, err = deposited.TryAdd(value); err != nil {
			return err
		}
		if allowed, err = addPercent(allowed, value, r.Config.LoanToValueRatio); err != nil {
			return err
		}
		if unhealthy, err = addPercent(unhealthy, value, r.Config.LiquidationThreshold); err != nil {
			return err
		}
	}

	for i := range o.Borrows {
		b := &o.Borrows[i]
		r, err := loadReserve(rt, b.BorrowReserve)
		if err != nil {
			return err
		}
		value, err := marketValue(r, wad.DecimalFromScaled(b.BorrowedAmountWads))
		if err != nil {
			return err
		}
		b.MarketValue = value.Scaled()
		if borrowed, err = borrowed.TryAdd(value); err != nil {
			return err
		}
	}

	o.DepositedValue = deposited.Scaled()
	o.AllowedBorrowValue = allowed.Scaled()
	o.UnhealthyBorrowValue = unhealthy.Scaled()
	o.BorrowedValue = borrowed.Scaled()
	return nil
}

// marketValue amount * price / 10^decimals
func marketValue(r *lending.Reserve, amount wad.Decimal) (wad.Decimal, error) {
	v, err := amount.TryMul(wad.DecimalFromScaled(r.Liquidity.MarketPrice))
	if err != nil {
		return wad.Decimal{}, err
	}
	return v.TryDivU64(pow10(r.Liquidity.MintDecimals))
}

func addPercent(acc, value wad.Decimal, pct uint8) (wad.Decimal, error) {
	part, err := value.TryMulU64(uint64(pct))
	if err != nil {
		return wad.Decimal{}, err
	}
	if part, err = part.TryDivU64(100); err != nil {
		return wad.Decimal{}, err
	}
	return acc.TryAdd(part)
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}
