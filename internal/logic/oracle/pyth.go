package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/wad"
)

// Pyth v2 价格账户布局
// 参考: https://github.com/pyth-network/pyth-client-js/blob/main/src/index.ts - parsePriceData
const (
	PriceAccountSize = 240

	magicOffset       = 0
	exponentOffset    = 20
	publishTimeOffset = 96
	aggOffset         = 208

	PythMagic uint32 = 0xa1b2c3d4

	StatusTrading uint32 = 1
)

var (
	ErrPriceAccountTooShort = errors.New("price account data too short")
	ErrInvalidMagic         = errors.New("not a pyth price account")
	ErrNotTrading           = errors.New("price status not trading")
	ErrNonPositivePrice     = errors.New("price is not positive")
)

// Price 聚合价格 price * 10^expo
type Price struct {
	Price       int64
	Conf        uint64
	Expo        int32
	Status      uint32
	PublishSlot uint64
	PublishTime int64
}

// ParsePriceAccount 解析价格账户，不校验状态
func ParsePriceAccount(data []byte) (Price, error) {
	if len(data) < PriceAccountSize {
		return Price{}, ErrPriceAccountTooShort
	}
	if binary.LittleEndian.Uint32(data[magicOffset:]) != PythMagic {
		return Price{}, ErrInvalidMagic
	}

	// [0:8]   -> price (int64)
	// [8:16]  -> conf (uint64)
	// [16:20] -> status (1 = trading)
	// [20:24] -> corporateAction (忽略)
	// [24:32] -> publishSlot
	agg := data[aggOffset : aggOffset+32]
	return Price{
		Price:       int64(binary.LittleEndian.Uint64(agg[0:8])),
		Conf:        binary.LittleEndian.Uint64(agg[8:16]),
		Status:      binary.LittleEndian.Uint32(agg[16:20]),
		PublishSlot: binary.LittleEndian.Uint64(agg[24:32]),
		Expo:        int32(binary.LittleEndian.Uint32(data[exponentOffset:])),
		PublishTime: int64(binary.LittleEndian.Uint64(data[publishTimeOffset:])),
	}, nil
}

// CurrentPrice 解析并要求状态为 Trading
func CurrentPrice(data []byte) (Price, error) {
	p, err := ParsePriceAccount(data)
	if err != nil {
		return Price{}, err
	}
	if p.Status != StatusTrading {
		return Price{}, ErrNotTrading
	}
	return p, nil
}

// EncodePriceAccount 生成最小可解析的价格账户数据
func EncodePriceAccount(p Price) []byte {
	data := make([]byte, PriceAccountSize)
	binary.LittleEndian.PutUint32(data[magicOffset:], PythMagic)
	binary.LittleEndian.PutUint32(data[exponentOffset:], uint32(p.Expo))
	binary.LittleEndian.PutUint64(data[publishTimeOffset:], uint64(p.PublishTime))
	agg := data[aggOffset:]
	binary.LittleEndian.PutUint64(agg[0:8], uint64(p.Price))
	binary.LittleEndian.PutUint64(agg[8:16], p.Conf)
	binary.LittleEndian.PutUint32(agg[16:20], p.Status)
	binary.LittleEndian.PutUint64(agg[24:32], p.PublishSlot)
	return data
}

// Decimal 转换为 WAD 定点数
func (p Price) Decimal() (wad.Decimal, error) {
	if p.Price <= 0 {
		return wad.Decimal{}, ErrNonPositivePrice
	}
	scaled := new(uint256.Int).Mul(uint256.NewInt(uint64(p.Price)), uint256.NewInt(wad.WAD))
	if p.Expo >= 0 {
		scaled.Mul(scaled, pow10(uint64(p.Expo)))
	} else {
		scaled.Div(scaled, pow10(uint64(-p.Expo)))
	}
	return wad.DecimalFromInt(scaled)
}

// Value 展示用
func (p Price) Value() decimal.Decimal {
	return decimal.New(p.Price, p.Expo)
}

func (p Price) Confidence() decimal.Decimal {
	return decimal.NewFromUint64(p.Conf).Shift(p.Expo)
}

// CheckConfidence 置信区间相对价格过大时拒绝
func CheckConfidence(mint types.Pubkey, p Price) error {
	var limit decimal.Decimal
	switch mint {
	case consts.USDTMint, consts.USDCMint:
		limit = decimal.RequireFromString("0.005") // 稳定币允许最大 0.5% 的置信误差
	case consts.WSOLMint:
		limit = decimal.RequireFromString("0.02") // SOL 允许最大 2% 的误差
	default:
		limit = decimal.RequireFromString("0.05")
	}
	if p.Confidence().GreaterThan(p.Value().Mul(limit)) {
		return fmt.Errorf("confidence too low: mint=%s price=%s conf=%s", mint, p.Value(), p.Confidence())
	}
	return nil
}

func pow10(n uint64) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(n))
}
