package sizing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mt5-trader/internal/broker"
)

// 品种规格缺失时的保守默认值。
var (
	defaultVolumeStep = decimal.NewFromFloat(0.01)
	defaultVolumeMin  = decimal.NewFromFloat(0.01)
	defaultVolumeMax  = decimal.NewFromInt(100)
)

var (
	// ErrPairUnavailable 表示换汇所需的货币对无法报价。
	ErrPairUnavailable = errors.New("currency pair unavailable")
	// ErrZeroDistance 表示入场价与止损价重合，无法推导手数。
	ErrZeroDistance = errors.New("sizing: entry price equals stop loss")
)

type quoter interface {
	Tick(ctx context.Context, symbol string) (broker.Tick, error)
	SymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error)
}

// Result 描述归一化后的手数及其实际美元风险。
type Result struct {
	LotSize decimal.Decimal
	RiskUSD decimal.Decimal
}

// Sizer 将目标美元风险换算为符合品种规格的手数。
type Sizer struct {
	quotes quoter
	logger *zap.Logger
}

// NewSizer 创建手数计算器。
func NewSizer(quotes quoter, logger *zap.Logger) *Sizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sizer{
		quotes: quotes,
		logger: logger,
	}
}

// Size 根据入场价、止损价与目标风险计算手数。
// 结果取上下两个步进候选中实际风险更接近目标者，持平取较小手数。
func (s *Sizer) Size(ctx context.Context, symbol string, entryPrice, stopLoss, targetRiskUSD float64) (Result, error) {
	if entryPrice == stopLoss {
		return Result{}, ErrZeroDistance
	}

	pipValue := decimal.NewFromFloat(PipSize(symbol))
	pipDifference := decimal.NewFromFloat(math.Abs(entryPrice - stopLoss)).
		Div(pipValue).
		RoundDown(2)
	if pipDifference.IsZero() {
		return Result{}, ErrZeroDistance
	}

	s.logSpread(ctx, symbol, pipValue)

	pipValueUSD, err := s.pipValueUSD(ctx, symbol, pipValue, entryPrice)
	if err != nil {
		return Result{}, err
	}

	step, volumeMin, volumeMax := s.volumeSpec(ctx, symbol)

	target := decimal.NewFromFloat(targetRiskUSD)
	riskPerLot := pipDifference.Mul(pipValueUSD)
	rawLot := target.Div(riskPerLot)

	lower := rawLot.Div(step).Floor().Mul(step)
	if lower.LessThan(volumeMin) {
		lower = volumeMin
	}
	lower = lower.RoundDown(3)
	if lower.GreaterThan(volumeMax) {
		lower = volumeMax
	}

	upper := lower.Add(step).RoundDown(3)
	if upper.GreaterThan(volumeMax) {
		upper = volumeMax
	}

	riskLower := riskPerLot.Mul(lower)
	riskUpper := riskPerLot.Mul(upper)

	lot := lower
	risk := riskLower
	if riskLower.Sub(target).Abs().GreaterThan(riskUpper.Sub(target).Abs()) {
		lot = upper
		risk = riskUpper
	}

	s.logger.Info("手数计算完成",
		zap.String("symbol", symbol),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("stop_loss", stopLoss),
		zap.String("pip_difference", pipDifference.String()),
		zap.String("pip_value_usd", pipValueUSD.String()),
		zap.String("raw_lot", rawLot.String()),
		zap.String("lot_lower", lower.String()),
		zap.String("lot_upper", upper.String()),
		zap.String("risk_lower", riskLower.String()),
		zap.String("risk_upper", riskUpper.String()),
		zap.String("lot_size", lot.String()),
		zap.String("risk_usd", risk.String()),
	)

	return Result{LotSize: lot, RiskUSD: risk}, nil
}

// pipValueUSD 计算一标准手一个点的美元价值，按品种类别分支。
func (s *Sizer) pipValueUSD(ctx context.Context, symbol string, pipValue decimal.Decimal, entryPrice float64) (decimal.Decimal, error) {
	switch {
	case symbol == "BTCUSD":
		return pipValue, nil
	case symbol == "XAUUSD":
		return pipValue.Mul(decimal.NewFromInt(10)), nil
	case symbol == "XAGUSD":
		return pipValue.Mul(decimal.NewFromInt(50)), nil
	case strings.HasSuffix(symbol, "USD"):
		return pipValue.Mul(decimal.NewFromInt(100000)), nil
	case strings.HasPrefix(symbol, "USD"):
		quote := symbol[3:]
		rate, err := s.quoteToUSD(ctx, quote)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return pipValue.Mul(decimal.NewFromInt(100000)).Mul(rate), nil
	default:
		quote := symbol[3:]
		rate, err := s.quoteToUSD(ctx, quote)
		if err != nil {
			return decimal.Decimal{}, err
		}
		entry := decimal.NewFromFloat(entryPrice)
		return pipValue.Div(entry).Mul(decimal.NewFromInt(100000)).Mul(rate), nil
	}
}

// quoteToUSD 解析某货币到美元的汇率：优先直接对 xxxUSD，失败则取 USDxxx 的倒数。
func (s *Sizer) quoteToUSD(ctx context.Context, currency string) (decimal.Decimal, error) {
	if tick, err := s.quotes.Tick(ctx, currency+"USD"); err == nil && tick.Mid() > 0 {
		return decimal.NewFromFloat(tick.Mid()), nil
	}

	if tick, err := s.quotes.Tick(ctx, "USD"+currency); err == nil && tick.Mid() > 0 {
		return decimal.NewFromInt(1).Div(decimal.NewFromFloat(tick.Mid())), nil
	}

	return decimal.Decimal{}, fmt.Errorf("Currency pair %sUSD or USD%s not available: %w", currency, currency, ErrPairUnavailable)
}

func (s *Sizer) volumeSpec(ctx context.Context, symbol string) (step, volumeMin, volumeMax decimal.Decimal) {
	spec, err := s.quotes.SymbolSpec(ctx, symbol)
	if err != nil || spec.VolumeStep <= 0 {
		s.logger.Warn("品种规格不可用，采用保守默认值",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return defaultVolumeStep, defaultVolumeMin, defaultVolumeMax
	}

	step = decimal.NewFromFloat(spec.VolumeStep)
	volumeMin = decimal.NewFromFloat(spec.VolumeMin)
	volumeMax = decimal.NewFromFloat(spec.VolumeMax)
	if volumeMin.LessThanOrEqual(decimal.Zero) {
		volumeMin = defaultVolumeMin
	}
	if volumeMax.LessThanOrEqual(decimal.Zero) {
		volumeMax = defaultVolumeMax
	}
	return step, volumeMin, volumeMax
}

func (s *Sizer) logSpread(ctx context.Context, symbol string, pipValue decimal.Decimal) {
	tick, err := s.quotes.Tick(ctx, symbol)
	if err != nil {
		return
	}
	spread := decimal.NewFromFloat(tick.Ask - tick.Bid).
		Div(pipValue).
		RoundDown(2)
	s.logger.Info("当前点差",
		zap.String("symbol", symbol),
		zap.String("spread_pips", spread.String()),
	)
}
