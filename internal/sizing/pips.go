package sizing

import (
	"math"
	"strings"
)

// 金属品种使用专属点差常量，其余按报价精度推导。
const (
	pipBTC    = 0.01
	pipGold   = 0.01
	pipSilver = 0.001
	pipJPY    = 0.001
	pipFX     = 0.0001
)

// PipSize 返回品种的单位点值。
func PipSize(symbol string) float64 {
	switch {
	case symbol == "BTCUSD":
		return pipBTC
	case symbol == "XAUUSD":
		return pipGold
	case symbol == "XAGUSD":
		return pipSilver
	case strings.HasSuffix(symbol, "JPY"):
		return pipJPY
	default:
		return pipFX
	}
}

// PointSize 返回品种的最小报价增量，用于列表展示的点数统计。
func PointSize(symbol string) float64 {
	switch {
	case symbol == "BTCUSD":
		return pipBTC
	case strings.HasSuffix(symbol, "JPY"):
		return pipJPY
	default:
		return 0.00001
	}
}

// CalcPips 按最小报价增量计算入场价与止损价之间的点数，保留两位小数。
// 止损为零时返回零。
func CalcPips(entryPrice, stopLoss float64, symbol string) float64 {
	if stopLoss == 0 {
		return 0
	}
	pips := math.Abs(entryPrice-stopLoss) / PointSize(symbol)
	return math.Round(pips*100) / 100
}
