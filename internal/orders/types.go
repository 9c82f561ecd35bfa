package orders

import (
	"errors"
	"fmt"

	"mt5-trader/internal/broker"
)

// 业务失败文案即对外接口契约，保持与既有客户端一致。
var (
	ErrDailyCapReached        = errors.New("Maximum daily orders reached")
	ErrInvalidPriceFormat     = errors.New("Invalid price format")
	ErrMarketPriceUnavailable = errors.New("Failed to get market price")
	ErrInvalidPositionType    = errors.New("Invalid position type or price settings")
	ErrRiskAboveLimit         = errors.New("Stop loss amount exceeds risk management limit")
	ErrRiskBelowMinimum       = errors.New("Risk amount below minimum required limit")
)

// Request 是下单请求，字段与对外 API 一致。
type Request struct {
	Symbol       string  `json:"symbol"`
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	PositionType string  `json:"position_type"`
	RiskToReward float64 `json:"risk_to_reward"`
}

// Validate 校验请求字段并填充默认风险回报比。
func (r *Request) Validate(allowedSymbols []string, defaultRiskToReward float64) error {
	allowed := false
	for _, symbol := range allowedSymbols {
		if symbol == r.Symbol {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("Symbol %s is not in available symbols", r.Symbol)
	}

	if r.EntryPrice <= 0 || r.StopLoss <= 0 {
		return errors.New("Price must be positive")
	}

	if r.RiskToReward == 0 {
		r.RiskToReward = defaultRiskToReward
	}
	if r.RiskToReward <= 0 {
		return errors.New("Risk to reward ratio must be positive")
	}

	if _, ok := broker.ParseOrderType(r.PositionType); !ok {
		return fmt.Errorf("Invalid position type: %s", r.PositionType)
	}

	return nil
}

// PlaceResult 为下单成功的返回内容。
type PlaceResult struct {
	OrderID    int64  `json:"order_id"`
	OrdersLeft int    `json:"orders_left"`
	Message    string `json:"message"`
}

// CancelResult 为批量撤单的汇总结果。
type CancelResult struct {
	CanceledCount int    `json:"canceled_count"`
	Message       string `json:"message"`
}

// Report 是持仓与挂单的统一列表视图。
type Report struct {
	Ticket     int64   `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Status     string  `json:"status"`
	Pips       float64 `json:"pips"`
}
