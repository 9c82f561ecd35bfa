package journal

import "time"

// EventType 表示操作流水事件类型。
type EventType string

const (
	EventOrderPlaced    EventType = "order_placed"
	EventOrderRejected  EventType = "order_rejected"
	EventOrdersCanceled EventType = "orders_canceled"
	EventRiskFree       EventType = "risk_free"
	EventEquityCheck    EventType = "equity_check"
	EventLiquidation    EventType = "liquidation"
	EventError          EventType = "error"
)

// Event 封装通用流水事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderPlacedPayload 记录成功下单。
type OrderPlacedPayload struct {
	Symbol     string  `json:"symbol"`
	OrderType  string  `json:"order_type"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	LotSize    float64 `json:"lot_size"`
	RiskUSD    float64 `json:"risk_usd"`
	OrderID    int64   `json:"order_id"`
	OrdersLeft int     `json:"orders_left"`
}

// OrderRejectedPayload 记录被拒绝的下单请求。
type OrderRejectedPayload struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// OrdersCanceledPayload 记录批量撤单结果。
type OrdersCanceledPayload struct {
	CanceledCount int `json:"canceled_count"`
	OrderCount    int `json:"order_count"`
}

// RiskFreePayload 记录止损保本调整。
type RiskFreePayload struct {
	Ticket      int64   `json:"ticket"`
	NewStopLoss float64 `json:"new_stop_loss"`
}

// EquityCheckPayload 记录净值检查快照。
type EquityCheckPayload struct {
	Equity       float64 `json:"equity"`
	ProfitTarget float64 `json:"profit_target"`
	LossTarget   float64 `json:"loss_target"`
	Breached     bool    `json:"breached"`
}

// LiquidationPayload 记录清仓结果。
type LiquidationPayload struct {
	ClosedCount   int    `json:"closed_count"`
	CanceledCount int    `json:"canceled_count"`
	Message       string `json:"message"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
