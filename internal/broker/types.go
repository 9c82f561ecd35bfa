package broker

// 交易请求动作，取值与 MT5 的 TRADE_ACTION_* 常量一致。
const (
	ActionDeal    = 1
	ActionPending = 5
	ActionSLTP    = 6
	ActionModify  = 7
	ActionRemove  = 8
)

// 订单有效期，对应 ORDER_TIME_*。
const (
	OrderTimeGTC = 0
)

// 成交方式，对应 ORDER_FILLING_*。
const (
	FillingFOK    = 0
	FillingIOC    = 1
	FillingReturn = 2
)

// 交易返回码，对应 TRADE_RETCODE_*。
const (
	RetcodeDone   = 10009
	RetcodeReject = 10006
)

// Tick 表示品种的实时报价。
type Tick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Time   int64   `json:"time"`
}

// Mid 返回买卖中间价。
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// AccountInfo 描述交易账户的实时状态。
type AccountInfo struct {
	Login      int64   `json:"login"`
	Server     string  `json:"server"`
	Company    string  `json:"company"`
	Currency   string  `json:"currency"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
}

// Position 表示终端持有的一个在场仓位。
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Type         OrderType `json:"type"`
	Volume       float64   `json:"volume"`
	PriceOpen    float64   `json:"price_open"`
	StopLoss     float64   `json:"sl"`
	TakeProfit   float64   `json:"tp"`
	PriceCurrent float64   `json:"price_current"`
	Profit       float64   `json:"profit"`
	Comment      string    `json:"comment"`
}

// Order 表示一张尚未成交的挂单。
type Order struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Type       OrderType `json:"type"`
	Volume     float64   `json:"volume"`
	PriceOpen  float64   `json:"price_open"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Comment    string    `json:"comment"`
}

// SymbolSpec 描述品种的交易规格。
type SymbolSpec struct {
	Name       string  `json:"name"`
	Digits     int     `json:"digits"`
	Point      float64 `json:"point"`
	VolumeMin  float64 `json:"volume_min"`
	VolumeMax  float64 `json:"volume_max"`
	VolumeStep float64 `json:"volume_step"`
}

// TradeRequest 与 MT5 order_send 的请求结构一一对应。
type TradeRequest struct {
	Action      int       `json:"action"`
	Symbol      string    `json:"symbol,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Type        OrderType `json:"type"`
	Price       float64   `json:"price,omitempty"`
	StopLoss    float64   `json:"sl,omitempty"`
	TakeProfit  float64   `json:"tp,omitempty"`
	Deviation   int       `json:"deviation,omitempty"`
	Magic       int64     `json:"magic,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	TypeTime    int       `json:"type_time"`
	TypeFilling int       `json:"type_filling"`
	Position    int64     `json:"position,omitempty"`
	Order       int64     `json:"order,omitempty"`
}

// TradeResult 是 order_send 的执行回执。
type TradeResult struct {
	Retcode   int     `json:"retcode"`
	Deal      int64   `json:"deal"`
	Order     int64   `json:"order"`
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price"`
	Comment   string  `json:"comment"`
	RequestID int     `json:"request_id"`
}
