package broker

import "strings"

// OrderType 订单类型，数值与 MT5 的 ORDER_TYPE_* 常量一致。
type OrderType int

const (
	OrderTypeBuy       OrderType = 0
	OrderTypeSell      OrderType = 1
	OrderTypeBuyLimit  OrderType = 2
	OrderTypeSellLimit OrderType = 3
	OrderTypeBuyStop   OrderType = 4
	OrderTypeSellStop  OrderType = 5
)

// ParseOrderType 解析下单方向标记，大小写不敏感，同时兼容空格与下划线写法。
func ParseOrderType(value string) (OrderType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", " ")

	switch normalized {
	case "buy":
		return OrderTypeBuy, true
	case "sell":
		return OrderTypeSell, true
	case "buy limit":
		return OrderTypeBuyLimit, true
	case "sell limit":
		return OrderTypeSellLimit, true
	case "buy stop":
		return OrderTypeBuyStop, true
	case "sell stop":
		return OrderTypeSellStop, true
	}

	return 0, false
}

// IsBuySide 判断是否属于买方向。
func (t OrderType) IsBuySide() bool {
	switch t {
	case OrderTypeBuy, OrderTypeBuyLimit, OrderTypeBuyStop:
		return true
	}
	return false
}

// IsMarket 判断是否为市价意图（buy/sell，未指明挂单语义）。
func (t OrderType) IsMarket() bool {
	return t == OrderTypeBuy || t == OrderTypeSell
}

// IsPending 判断是否为挂单类型。
func (t OrderType) IsPending() bool {
	return t >= OrderTypeBuyLimit && t <= OrderTypeSellStop
}

// String 返回展示用名称。
func (t OrderType) String() string {
	switch t {
	case OrderTypeBuy:
		return "Buy"
	case OrderTypeSell:
		return "Sell"
	case OrderTypeBuyLimit:
		return "Buy Limit"
	case OrderTypeSellLimit:
		return "Sell Limit"
	case OrderTypeBuyStop:
		return "Buy Stop"
	case OrderTypeSellStop:
		return "Sell Stop"
	}
	return "Unknown"
}
