// Package metrics 暴露 Prometheus 指标，由 /metrics 端点以文本格式输出。
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OrdersPlaced 成功提交的挂单计数。
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mt5_orders_placed_total",
			Help: "Pending orders successfully placed",
		},
		[]string{"symbol", "type"},
	)

	// OrderRejections 被拒绝的下单请求计数，按原因分类。
	OrderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mt5_order_rejections_total",
			Help: "Order requests rejected before or at submission",
		},
		[]string{"reason"},
	)

	// OrdersCanceled 撤销的挂单计数。
	OrdersCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mt5_orders_canceled_total",
			Help: "Pending orders canceled",
		},
	)

	// RiskFreeMoves 止损保本调整计数。
	RiskFreeMoves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mt5_risk_free_moves_total",
			Help: "Stop loss ratchet adjustments applied",
		},
	)

	// Liquidations 净值目标触发的清仓计数。
	Liquidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mt5_liquidations_total",
			Help: "Equity-target liquidations triggered",
		},
	)

	// AccountEquity 最近一次净值检查读到的账户净值。
	AccountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mt5_account_equity",
			Help: "Account equity from the last equity check",
		},
	)

	// DailyOrderCount 当日已下单计数。
	DailyOrderCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mt5_daily_order_count",
			Help: "Orders counted against the daily cap",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersPlaced,
		OrderRejections,
		OrdersCanceled,
		RiskFreeMoves,
		Liquidations,
		AccountEquity,
		DailyOrderCount,
	)
}
