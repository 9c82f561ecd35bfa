package orders

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mt5-trader/internal/broker"
	"mt5-trader/internal/config"
	"mt5-trader/internal/counter"
	"mt5-trader/internal/journal"
	"mt5-trader/internal/metrics"
	"mt5-trader/internal/sizing"
)

// 挂单提交参数，与终端侧约定保持一致。
const (
	placeDeviation = 20
	orderMagic     = 234000
)

// 实际风险允许偏离目标 ±20%。
var (
	riskBandUpper = decimal.NewFromFloat(1.2)
	riskBandLower = decimal.NewFromFloat(0.8)
)

type brokerClient interface {
	Tick(ctx context.Context, symbol string) (broker.Tick, error)
	Positions(ctx context.Context) ([]broker.Position, error)
	Orders(ctx context.Context) ([]broker.Order, error)
	OrderSend(ctx context.Context, req broker.TradeRequest) (broker.TradeResult, error)
}

type lotSizer interface {
	Size(ctx context.Context, symbol string, entryPrice, stopLoss, targetRiskUSD float64) (sizing.Result, error)
}

// Engine 负责把下单请求转化为风险受控的挂单。
type Engine struct {
	cfg     config.TradingConfig
	client  brokerClient
	sizer   lotSizer
	counter *counter.Daily
	events  *journal.Service
	logger  *zap.Logger
}

// NewEngine 创建下单引擎。events 可为空，流水记录随之关闭。
func NewEngine(cfg config.TradingConfig, client brokerClient, sizer lotSizer, daily *counter.Daily, events *journal.Service, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		sizer:   sizer,
		counter: daily,
		events:  events,
		logger:  logger,
	}
}

// Place 执行一次下单。任一步骤失败立即返回，失败路径不产生状态变更。
func (e *Engine) Place(ctx context.Context, req Request) (PlaceResult, error) {
	if e.counter.Count() >= e.cfg.MaxDailyOrders {
		e.logger.Warn("已达到当日下单上限", zap.Int("count", e.counter.Count()))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "daily_cap", ErrDailyCapReached)
	}

	if req.EntryPrice <= 0 || req.StopLoss <= 0 {
		return PlaceResult{}, e.reject(ctx, req.Symbol, "price_format", ErrInvalidPriceFormat)
	}

	intent, ok := broker.ParseOrderType(req.PositionType)
	if !ok {
		return PlaceResult{}, e.reject(ctx, req.Symbol, "position_type", ErrInvalidPositionType)
	}

	tick, err := e.client.Tick(ctx, req.Symbol)
	if err != nil {
		e.logger.Error("获取行情失败", zap.String("symbol", req.Symbol), zap.Error(err))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "market_price", ErrMarketPriceUnavailable)
	}

	currentPrice := tick.Bid
	if intent.IsBuySide() {
		currentPrice = tick.Ask
	}

	orderType, ok := inferOrderType(intent, currentPrice, req.EntryPrice)
	if !ok {
		return PlaceResult{}, e.reject(ctx, req.Symbol, "position_type", ErrInvalidPositionType)
	}

	sized, err := e.sizer.Size(ctx, req.Symbol, req.EntryPrice, req.StopLoss, e.cfg.TargetRiskUSD)
	if err != nil {
		e.logger.Error("手数计算失败", zap.String("symbol", req.Symbol), zap.Error(err))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "sizing", err)
	}

	target := decimal.NewFromFloat(e.cfg.TargetRiskUSD)
	if sized.RiskUSD.GreaterThan(target.Mul(riskBandUpper)) {
		e.logger.Warn("实际风险超出上限", zap.String("risk_usd", sized.RiskUSD.String()))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "risk_band_high", ErrRiskAboveLimit)
	}
	if sized.RiskUSD.LessThan(target.Mul(riskBandLower)) {
		e.logger.Warn("实际风险低于下限", zap.String("risk_usd", sized.RiskUSD.String()))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "risk_band_low", ErrRiskBelowMinimum)
	}

	takeProfit := takeProfitFor(intent, req.EntryPrice, req.StopLoss, req.RiskToReward)
	lotSize := sized.LotSize.InexactFloat64()

	result, err := e.client.OrderSend(ctx, broker.TradeRequest{
		Action:      broker.ActionPending,
		Symbol:      req.Symbol,
		Volume:      lotSize,
		Type:        orderType,
		Price:       req.EntryPrice,
		StopLoss:    req.StopLoss,
		TakeProfit:  takeProfit,
		Deviation:   placeDeviation,
		Magic:       orderMagic,
		Comment:     e.cfg.Comment,
		TypeTime:    broker.OrderTimeGTC,
		TypeFilling: broker.FillingReturn,
	})
	if err != nil {
		e.logger.Error("挂单提交失败", zap.String("symbol", req.Symbol), zap.Error(err))
		return PlaceResult{}, e.reject(ctx, req.Symbol, "broker", err)
	}

	count := e.counter.Increment()
	metrics.DailyOrderCount.Set(float64(count))
	metrics.OrdersPlaced.WithLabelValues(req.Symbol, orderType.String()).Inc()

	ordersLeft := e.cfg.MaxDailyOrders - count
	message := fmt.Sprintf("Order placed successfully. %d orders left for today", ordersLeft)
	e.logger.Info("挂单提交成功",
		zap.String("symbol", req.Symbol),
		zap.String("type", orderType.String()),
		zap.Int64("order_id", result.Order),
		zap.Float64("lot_size", lotSize),
		zap.Int("orders_left", ordersLeft),
	)

	if e.events != nil {
		e.events.RecordOrderPlaced(ctx, journal.OrderPlacedPayload{
			Symbol:     req.Symbol,
			OrderType:  orderType.String(),
			EntryPrice: req.EntryPrice,
			StopLoss:   req.StopLoss,
			TakeProfit: takeProfit,
			LotSize:    lotSize,
			RiskUSD:    sized.RiskUSD.InexactFloat64(),
			OrderID:    result.Order,
			OrdersLeft: ordersLeft,
		})
	}

	return PlaceResult{
		OrderID:    result.Order,
		OrdersLeft: ordersLeft,
		Message:    message,
	}, nil
}

// CancelPending 撤销全部挂单。单笔失败只记录日志，不中断批次。
func (e *Engine) CancelPending(ctx context.Context) (CancelResult, error) {
	pending, err := e.client.Orders(ctx)
	if err != nil {
		return CancelResult{}, fmt.Errorf("Failed to cancel pending orders: %v", err)
	}

	if len(pending) == 0 {
		e.logger.Info("没有需要撤销的挂单")
		return CancelResult{
			CanceledCount: 0,
			Message:       "No pending orders to cancel",
		}, nil
	}

	canceled := 0
	for _, order := range pending {
		_, sendErr := e.client.OrderSend(ctx, broker.TradeRequest{
			Action: broker.ActionRemove,
			Order:  order.Ticket,
		})
		if sendErr != nil {
			e.logger.Error("撤销挂单失败",
				zap.Int64("ticket", order.Ticket),
				zap.Error(sendErr),
			)
			continue
		}
		e.logger.Info("挂单已撤销", zap.Int64("ticket", order.Ticket))
		canceled++
	}

	if canceled > 0 {
		count := e.counter.Decrement(canceled)
		metrics.DailyOrderCount.Set(float64(count))
		metrics.OrdersCanceled.Add(float64(canceled))
		e.logger.Info("撤单完成并回收额度",
			zap.Int("canceled", canceled),
			zap.Int("order_count", count),
		)
		if e.events != nil {
			e.events.RecordOrdersCanceled(ctx, journal.OrdersCanceledPayload{
				CanceledCount: canceled,
				OrderCount:    count,
			})
		}
	}

	return CancelResult{
		CanceledCount: canceled,
		Message:       fmt.Sprintf("Canceled %d pending orders", canceled),
	}, nil
}

// ListAll 并发拉取持仓与挂单，合并为统一视图，持仓在前。
func (e *Engine) ListAll(ctx context.Context) ([]Report, error) {
	var (
		positions []broker.Position
		pending   []broker.Order
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := e.client.Positions(groupCtx)
		if err != nil {
			return err
		}
		positions = data
		return nil
	})

	group.Go(func() error {
		data, err := e.client.Orders(groupCtx)
		if err != nil {
			return err
		}
		pending = data
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("orders: 获取订单与持仓失败: %w", err)
	}

	reports := make([]Report, 0, len(positions)+len(pending))
	for _, position := range positions {
		reports = append(reports, Report{
			Ticket:     position.Ticket,
			Symbol:     position.Symbol,
			Type:       position.Type.String(),
			EntryPrice: position.PriceOpen,
			StopLoss:   position.StopLoss,
			TakeProfit: position.TakeProfit,
			Status:     "open",
			Pips:       sizing.CalcPips(position.PriceOpen, position.StopLoss, position.Symbol),
		})
	}
	for _, order := range pending {
		reports = append(reports, Report{
			Ticket:     order.Ticket,
			Symbol:     order.Symbol,
			Type:       order.Type.String(),
			EntryPrice: order.PriceOpen,
			StopLoss:   order.StopLoss,
			TakeProfit: order.TakeProfit,
			Status:     "pending",
			Pips:       sizing.CalcPips(order.PriceOpen, order.StopLoss, order.Symbol),
		})
	}

	return reports, nil
}

// reject 统一处理拒绝路径的指标与流水。
func (e *Engine) reject(ctx context.Context, symbol, reason string, err error) error {
	metrics.OrderRejections.WithLabelValues(reason).Inc()
	if e.events != nil {
		e.events.RecordOrderRejected(ctx, journal.OrderRejectedPayload{
			Symbol: symbol,
			Reason: err.Error(),
		})
	}
	return err
}

// inferOrderType 把泛化的买卖意图换算为具体挂单类型：
// 买入低于市价为限价、高于市价为止损单，卖出方向对称；显式挂单类型原样通过。
func inferOrderType(intent broker.OrderType, currentPrice, entryPrice float64) (broker.OrderType, bool) {
	switch intent {
	case broker.OrderTypeBuy:
		if currentPrice > entryPrice {
			return broker.OrderTypeBuyLimit, true
		}
		return broker.OrderTypeBuyStop, true
	case broker.OrderTypeSell:
		if currentPrice < entryPrice {
			return broker.OrderTypeSellLimit, true
		}
		return broker.OrderTypeSellStop, true
	case broker.OrderTypeBuyLimit, broker.OrderTypeSellLimit, broker.OrderTypeBuyStop, broker.OrderTypeSellStop:
		return intent, true
	}
	return 0, false
}

func takeProfitFor(intent broker.OrderType, entryPrice, stopLoss, riskToReward float64) float64 {
	distance := riskToReward * math.Abs(entryPrice-stopLoss)
	if intent.IsBuySide() {
		return entryPrice + distance
	}
	return entryPrice - distance
}
