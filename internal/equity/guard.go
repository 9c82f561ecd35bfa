package equity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"mt5-trader/internal/broker"
	"mt5-trader/internal/journal"
	"mt5-trader/internal/metrics"
)

// 清仓平仓单的提交参数。
const (
	closeDeviation = 50
	closeMagic     = 234000
	closeComment   = "Auto-close on equity target"
)

// 平仓按序尝试的成交方式，首个成功者生效。
var closeFillings = []int{broker.FillingIOC, broker.FillingFOK, broker.FillingReturn}

var (
	// ErrTargetNotPositive 表示目标净值必须为正数。
	ErrTargetNotPositive = errors.New("Equity target must be positive")
	// ErrProfitNotAboveLoss 表示盈利目标必须高于亏损目标。
	ErrProfitNotAboveLoss = errors.New("Profit equity must be greater than loss equity")
)

type guardClient interface {
	Account(ctx context.Context) (broker.AccountInfo, error)
	Positions(ctx context.Context) ([]broker.Position, error)
	Orders(ctx context.Context) ([]broker.Order, error)
	Tick(ctx context.Context, symbol string) (broker.Tick, error)
	SymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error)
	OrderSend(ctx context.Context, req broker.TradeRequest) (broker.TradeResult, error)
}

// CloseSummary 汇总一次清仓的结果。
type CloseSummary struct {
	ClosedCount   int    `json:"closed_count"`
	CanceledCount int    `json:"canceled_orders"`
	Message       string `json:"message"`
}

// Guard 持有净值目标并在越界时触发全量清仓。
type Guard struct {
	client guardClient
	events *journal.Service
	logger *zap.Logger

	mu           sync.Mutex
	profitTarget float64
	lossTarget   float64
	active       bool
}

// NewGuard 创建净值监控器。events 可为空。
func NewGuard(client guardClient, events *journal.Service, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		client: client,
		events: events,
		logger: logger,
	}
}

// SetTargets 设置盈亏目标并激活监控。校验失败时原有目标保持不变。
func (g *Guard) SetTargets(profitEquity, lossEquity float64) error {
	if profitEquity <= 0 || lossEquity <= 0 {
		return ErrTargetNotPositive
	}
	if profitEquity <= lossEquity {
		g.logger.Error("盈利目标必须高于亏损目标",
			zap.Float64("profit", profitEquity),
			zap.Float64("loss", lossEquity),
		)
		return ErrProfitNotAboveLoss
	}

	g.mu.Lock()
	g.profitTarget = profitEquity
	g.lossTarget = lossEquity
	g.active = true
	g.mu.Unlock()

	g.logger.Info("净值目标已设置",
		zap.Float64("profit", profitEquity),
		zap.Float64("loss", lossEquity),
	)
	return nil
}

// Targets 返回当前目标与激活状态。
func (g *Guard) Targets() (profit, loss float64, active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profitTarget, g.lossTarget, g.active
}

// Check 读取账户净值并在越界时清仓。未激活时为空操作。
// 返回的摘要仅在发生清仓时非空。
func (g *Guard) Check(ctx context.Context) (*CloseSummary, error) {
	g.mu.Lock()
	profit, loss, active := g.profitTarget, g.lossTarget, g.active
	g.mu.Unlock()

	if !active {
		return nil, nil
	}

	account, err := g.client.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("equity: 获取账户信息失败: %w", err)
	}

	metrics.AccountEquity.Set(account.Equity)

	breached := account.Equity >= profit || account.Equity <= loss
	if g.events != nil {
		g.events.RecordEquityCheck(ctx, journal.EquityCheckPayload{
			Equity:       account.Equity,
			ProfitTarget: profit,
			LossTarget:   loss,
			Breached:     breached,
		})
	}

	if !breached {
		return nil, nil
	}

	g.logger.Info("净值目标触发，开始清仓",
		zap.Float64("equity", account.Equity),
		zap.Float64("profit_target", profit),
		zap.Float64("loss_target", loss),
	)

	summary, err := g.CloseAll(ctx)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CloseAll 平掉全部持仓并撤销全部挂单，逐项尽力而为。
// 全部持仓清空（或原本没有持仓）时关闭监控；有剩余则保持激活，下一轮重试。
func (g *Guard) CloseAll(ctx context.Context) (CloseSummary, error) {
	positions, err := g.client.Positions(ctx)
	if err != nil {
		return CloseSummary{}, fmt.Errorf("equity: 获取持仓失败: %w", err)
	}

	closed := 0
	for _, position := range positions {
		if g.closePosition(ctx, position) {
			closed++
		}
	}

	canceled := g.cancelPendingOrders(ctx)

	var message string
	switch {
	case len(positions) == 0:
		g.logger.Info("没有需要平掉的持仓")
		message = "No open positions to close"
	case closed > 0:
		message = fmt.Sprintf("Closed %d positions due to equity target", closed)
	default:
		message = "Failed to close positions"
	}
	message = fmt.Sprintf("%s, Canceled %d pending orders", message, canceled)

	remaining := len(positions) - closed
	if remaining == 0 {
		g.mu.Lock()
		g.active = false
		g.mu.Unlock()
		g.logger.Info("清仓完成，净值监控关闭",
			zap.Int("closed", closed),
			zap.Int("canceled", canceled),
		)
	} else {
		g.logger.Warn("部分仓位未能平掉，监控保持激活",
			zap.Int("closed", closed),
			zap.Int("remaining", remaining),
		)
	}

	if closed > 0 {
		metrics.Liquidations.Inc()
	}
	if g.events != nil {
		g.events.RecordLiquidation(ctx, journal.LiquidationPayload{
			ClosedCount:   closed,
			CanceledCount: canceled,
			Message:       message,
		})
	}

	return CloseSummary{
		ClosedCount:   closed,
		CanceledCount: canceled,
		Message:       message,
	}, nil
}

// closePosition 依次尝试各成交方式平掉单个仓位。
func (g *Guard) closePosition(ctx context.Context, position broker.Position) bool {
	tick, err := g.client.Tick(ctx, position.Symbol)
	if err != nil {
		g.logger.Error("获取平仓价格失败",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Error(err),
		)
		return false
	}

	spec, err := g.client.SymbolSpec(ctx, position.Symbol)
	if err != nil {
		g.logger.Error("获取品种规格失败",
			zap.Int64("ticket", position.Ticket),
			zap.String("symbol", position.Symbol),
			zap.Error(err),
		)
		return false
	}

	orderType := broker.OrderTypeBuy
	price := tick.Ask
	if position.Type == broker.OrderTypeBuy {
		orderType = broker.OrderTypeSell
		price = tick.Bid
	}

	step := spec.VolumeStep
	if step <= 0 {
		step = 0.01
	}
	volume := math.Round(position.Volume/step) * step
	volume = math.Min(math.Max(volume, spec.VolumeMin), spec.VolumeMax)

	for _, filling := range closeFillings {
		_, sendErr := g.client.OrderSend(ctx, broker.TradeRequest{
			Action:      broker.ActionDeal,
			Position:    position.Ticket,
			Symbol:      position.Symbol,
			Volume:      volume,
			Type:        orderType,
			Price:       price,
			Deviation:   closeDeviation,
			Magic:       closeMagic,
			Comment:     closeComment,
			TypeTime:    broker.OrderTimeGTC,
			TypeFilling: filling,
		})
		if sendErr == nil {
			g.logger.Info("仓位已平掉",
				zap.Int64("ticket", position.Ticket),
				zap.Int("filling", filling),
			)
			return true
		}
		g.logger.Warn("平仓尝试失败",
			zap.Int64("ticket", position.Ticket),
			zap.Int("filling", filling),
			zap.Error(sendErr),
		)
	}

	g.logger.Error("所有成交方式均无法平掉仓位", zap.Int64("ticket", position.Ticket))
	return false
}

// cancelPendingOrders 撤销全部挂单，统计独立于平仓结果。
func (g *Guard) cancelPendingOrders(ctx context.Context) int {
	pending, err := g.client.Orders(ctx)
	if err != nil {
		g.logger.Error("获取挂单失败", zap.Error(err))
		return 0
	}

	canceled := 0
	for _, order := range pending {
		_, sendErr := g.client.OrderSend(ctx, broker.TradeRequest{
			Action: broker.ActionRemove,
			Order:  order.Ticket,
		})
		if sendErr != nil {
			g.logger.Warn("撤销挂单失败",
				zap.Int64("ticket", order.Ticket),
				zap.Error(sendErr),
			)
			continue
		}
		g.logger.Info("挂单已撤销", zap.Int64("ticket", order.Ticket))
		canceled++
	}

	return canceled
}
