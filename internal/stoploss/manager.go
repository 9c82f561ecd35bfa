package stoploss

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
	"mt5-trader/internal/sizing"
)

// 新止损与现价之间保留的最小安全距离（点）。
const safetyBufferPips = 5

var (
	// ErrInvalidPositionType 表示该仓位类型不支持保本调整。
	ErrInvalidPositionType = errors.New("Invalid position type")
	// ErrModifyFailed 表示终端未接受止损修改。
	ErrModifyFailed = errors.New("Failed to update stop loss")
)

type positionClient interface {
	Positions(ctx context.Context) ([]broker.Position, error)
	ModifyStop(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
}

// Result 为保本调整成功的返回内容。
type Result struct {
	TicketID    int64   `json:"ticket_id"`
	NewStopLoss float64 `json:"new_stop_loss"`
	Message     string  `json:"message"`
}

// Manager 维护逐仓位的初始风险台账并推进止损。
// 台账只增不删：仓位平掉后的残留条目不会再被查询到，属于无害状态。
type Manager struct {
	client positionClient
	events *journal.Service
	logger *zap.Logger

	mu   sync.Mutex
	risk map[int64]float64
}

// NewManager 创建止损保本管理器。events 可为空。
func NewManager(client positionClient, events *journal.Service, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		events: events,
		logger: logger,
		risk:   make(map[int64]float64),
	}
}

// MakeRiskFree 首次调用把止损钉到入场价并登记初始风险距离；
// 后续每次调用按该距离向盈利方向推进，但始终与现价保持安全缓冲。
// 只有终端写入成功后才提交台账。
func (m *Manager) MakeRiskFree(ctx context.Context, ticketID int64) (Result, error) {
	positions, err := m.client.Positions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("Failed to retrieve positions: %v", err)
	}

	var position *broker.Position
	for i := range positions {
		if positions[i].Ticket == ticketID {
			position = &positions[i]
			break
		}
	}
	if position == nil {
		m.logger.Error("未找到指定仓位", zap.Int64("ticket", ticketID))
		return Result{}, fmt.Errorf("Position with ticket ID %d not found", ticketID)
	}

	if position.Type != broker.OrderTypeBuy && position.Type != broker.OrderTypeSell {
		m.logger.Error("仓位类型不支持保本调整",
			zap.Int64("ticket", ticketID),
			zap.String("type", position.Type.String()),
		)
		return Result{}, ErrInvalidPositionType
	}

	entryPrice := position.PriceOpen
	stopLoss := position.StopLoss
	currentPrice := position.PriceCurrent
	pipValue := sizing.PipSize(position.Symbol)

	m.mu.Lock()
	riskDistance, protected := m.risk[ticketID]
	m.mu.Unlock()

	var newStopLoss float64
	if !protected {
		inProfit := (position.Type == broker.OrderTypeBuy && currentPrice > entryPrice) ||
			(position.Type == broker.OrderTypeSell && currentPrice < entryPrice)
		if !inProfit {
			m.logger.Warn("仓位尚未盈利，不调整止损", zap.Int64("ticket", ticketID))
			return Result{}, fmt.Errorf("Position is not in profit for ticket ID %d. Stop loss not adjusted.", ticketID)
		}

		newStopLoss = entryPrice
		// 原先没有止损时没有可推进的风险距离，后续调用只做保本钉价。
		riskDistance = 0
		if stopLoss != 0 {
			riskDistance = math.Abs(entryPrice - stopLoss)
		}
	} else {
		if position.Type == broker.OrderTypeBuy {
			if stopLoss >= entryPrice {
				newStopLoss = stopLoss + riskDistance
			} else {
				newStopLoss = entryPrice
			}
		} else {
			if stopLoss <= entryPrice {
				newStopLoss = stopLoss - riskDistance
			} else {
				newStopLoss = entryPrice
			}
		}
	}

	buffer := float64(safetyBufferPips) * pipValue
	if position.Type == broker.OrderTypeBuy {
		safeThreshold := currentPrice - buffer
		if newStopLoss >= safeThreshold {
			m.logger.Warn("新止损过于接近现价，回退到安全缓冲",
				zap.Int64("ticket", ticketID),
				zap.Float64("new_stop_loss", newStopLoss),
				zap.Float64("safe_threshold", safeThreshold),
			)
			newStopLoss = safeThreshold
		}
	} else {
		safeThreshold := currentPrice + buffer
		if newStopLoss <= safeThreshold {
			m.logger.Warn("新止损过于接近现价，回退到安全缓冲",
				zap.Int64("ticket", ticketID),
				zap.Float64("new_stop_loss", newStopLoss),
				zap.Float64("safe_threshold", safeThreshold),
			)
			newStopLoss = safeThreshold
		}
	}

	if err := m.client.ModifyStop(ctx, ticketID, newStopLoss, position.TakeProfit); err != nil {
		m.logger.Error("修改止损失败",
			zap.Int64("ticket", ticketID),
			zap.Float64("new_stop_loss", newStopLoss),
			zap.Error(err),
		)
		return Result{}, ErrModifyFailed
	}

	if !protected {
		m.mu.Lock()
		m.risk[ticketID] = riskDistance
		m.mu.Unlock()
	}

	metrics.RiskFreeMoves.Inc()
	m.logger.Info("止损已调整",
		zap.Int64("ticket", ticketID),
		zap.Float64("new_stop_loss", newStopLoss),
		zap.Float64("risk_distance", riskDistance),
	)
	if m.events != nil {
		m.events.RecordRiskFree(ctx, journal.RiskFreePayload{
			Ticket:      ticketID,
			NewStopLoss: newStopLoss,
		})
	}

	return Result{
		TicketID:    ticketID,
		NewStopLoss: newStopLoss,
		Message:     fmt.Sprintf("Stop loss updated successfully to %g", newStopLoss),
	}, nil
}
