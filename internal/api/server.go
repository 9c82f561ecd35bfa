package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mt5-trader/internal/broker"
	"mt5-trader/internal/config"
	"mt5-trader/internal/counter"
	"mt5-trader/internal/equity"
	"mt5-trader/internal/journal"
	"mt5-trader/internal/metrics"
	"mt5-trader/internal/orders"
	"mt5-trader/internal/stoploss"
)

type brokerAPI interface {
	Tick(ctx context.Context, symbol string) (broker.Tick, error)
	Account(ctx context.Context) (broker.AccountInfo, error)
}

// Server 对外暴露 /trading 路由，返回 status/message 形式的 JSON 信封。
type Server struct {
	symbols   []string
	defaultRR float64
	client    brokerAPI
	engine    *orders.Engine
	ratchet   *stoploss.Manager
	guard     *equity.Guard
	daily     *counter.Daily
	events    *journal.Service
	logger    *zap.Logger
}

// NewServer 创建 API 服务。
func NewServer(cfg config.TradingConfig, client brokerAPI, engine *orders.Engine, ratchet *stoploss.Manager, guard *equity.Guard, daily *counter.Daily, events *journal.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		symbols:   cfg.Symbols,
		defaultRR: cfg.RiskToReward,
		client:    client,
		engine:    engine,
		ratchet:   ratchet,
		guard:     guard,
		daily:     daily,
		events:    events,
		logger:    logger,
	}
}

// Handler 组装全部路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/trading/get_price", s.withMethod(http.MethodPost, s.handleGetPrice))
	mux.HandleFunc("/trading/place_order", s.withMethod(http.MethodPost, s.handlePlaceOrder))
	mux.HandleFunc("/trading/get_all_orders_and_positions", s.withMethod(http.MethodGet, s.handleListAll))
	mux.HandleFunc("/trading/cancel_pending_orders", s.withMethod(http.MethodPost, s.handleCancelPending))
	mux.HandleFunc("/trading/risk_free", s.withMethod(http.MethodPost, s.handleRiskFree))
	mux.HandleFunc("/trading/set_equity_targets", s.withMethod(http.MethodPost, s.handleSetEquityTargets))
	mux.HandleFunc("/trading/reset_order_count", s.withMethod(http.MethodPost, s.handleResetOrderCount))
	mux.HandleFunc("/trading/available_symbols", s.withMethod(http.MethodGet, s.handleAvailableSymbols))
	mux.HandleFunc("/trading/status", s.withMethod(http.MethodGet, s.handleStatus))
	mux.HandleFunc("/trading/events", s.withMethod(http.MethodGet, s.handleEvents))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return s.withRequestID(mux)
}

// withRequestID 为每个请求分配请求标识并记录访问日志。
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		s.logger.Debug("收到请求",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			s.errorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handler(w, r)
	}
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		s.errorJSON(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	tick, err := s.client.Tick(r.Context(), req.Symbol)
	if err != nil {
		s.logger.Error("获取报价失败", zap.String("symbol", req.Symbol), zap.Error(err))
		s.errorJSON(w, http.StatusBadRequest, "Failed to get price")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"symbol": req.Symbol,
		"bid":    tick.Bid,
		"ask":    tick.Ask,
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(s.symbols, s.defaultRR); err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Place(r.Context(), req)
	if err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"message":  result.Message,
		"order_id": result.OrderID,
	})
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	reports, err := s.engine.ListAll(r.Context())
	if err != nil {
		s.logger.Error("获取订单与持仓失败", zap.Error(err))
		s.errorJSON(w, http.StatusInternalServerError, "Failed to retrieve orders and positions")
		return
	}
	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.CancelPending(r.Context())
	if err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "success",
		"message":        result.Message,
		"canceled_count": result.CanceledCount,
	})
}

func (s *Server) handleRiskFree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketID int64 `json:"ticket_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TicketID == 0 {
		s.errorJSON(w, http.StatusBadRequest, "Ticket ID is required")
		return
	}

	result, err := s.ratchet.MakeRiskFree(r.Context(), req.TicketID)
	if err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"message":       result.Message,
		"ticket_id":     result.TicketID,
		"new_stop_loss": result.NewStopLoss,
	})
}

func (s *Server) handleSetEquityTargets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfitEquity float64 `json:"profit_equity"`
		LossEquity   float64 `json:"loss_equity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.guard.SetTargets(req.ProfitEquity, req.LossEquity); err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Equity targets set successfully",
	})
}

func (s *Server) handleResetOrderCount(w http.ResponseWriter, r *http.Request) {
	count := s.daily.Reset()
	metrics.DailyOrderCount.Set(float64(count))
	s.logger.Info("订单计数已重置", zap.Int("order_count", count))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"message":     "Order count reset successfully",
		"order_count": count,
	})
}

func (s *Server) handleAvailableSymbols(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"symbols": s.symbols,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	account, err := s.client.Account(r.Context())
	if err != nil {
		s.logger.Error("获取账户信息失败", zap.Error(err))
		s.errorJSON(w, http.StatusServiceUnavailable, "Failed to retrieve account info")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected": true,
		"login":     account.Login,
		"server":    account.Server,
		"company":   account.Company,
		"balance":   account.Balance,
		"equity":    account.Equity,
		"margin":    account.Margin,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 200
	if qs := q.Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := journal.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = journal.EventType(strings.ToLower(typ))
	}

	events, err := s.events.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		s.errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("写入响应失败", zap.Error(err))
	}
}

func (s *Server) errorJSON(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}
