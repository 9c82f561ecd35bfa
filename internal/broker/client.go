package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"mt5-trader/internal/config"
)

// Client 通过本地 HTTP 网关与 MT5 终端交互，并实现重试机制。
// 连接与重连由网关侧负责，这里把每次调用视为无状态往返。
type Client struct {
	cfg    config.BridgeConfig
	base   string
	hc     *http.Client
	logger *zap.Logger
}

// NewClient 构造 MT5 网关客户端。
func NewClient(cfg config.BridgeConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "http://127.0.0.1:8787"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		cfg:    cfg,
		base:   base,
		hc:     &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Tick 获取品种的实时买卖报价。
func (c *Client) Tick(ctx context.Context, symbol string) (Tick, error) {
	var tick Tick
	path := fmt.Sprintf("/tick?symbol=%s", url.QueryEscape(symbol))
	if err := c.getJSON(ctx, "tick", path, &tick); err != nil {
		return Tick{}, fmt.Errorf("broker: 获取 %s 报价失败: %w", symbol, err)
	}
	if tick.Bid <= 0 && tick.Ask <= 0 {
		return Tick{}, fmt.Errorf("broker: %s 报价为空: %w", symbol, ErrUnavailable)
	}
	return tick, nil
}

// Positions 获取全部在场仓位。
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.getJSON(ctx, "positions", "/positions", &positions); err != nil {
		return nil, fmt.Errorf("broker: 获取持仓失败: %w", err)
	}
	return positions, nil
}

// Orders 获取全部挂单。
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.getJSON(ctx, "orders", "/orders", &orders); err != nil {
		return nil, fmt.Errorf("broker: 获取挂单失败: %w", err)
	}
	return orders, nil
}

// Account 获取账户实时状态。
func (c *Client) Account(ctx context.Context) (AccountInfo, error) {
	var info AccountInfo
	if err := c.getJSON(ctx, "account", "/account", &info); err != nil {
		return AccountInfo{}, fmt.Errorf("broker: 获取账户信息失败: %w", err)
	}
	return info, nil
}

// SymbolSpec 获取品种交易规格。
func (c *Client) SymbolSpec(ctx context.Context, symbol string) (SymbolSpec, error) {
	var spec SymbolSpec
	path := fmt.Sprintf("/symbol?name=%s", url.QueryEscape(symbol))
	if err := c.getJSON(ctx, "symbol_spec", path, &spec); err != nil {
		return SymbolSpec{}, fmt.Errorf("broker: 获取 %s 规格失败: %w", symbol, err)
	}
	return spec, nil
}

// OrderSend 提交交易请求。返回码不为成功时返回携带翻译文案的 TradeError。
func (c *Client) OrderSend(ctx context.Context, req TradeRequest) (TradeResult, error) {
	var result TradeResult
	if err := c.postJSON(ctx, "order_send", "/order_send", req, &result); err != nil {
		return TradeResult{}, fmt.Errorf("broker: 提交交易请求失败: %w", err)
	}

	if result.Retcode != RetcodeDone {
		return result, &TradeError{
			Retcode: result.Retcode,
			Message: TranslateRetcode(result.Retcode),
		}
	}

	return result, nil
}

// ModifyStop 修改仓位的止损与止盈。
func (c *Client) ModifyStop(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	_, err := c.OrderSend(ctx, TradeRequest{
		Action:     ActionSLTP,
		Position:   ticket,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	})
	return err
}

func (c *Client) getJSON(ctx context.Context, operation, path string, out interface{}) error {
	return c.callWithRetry(ctx, operation, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return err
		}
		return c.doJSON(req, out)
	})
}

func (c *Client) postJSON(ctx context.Context, operation, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	return c.callWithRetry(ctx, operation, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.doJSON(req, out)
	})
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	req.Header.Set("User-Agent", "mt5-trader/bridge")

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &statusError{
			code: res.StatusCode,
			body: strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway %d: %s", e.code, e.body)
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("网关调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if !retry || attempt >= maxAttempts {
			c.logger.Error("网关调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("网关调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// classifyError 归类错误：传输层故障与网关 5xx 可重试并归入不可用类别，
// 4xx 与交易返回码属于业务失败，不重试。
func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.code >= 500 {
			return fmt.Errorf("%w: %s", ErrUnavailable, statusErr.Error()), true
		}
		return err, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err), true
	}

	return err, false
}
