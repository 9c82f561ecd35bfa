package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mt5-trader/internal/api"
	"mt5-trader/internal/broker"
	"mt5-trader/internal/config"
	"mt5-trader/internal/counter"
	"mt5-trader/internal/equity"
	"mt5-trader/internal/journal"
	"mt5-trader/internal/metrics"
	"mt5-trader/internal/orders"
	"mt5-trader/internal/sizing"
	"mt5-trader/internal/stoploss"
	"mt5-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装各组件并并发驱动 HTTP 服务、净值检查与日度计数重置，直至收到退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("bridge", a.cfg.Bridge.BaseURL),
		zap.Strings("symbols", a.cfg.Trading.Symbols),
	)

	client := broker.NewClient(a.cfg.Bridge, a.logger)
	daily := counter.New(a.cfg.Trading.MaxDailyOrders)
	sizer := sizing.NewSizer(client, a.logger)

	events, err := journal.NewService(a.store, a.logger)
	if err != nil {
		return err
	}

	engine := orders.NewEngine(a.cfg.Trading, client, sizer, daily, events, a.logger)
	ratchet := stoploss.NewManager(client, events, a.logger)
	guard := equity.NewGuard(client, events, a.logger)

	server := api.NewServer(a.cfg.Trading, client, engine, ratchet, guard, daily, events, a.logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: server.Handler(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.serveHTTP(groupCtx, httpServer)
	})

	group.Go(func() error {
		return a.equityLoop(groupCtx, guard)
	})

	group.Go(func() error {
		return a.resetLoop(groupCtx, daily)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，已停止")
	return nil
}

func (a *App) serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	a.logger.Info("交易接口已启动", zap.String("addr", server.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("关闭交易接口失败", zap.Error(err))
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("交易接口异常: %w", err)
		}
		return nil
	}
}

// equityLoop 以固定间隔检查净值。单次失败只记录日志，下一轮自然重试。
func (a *App) equityLoop(ctx context.Context, guard *equity.Guard) error {
	interval := a.cfg.Scheduler.EquityCheckInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			summary, err := guard.Check(ctx)
			if err != nil {
				if broker.IsUnavailable(err) {
					a.logger.Warn("净值检查暂不可用", zap.Error(err))
				} else {
					a.logger.Error("净值检查失败", zap.Error(err))
				}
				continue
			}
			if summary != nil {
				a.logger.Info("净值目标触发清仓完成",
					zap.Int("closed", summary.ClosedCount),
					zap.Int("canceled", summary.CanceledCount),
					zap.String("message", summary.Message),
				)
			}
		}
	}
}

// resetLoop 在每天配置的本地时刻重置订单计数。
func (a *App) resetLoop(ctx context.Context, daily *counter.Daily) error {
	for {
		next, err := nextReset(time.Now(), a.cfg.Scheduler.ResetTime)
		if err != nil {
			return fmt.Errorf("解析重置时间失败: %w", err)
		}

		a.logger.Info("下一次订单计数重置已排定", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		count := daily.Reset()
		metrics.DailyOrderCount.Set(float64(count))
		a.logger.Info("订单计数已按计划重置", zap.Int("order_count", count))
	}
}
