package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// BridgeConfig 描述 MT5 网关的连接信息。
type BridgeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TradingConfig 管理下单策略参数。
type TradingConfig struct {
	MaxDailyOrders int      `mapstructure:"max_daily_orders"`
	TargetRiskUSD  float64  `mapstructure:"target_risk_usd"`
	RiskToReward   float64  `mapstructure:"risk_to_reward"`
	Comment        string   `mapstructure:"comment"`
	Symbols        []string `mapstructure:"symbols"`
}

// SchedulerConfig 控制定时任务节奏。
type SchedulerConfig struct {
	ResetTime           string        `mapstructure:"reset_time"`
	EquityCheckInterval time.Duration `mapstructure:"equity_check_interval"`
}

// ServerConfig 控制对外 HTTP 服务。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Bridge.BaseURL == "" {
		err = multierr.Append(err, errors.New("bridge.base_url 不能为空"))
	}
	if c.Bridge.Timeout <= 0 {
		err = multierr.Append(err, errors.New("bridge.timeout 必须大于0"))
	}
	if c.Bridge.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("bridge.retry.max_attempts 必须大于0"))
	}
	if c.Bridge.Retry.MinDelay <= 0 || c.Bridge.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("bridge.retry.delay 必须为正"))
	}
	if c.Bridge.Retry.MinDelay > c.Bridge.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("bridge.retry.min_delay 不能大于 max_delay"))
	}
	if c.Trading.MaxDailyOrders <= 0 {
		err = multierr.Append(err, errors.New("trading.max_daily_orders 必须大于0"))
	}
	if c.Trading.TargetRiskUSD <= 0 {
		err = multierr.Append(err, errors.New("trading.target_risk_usd 必须大于0"))
	}
	if c.Trading.RiskToReward <= 0 {
		err = multierr.Append(err, errors.New("trading.risk_to_reward 必须大于0"))
	}
	if c.Trading.Comment == "" {
		err = multierr.Append(err, errors.New("trading.comment 不能为空"))
	}
	if len(c.Trading.Symbols) == 0 {
		err = multierr.Append(err, errors.New("trading.symbols 至少包含一个交易品种"))
	}
	if _, parseErr := time.Parse("15:04", c.Scheduler.ResetTime); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("scheduler.reset_time 必须为 HH:MM 格式: %v", parseErr))
	}
	if c.Scheduler.EquityCheckInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.equity_check_interval 必须大于0"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
