package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "mt5t"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("bridge.base_url", "http://127.0.0.1:8787")
	v.SetDefault("bridge.timeout", "15s")
	v.SetDefault("bridge.retry.max_attempts", 5)
	v.SetDefault("bridge.retry.min_delay", "500ms")
	v.SetDefault("bridge.retry.max_delay", "5s")

	v.SetDefault("trading.max_daily_orders", 2)
	v.SetDefault("trading.target_risk_usd", 30.0)
	v.SetDefault("trading.risk_to_reward", 3.0)
	v.SetDefault("trading.comment", "mt5-trader")
	v.SetDefault("trading.symbols", []string{
		"AUDNZD", "AUDCHF", "EURCHF", "AUDUSD", "EURAUD", "EURGBP", "EURUSD",
		"GBPAUD", "GBPCAD", "GBPUSD", "NZDCAD", "NZDUSD", "USDCAD", "USDCHF",
		"USDJPY", "USDSGD", "BTCUSD",
	})

	v.SetDefault("scheduler.reset_time", "00:00")
	v.SetDefault("scheduler.equity_check_interval", "2s")

	v.SetDefault("server.port", 5000)

	v.SetDefault("database.path", "data/mt5_trader.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
