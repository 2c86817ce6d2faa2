package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ServiceName    = "bracket-bot"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string                    `mapstructure:"env"`
	Log                     LogConfig                 `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration             `mapstructure:"graceful_shutdown_timeout"`
	Exchange                ExchangeConfig            `mapstructure:"exchange"`
	BracketBot              BracketBotConfig          `mapstructure:"bracket_bot"`
	Database                map[string]DatabaseConfig `mapstructure:"database"`
	Redis                   map[string]RedisConfig    `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig       `mapstructure:"nats_jetstream"`
	Metrics                 MetricsConfig             `mapstructure:"metrics"`
}

// BracketBotConfig replaces the interactive prompt of the first version of the bot.
type BracketBotConfig struct {
	Market                     string          `mapstructure:"market"`
	MarketID                   int             `mapstructure:"market_id"`
	BaseAmount                 int64           `mapstructure:"base_amount"`
	TakeProfitPercent          decimal.Decimal `mapstructure:"take_profit_percent"` // fraction, e.g. 0.0025 for +0.25%
	StopLossPercent            decimal.Decimal `mapstructure:"stop_loss_percent"`   // fraction, e.g. 0.0015 for -0.15%
	OrdersPerHour              float64         `mapstructure:"orders_per_hour"`
	Leverage                   decimal.Decimal `mapstructure:"leverage"`
	FailedOrderSleep           time.Duration   `mapstructure:"failed_order_sleep"`
	PriceScale                 int64           `mapstructure:"price_scale"`
	SizeScale                  int64           `mapstructure:"size_scale"`
	EntrySlippage              decimal.Decimal `mapstructure:"entry_slippage"`
	StopLossLimitOffset        decimal.Decimal `mapstructure:"stop_loss_limit_offset"`
	LegSubmitTimeout           time.Duration   `mapstructure:"leg_submit_timeout"`
	SkipWhenPositionOpen       bool            `mapstructure:"skip_when_position_open"`
	CompensateUnprotectedEntry bool            `mapstructure:"compensate_unprotected_entry"`
	ReconcilePairs             bool            `mapstructure:"reconcile_pairs"`
	CancelOrphanLegs           bool            `mapstructure:"cancel_orphan_legs"`
	RunLockTTL                 time.Duration   `mapstructure:"run_lock_ttl"`
}

type ExchangeConfig struct {
	Name           string          `mapstructure:"name"`
	Mode           string          `mapstructure:"mode"` // paper or live
	BaseURL        string          `mapstructure:"base_url"`
	SignerURL      string          `mapstructure:"signer_url"`
	L1Address      string          `mapstructure:"l1_address"`
	APIPrivateKey  string          `mapstructure:"api_private_key"`
	APIKeyIndex    int             `mapstructure:"api_key_index"`
	AuthExpiry     time.Duration   `mapstructure:"auth_expiry"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RateLimit      float64         `mapstructure:"rate_limit"` // requests per second
	RateBurst      int             `mapstructure:"rate_burst"`
	PaperBalance   decimal.Decimal `mapstructure:"paper_balance"`
}

type NatsJetstreamConfig struct {
	URL             string                   `mapstructure:"url"`
	MaxRetries      int                      `mapstructure:"max_retries"`
	ReconnectFactor float64                  `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration            `mapstructure:"min_jitter"`
	MaxJitter       time.Duration            `mapstructure:"max_jitter"`
	TimeoutHandler  map[string]time.Duration `mapstructure:"timeout_handler"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxActiveConns  int           `mapstructure:"max_active_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

type RedisConfig struct {
	CacheDSN string `mapstructure:"cache_dsn"`
}

type MetricsConfig struct {
	PushGatewayURL string `mapstructure:"push_gateway_url"`
	JobName        string `mapstructure:"job_name"`
}

func setDefaults() {
	viper.SetDefault("env", "development")
	viper.SetDefault("log.log_level", "info")
	viper.SetDefault("graceful_shutdown_timeout", 30*time.Second)

	viper.SetDefault("exchange.name", "lighter")
	viper.SetDefault("exchange.mode", "paper")
	viper.SetDefault("exchange.base_url", "https://mainnet.zklighter.elliot.ai")
	viper.SetDefault("exchange.auth_expiry", 10*time.Minute)
	viper.SetDefault("exchange.request_timeout", 15*time.Second)
	viper.SetDefault("exchange.rate_limit", 5)
	viper.SetDefault("exchange.rate_burst", 1)
	viper.SetDefault("exchange.paper_balance", "1000")

	viper.SetDefault("bracket_bot.market", "ETH")
	viper.SetDefault("bracket_bot.market_id", 0)
	viper.SetDefault("bracket_bot.base_amount", 150)
	viper.SetDefault("bracket_bot.take_profit_percent", "0.0025")
	viper.SetDefault("bracket_bot.stop_loss_percent", "0.0015")
	viper.SetDefault("bracket_bot.orders_per_hour", 1)
	viper.SetDefault("bracket_bot.leverage", "1")
	viper.SetDefault("bracket_bot.failed_order_sleep", 30*time.Second)
	viper.SetDefault("bracket_bot.price_scale", 100)
	viper.SetDefault("bracket_bot.size_scale", 10000)
	viper.SetDefault("bracket_bot.entry_slippage", "0.5")
	viper.SetDefault("bracket_bot.stop_loss_limit_offset", "0.2")
	viper.SetDefault("bracket_bot.leg_submit_timeout", 15*time.Second)
	viper.SetDefault("bracket_bot.reconcile_pairs", true)
	viper.SetDefault("bracket_bot.run_lock_ttl", 30*time.Second)

	viper.SetDefault("metrics.job_name", ServiceName)
}

func LoadConfig(configPath string) error {
	viper.Reset()
	setDefaults()
	Env = nil

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix("BRACKET_BOT")
	viper.AutomaticEnv()
	_ = viper.BindEnv("exchange.l1_address")
	_ = viper.BindEnv("exchange.api_private_key")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	err = viper.Unmarshal(&Env, viper.DecodeHook(decimalDecodeHook()))
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	return nil
}
