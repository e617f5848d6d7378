package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ServiceName    = "futures-feed-service"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string                    `mapstructure:"env"`
	Log                     LogConfig                 `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration             `mapstructure:"graceful_shutdown_timeout"`
	Port                    map[string]string         `mapstructure:"port"`
	Collector               CollectorConfig           `mapstructure:"collector"`
	Database                map[string]DatabaseConfig `mapstructure:"database"`
	Redis                   map[string]RedisConfig    `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig       `mapstructure:"nats_jetstream"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

// CollectorConfig covers both upstream transport variants. BinaryPort is the
// ticker-plant binary feed, PluginPort the line-delimited JSON plugin feed.
type CollectorConfig struct {
	Host                 string        `mapstructure:"host"`
	BinaryPort           int           `mapstructure:"binary_port"`
	PluginPort           int           `mapstructure:"plugin_port"`
	Transport            string        `mapstructure:"transport"` // tcp | ws, JSON variant only
	Symbols              []string      `mapstructure:"symbols"`   // SYMBOL or SYMBOL:EXCHANGE tokens
	DefaultExchange      string        `mapstructure:"default_exchange"`
	ConnectAttempts      int           `mapstructure:"connect_attempts"`
	ConnectBackoff       time.Duration `mapstructure:"connect_backoff"`
	ReconcileInterval    time.Duration `mapstructure:"reconcile_interval"`
	MaxReconcileFailures int           `mapstructure:"max_reconcile_failures"`
	MaxFrameSize         int           `mapstructure:"max_frame_size"`
	DepthRetention       time.Duration `mapstructure:"depth_retention"`
	PublishEvents        bool          `mapstructure:"publish_events"`
}

const (
	defaultBinaryPort           = 3010
	defaultPluginPort           = 3012
	defaultConnectAttempts      = 5
	defaultConnectBackoff       = 5 * time.Second
	defaultReconcileInterval    = 5 * time.Second
	defaultMaxReconcileFailures = 10
	defaultMaxFrameSize         = 16 << 20
	defaultDepthRetention       = time.Minute
	defaultExchangeName         = "CME"
)

// WithDefaults fills unset knobs so callers never branch on zero values.
func (c CollectorConfig) WithDefaults() CollectorConfig {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = "localhost"
	}
	if c.BinaryPort <= 0 {
		c.BinaryPort = defaultBinaryPort
	}
	if c.PluginPort <= 0 {
		c.PluginPort = defaultPluginPort
	}
	if strings.TrimSpace(c.Transport) == "" {
		c.Transport = "tcp"
	}
	if strings.TrimSpace(c.DefaultExchange) == "" {
		c.DefaultExchange = defaultExchangeName
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = defaultConnectAttempts
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = defaultConnectBackoff
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = defaultReconcileInterval
	}
	if c.MaxReconcileFailures <= 0 {
		c.MaxReconcileFailures = defaultMaxReconcileFailures
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	if c.DepthRetention <= 0 {
		c.DepthRetention = defaultDepthRetention
	}
	return c
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

type RedisConfig struct {
	CacheDSN string `mapstructure:"cache_dsn"`
}

type NatsJetstreamConfig struct {
	URL             string        `mapstructure:"url"`
	MaxRetries      int           `mapstructure:"max_retries"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
}

func LoadConfig(configPath string) error {
	viper.Reset()

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
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	err = viper.Unmarshal(&Env)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	Env.Collector = Env.Collector.WithDefaults()

	return nil
}
