package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bitget    BitgetConfig    `mapstructure:"bitget"`
	Collector CollectorConfig `mapstructure:"collector"`
	Store     StoreConfig     `mapstructure:"store"`
	API       APIConfig       `mapstructure:"api"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

type BitgetConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ValidateSymbols bool          `mapstructure:"validate_symbols"` // drop configured symbols the exchange does not list as online
}

type WSConfig struct {
	URL               string        `mapstructure:"url"`
	InstType          string        `mapstructure:"inst_type"`
	Symbols           []string      `mapstructure:"symbols"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongWait          time.Duration `mapstructure:"pong_wait"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	SubscribeInterval time.Duration `mapstructure:"subscribe_interval"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
}

type CollectorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	FlushEvery    int           `mapstructure:"flush_every"`     // flush after this many appended trades
	FlushInterval time.Duration `mapstructure:"flush_interval"`  // and at least this often
	LargeTradeUSD float64       `mapstructure:"large_trade_usd"` // log trades with a larger notional
	SinkTimeout   time.Duration `mapstructure:"sink_timeout"`    // per-flush deadline for mirror sinks
}

type StoreConfig struct {
	Path        string  `mapstructure:"path"`
	MaxRecords  int     `mapstructure:"max_records"`
	RetainRatio float64 `mapstructure:"retain_ratio"` // fraction of max_records kept on rotation
}

// RetainCount is the number of records kept after a rotation. It is at least
// 1 so a rotation never drops the newest record.
func (s StoreConfig) RetainCount() int {
	return max(int(float64(s.MaxRecords)*s.RetainRatio), 1)
}

type APIConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	MaxRecordsPerRequest int           `mapstructure:"max_records_per_request"`
	DefaultLimit         int           `mapstructure:"default_limit"`
	LatestDefaultLimit   int           `mapstructure:"latest_default_limit"`
	LatestMaxLimit       int           `mapstructure:"latest_max_limit"`
	SymbolDefaultLimit   int           `mapstructure:"symbol_default_limit"`
	FreshWithin          time.Duration `mapstructure:"fresh_within"`
	StaleWithin          time.Duration `mapstructure:"stale_within"`
	EnableCORS           bool          `mapstructure:"enable_cors"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`        // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`       // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"`  // file path to store logs (optional)
	Environment string `mapstructure:"environment"`  // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"`  // rotate the log file at this size
	MaxBackups  int    `mapstructure:"max_backups"`  // rotated log files to keep
	MaxAgeDays  int    `mapstructure:"max_age_days"` // days to keep rotated log files
	Compress    bool   `mapstructure:"compress"`     // gzip rotated log files
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	LatestTTL   time.Duration `mapstructure:"latest_ttl"`   // expiry of last:<exchange>:<symbol>
	RecentLimit int           `mapstructure:"recent_limit"` // length of trades:<exchange>:<symbol>
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bitget.rest.base_url", "https://api.bitget.com")
	v.SetDefault("bitget.rest.timeout", 10*time.Second)
	v.SetDefault("bitget.rest.validate_symbols", false)

	v.SetDefault("bitget.ws.url", "wss://ws.bitget.com/v2/ws/public")
	v.SetDefault("bitget.ws.inst_type", "SPOT")
	v.SetDefault("bitget.ws.symbols", []string{
		"BTCUSDT", "ETHUSDT", "SOLUSDT", "ADAUSDT", "DOTUSDT",
		"BNBUSDT", "XRPUSDT", "MATICUSDT", "LINKUSDT", "AVAXUSDT",
	})
	v.SetDefault("bitget.ws.ping_interval", 30*time.Second)
	v.SetDefault("bitget.ws.pong_wait", 10*time.Second)
	v.SetDefault("bitget.ws.write_timeout", 10*time.Second)
	v.SetDefault("bitget.ws.handshake_timeout", 10*time.Second)
	v.SetDefault("bitget.ws.subscribe_interval", 200*time.Millisecond)
	v.SetDefault("bitget.ws.max_reconnects", 100)

	v.SetDefault("collector.enabled", true)
	v.SetDefault("collector.flush_every", 50)
	v.SetDefault("collector.flush_interval", 5*time.Minute)
	v.SetDefault("collector.large_trade_usd", 1000.0)
	v.SetDefault("collector.sink_timeout", 10*time.Second)

	v.SetDefault("store.path", "trading_data.json")
	v.SetDefault("store.max_records", 10000)
	v.SetDefault("store.retain_ratio", 0.8)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cache_ttl", 60*time.Second)
	v.SetDefault("api.max_records_per_request", 1000)
	v.SetDefault("api.default_limit", 100)
	v.SetDefault("api.latest_default_limit", 50)
	v.SetDefault("api.latest_max_limit", 500)
	v.SetDefault("api.symbol_default_limit", 100)
	v.SetDefault("api.fresh_within", time.Hour)
	v.SetDefault("api.stale_within", 2*time.Hour)
	v.SetDefault("api.enable_cors", true)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "prod")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "tradecollector")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.latest_ttl", 10*time.Minute)
	v.SetDefault("redis.recent_limit", 200)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "bitget.trades")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.batch_timeout", 100*time.Millisecond)
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
// A missing config.yaml is fine: every key has a default.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.AddConfigPath("./config")

	cfg, err := load(v)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Support environment variables with dot notation (e.g., STORE_MAX_RECORDS)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Bitget.WS.Symbols) == 0 {
		return errors.New("bitget.ws.symbols must not be empty")
	}
	if c.Bitget.WS.URL == "" {
		return errors.New("bitget.ws.url must not be empty")
	}
	if c.Bitget.WS.MaxReconnects <= 0 {
		return fmt.Errorf("bitget.ws.max_reconnects must be positive, got %d", c.Bitget.WS.MaxReconnects)
	}
	if c.Collector.FlushEvery <= 0 {
		return fmt.Errorf("collector.flush_every must be positive, got %d", c.Collector.FlushEvery)
	}
	if c.Collector.FlushInterval <= 0 {
		return errors.New("collector.flush_interval must be positive")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if c.Store.MaxRecords <= 0 {
		return fmt.Errorf("store.max_records must be positive, got %d", c.Store.MaxRecords)
	}
	if c.Store.RetainRatio <= 0 || c.Store.RetainRatio > 1 {
		return fmt.Errorf("store.retain_ratio must be in (0, 1], got %v", c.Store.RetainRatio)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api.port: %d", c.API.Port)
	}
	if c.API.CacheTTL <= 0 {
		return errors.New("api.cache_ttl must be positive")
	}
	if c.API.MaxRecordsPerRequest <= 0 || c.API.LatestMaxLimit <= 0 {
		return errors.New("api request limits must be positive")
	}
	if c.API.StaleWithin < c.API.FreshWithin {
		return errors.New("api.stale_within must not be shorter than api.fresh_within")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}
