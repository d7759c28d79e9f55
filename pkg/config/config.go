package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format  string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output  string `yaml:"output" default:"stdout"`
		Collect struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
			Topic     string        `yaml:"topic" default:"signaldesk-logs"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"20"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Automation struct {
		AutoStart     bool          `yaml:"auto_start"`
		Pair          string        `yaml:"pair" default:"BTC/USDT" validate:"required"`
		Timeframe     int           `yaml:"timeframe" default:"1" validate:"gte=1,lte=60"`
		Strategy      string        `yaml:"strategy" default:"protocolo_v4"`
		TickInterval  time.Duration `yaml:"tick_interval" default:"5s"`
		MinConfidence float64       `yaml:"min_confidence" default:"70" validate:"gte=0,lte=100"`
		MaxAttempts   int           `yaml:"max_attempts" default:"24" validate:"gte=1"`
		MaxRetries    int           `yaml:"max_retries" default:"3" validate:"gte=0"`
		RetryBackoff  time.Duration `yaml:"retry_backoff" default:"1s"`
		CandleLimit   int           `yaml:"candle_limit" default:"200" validate:"gte=2"`
		Watchdog      struct {
			Interval time.Duration `yaml:"interval" default:"2s"`
			Margin   time.Duration `yaml:"margin" default:"2s"`
		} `yaml:"watchdog"`
	} `yaml:"automation"`
	Windows struct {
		AdmitBefore     time.Duration `yaml:"admit_before" default:"90s"`
		AdmitAfter      time.Duration `yaml:"admit_after" default:"60s"`
		LookaheadBefore time.Duration `yaml:"lookahead_before" default:"60s"`
		LookaheadAfter  time.Duration `yaml:"lookahead_after" default:"180s"`
		PollInterval    time.Duration `yaml:"poll_interval" default:"2s"`
		ExitMargin      time.Duration `yaml:"exit_margin" default:"3s"`
	} `yaml:"windows"`
	Price struct {
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"5s"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5" validate:"gte=1"`
		InitialDelay time.Duration `yaml:"initial_delay" default:"1s"`
		Factor       float64       `yaml:"factor" default:"1.5" validate:"gte=1"`
		MaxDelay     time.Duration `yaml:"max_delay" default:"10s"`
		NotReadyWait time.Duration `yaml:"not_ready_wait" default:"2s"`
		EntryTTL     time.Duration `yaml:"entry_ttl" default:"2h"`
	} `yaml:"price"`
	Broker struct {
		BaseURL   string        `yaml:"base_url" default:"https://symbol-prices-api.mybroker.dev" validate:"required,url"`
		APIKey    string        `yaml:"api_key"`
		Partner   string        `yaml:"partner"`
		Slot      string        `yaml:"slot" default:"default"`
		Timeout   time.Duration `yaml:"timeout" default:"5s"`
		RateLimit struct {
			Capacity     float64 `yaml:"capacity" default:"10"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
		} `yaml:"rate_limit"`
	} `yaml:"broker"`
	Analyzer struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		Retries int           `yaml:"retries" default:"2"`
	} `yaml:"analyzer"`
	Postgres struct {
		URL               string        `yaml:"url"`
		MaxConns          int32         `yaml:"max_conns" default:"10"`
		MinConns          int32         `yaml:"min_conns" default:"2"`
		MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" default:"30m"`
		MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" default:"5m"`
		HealthCheckPeriod time.Duration `yaml:"health_check_period" default:"30s"`
		SettingsPoll      time.Duration `yaml:"settings_poll" default:"5s"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signaldesk"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"signal-events"`
		AdminTopic   string   `yaml:"admin_topic" default:"admin-signals"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
			AutoCreate   bool          `yaml:"auto_create_topics"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signaldesk"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"signaldesk"`

		PoolSize     int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"5s"`

		// in-process tier, also the whole cache when Redis is disabled
		MemoryMaxSize int           `yaml:"memory_max_size" default:"10000" validate:"gte=1"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"30s"`
		MemoryCleanup time.Duration `yaml:"memory_cleanup" default:"1m" validate:"gt=0"`
	} `yaml:"redis"`
	Realtime struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		Channel        string        `yaml:"channel" default:"admin_signals"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"realtime"`
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Backend string `yaml:"backend" default:"kafka" validate:"oneof=kafka clickhouse both"`
	} `yaml:"journal"`
	FCM struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		Topic           string `yaml:"topic" default:"signals"`
	} `yaml:"fcm"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides endpoints and secrets from the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("BROKER_PARTNER"); v != "" {
		c.Broker.Partner = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("ANALYZER_URL"); v != "" {
		c.Analyzer.URL = v
	}
	if v := os.Getenv("FCM_CREDENTIALS_FILE"); v != "" {
		c.FCM.CredentialsFile = v
		c.FCM.Enabled = true
	}
}

// Validate checks tag rules and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	if c.Analyzer.URL == "" {
		return fmt.Errorf("analyzer.url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Realtime.Enabled && c.Realtime.URL == "" {
		return fmt.Errorf("realtime.url is required when realtime is enabled")
	}
	if c.FCM.Enabled && c.FCM.CredentialsFile == "" {
		return fmt.Errorf("fcm.credentials_file is required when fcm is enabled")
	}
	if c.Journal.Enabled && c.Journal.Backend != "clickhouse" && !c.Kafka.Enabled {
		return fmt.Errorf("journal.backend %s requires kafka", c.Journal.Backend)
	}
	if c.Log.Collect.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.collect requires kafka")
	}
	if c.Windows.AdmitBefore <= 0 || c.Windows.AdmitAfter <= 0 {
		return fmt.Errorf("windows.admit_before and windows.admit_after must be positive")
	}
	if c.Windows.LookaheadAfter < c.Windows.AdmitBefore {
		return fmt.Errorf("windows.lookahead_after must cover windows.admit_before")
	}
	return nil
}
