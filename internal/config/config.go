package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Auction   AuctionConfig   `mapstructure:"auction"`
	Increment IncrementConfig `mapstructure:"increment"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address       string        `mapstructure:"address"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	EventsChannel string        `mapstructure:"events_channel"`
	SnapshotKey   string        `mapstructure:"snapshot_key"`
	SnapshotTTL   time.Duration `mapstructure:"snapshot_ttl"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LedgerConfig selects the Ledger Store backend. Seed is only read by the memory driver.
type LedgerConfig struct {
	Driver string     `mapstructure:"driver"`
	Seed   LedgerSeed `mapstructure:"seed"`
}

type LedgerSeed struct {
	Teams   []SeedTeam   `mapstructure:"teams"`
	Players []SeedPlayer `mapstructure:"players"`
}

type SeedTeam struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Approved bool   `mapstructure:"approved"`
	Budget   int64  `mapstructure:"budget"`
}

type SeedPlayer struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	BaseValue int64  `mapstructure:"base_value"`
}

// AuctionConfig holds the round timing. ContestedWindow is what an accepted bid resets the clock to.
type AuctionConfig struct {
	OpeningWindow   time.Duration `mapstructure:"opening_window"`
	ContestedWindow time.Duration `mapstructure:"contested_window"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	SnapshotRefresh time.Duration `mapstructure:"snapshot_refresh"`
}

// IncrementConfig holds the default two-tier suggested increment, in whole currency units.
type IncrementConfig struct {
	Crossover int64 `mapstructure:"crossover"`
	Small     int64 `mapstructure:"small"`
	Large     int64 `mapstructure:"large"`
}

type LeaderConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	Key              string        `mapstructure:"key"`
	CampaignInterval time.Duration `mapstructure:"campaign_interval"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	LedgerDriverMySQL  = "mysql"
	LedgerDriverMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.events_channel", "auction_events")
	v.SetDefault("redis.snapshot_key", "auction:current_round")
	v.SetDefault("redis.snapshot_ttl", time.Minute)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("ledger.driver", LedgerDriverMySQL)
	v.SetDefault("auction.opening_window", 30*time.Second)
	v.SetDefault("auction.contested_window", 15*time.Second)
	v.SetDefault("auction.tick_interval", time.Second)
	v.SetDefault("auction.snapshot_refresh", 10*time.Second)
	v.SetDefault("increment.crossover", 100)
	v.SetDefault("increment.small", 5)
	v.SetDefault("increment.large", 10)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("leader.campaign_interval", 10*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("ledger.driver", "LEDGER_DRIVER")
	v.BindEnv("auction.opening_window", "AUCTION_OPENING_WINDOW")
	v.BindEnv("auction.contested_window", "AUCTION_CONTESTED_WINDOW")
	v.BindEnv("auction.tick_interval", "AUCTION_TICK_INTERVAL")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/player-auction/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path, on top of the defaults.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects timing and increment settings the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Auction.OpeningWindow <= 0 || c.Auction.ContestedWindow <= 0 {
		return fmt.Errorf("auction windows must be positive")
	}
	if c.Auction.ContestedWindow >= c.Auction.OpeningWindow {
		return fmt.Errorf("contested window %s must be shorter than opening window %s",
			c.Auction.ContestedWindow, c.Auction.OpeningWindow)
	}
	// The countdown is published in whole seconds, one per tick.
	if c.Auction.TickInterval != time.Second {
		return fmt.Errorf("tick interval must be 1s, got %s", c.Auction.TickInterval)
	}
	if c.Auction.OpeningWindow%time.Second != 0 || c.Auction.ContestedWindow%time.Second != 0 {
		return fmt.Errorf("auction windows must be whole seconds")
	}
	if c.Increment.Crossover <= 0 || c.Increment.Small <= 0 || c.Increment.Large <= 0 {
		return fmt.Errorf("increment tiers must be positive")
	}
	switch c.Ledger.Driver {
	case LedgerDriverMySQL, LedgerDriverMemory:
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Ledger: %s, Instance: %s, Windows: %s/%s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Ledger.Driver,
		c.Instance.ID,
		c.Auction.OpeningWindow,
		c.Auction.ContestedWindow,
	)
}
