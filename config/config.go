package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileEnvName = "ECOM_CONFIG_FILE"

type consumers struct {
	StockReducerGroup  string `mapstructure:"stock_reducer_group"`
	StockSnapshotGroup string `mapstructure:"stock_snapshot_group"`
}

type topics struct {
	OrdersPlaced string `mapstructure:"orders_placed"`
	StockChanged string `mapstructure:"stock_changed"`
}

// TLS files are paths. Empty paths mean plaintext connections.
type brokerTLS struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

func (t brokerTLS) Enabled() bool {
	return t.CA != "" && t.Cert != "" && t.Key != ""
}

type broker struct {
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	TLS                brokerTLS `mapstructure:"tls"`
	Topics             topics    `mapstructure:"topics"`
	Consumers          consumers `mapstructure:"consumers"`
}

type Config struct {
	LogLevel           slog.Level    `mapstructure:"log_level"`
	HTTPServerAddr     string        `mapstructure:"http_server_addr"`
	HTTPRequestTimeout time.Duration `mapstructure:"http_request_timeout"`
	SQLDB              string        `mapstructure:"sql_db"`
	MaxTxAttempts      int           `mapstructure:"max_tx_attempts"`
	Broker             broker        `mapstructure:"broker"`
}

func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads the config file at path. Keys unknown to [Config]
// are reported as an error.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8000")
	v.SetDefault("http_request_timeout", "5s")
	v.SetDefault("max_tx_attempts", 5)
	v.SetDefault("broker.topics.orders_placed", "orders-placed")
	v.SetDefault("broker.topics.stock_changed", "stock-changed")
	v.SetDefault("broker.consumers.stock_reducer_group", "stock-reducer-group")
	v.SetDefault("broker.consumers.stock_snapshot_group", "stock-snapshot-group")
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	HTTPRequestTimeout=%q
	SQLDB=%q
	MaxTxAttempts=%d

	BrokerConfig:
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	TLS=%t
	Topics:
		OrdersPlaced=%q
		StockChanged=%q
	Consumers:
		StockReducerGroup=%q
		StockSnapshotGroup=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.HTTPRequestTimeout,
		redactDSN(c.SQLDB),
		c.MaxTxAttempts,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.TLS.Enabled(),
		c.Broker.Topics.OrdersPlaced,
		c.Broker.Topics.StockChanged,
		c.Broker.Consumers.StockReducerGroup,
		c.Broker.Consumers.StockSnapshotGroup,
	)
}

var dsnPasswordRe = regexp.MustCompile(`(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// redactDSN hides the password of URL and keyword/value connection strings.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return dsnPasswordRe.ReplaceAllString(dsn, "${1}xxxxx")
}
