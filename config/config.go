package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/helpers"
	"gopkg.in/yaml.v3"
)

// DebugMode turns on verbose logging of outbound requests.
var DebugMode = os.Getenv("DEBUG") == "true"

type Config struct {
	ServiceName string

	// Coinbase websocket feed and the credentials of the private channels.
	WebsocketURL string
	APIKey       string
	APISecret    string
	Passphrase   string

	TradesLimit   int
	OrdersLimit   int
	MyTradesLimit int

	// MarketsFile lists the markets the service knows. A missing file means built-in markets.
	MarketsFile string
	// WatchSymbols are subscribed to on start.
	WatchSymbols []string

	GRPCPort    int
	MetricsAddr string
	LogLevel    string

	KafkaBrokers []string
	KafkaTopic   string
	JournalPath  string
}

// Load reads .env when present, then the environment.
func Load(serviceName string) *Config {
	_ = godotenv.Load()
	DebugMode = getEnvAsBool("DEBUG", false)

	return &Config{
		ServiceName:   serviceName,
		WebsocketURL:  getEnvAsString("COINBASE_WS_URL", "wss://ws-feed.pro.coinbase.com"),
		APIKey:        getEnvAsString("COINBASE_API_KEY", ""),
		APISecret:     getEnvAsString("COINBASE_API_SECRET", ""),
		Passphrase:    getEnvAsString("COINBASE_API_PASSPHRASE", ""),
		TradesLimit:   getEnvAsInt("TRADES_LIMIT", 1000),
		OrdersLimit:   getEnvAsInt("ORDERS_LIMIT", 1000),
		MyTradesLimit: getEnvAsInt("MY_TRADES_LIMIT", 1000),
		MarketsFile:   getEnvAsString("MARKETS_FILE", "markets.yaml"),
		WatchSymbols:  getEnvAsList("WATCH_SYMBOLS"),
		GRPCPort:      getEnvAsInt("PORT_GRPC", 50051),
		MetricsAddr:   getEnvAsString("METRICS_ADDR", ":8080"),
		LogLevel:      getEnvAsString("LOG_LEVEL", "info"),
		KafkaBrokers:  getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:    getEnvAsString("KAFKA_TOPIC", "marketsync.events"),
		JournalPath:   getEnvAsString("JOURNAL_PATH", ""),
	}
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.WebsocketURL, "wss://") && !strings.HasPrefix(c.WebsocketURL, "ws://") {
		return fmt.Errorf("COINBASE_WS_URL must be a websocket url, got %q", c.WebsocketURL)
	}
	if c.TradesLimit < 1 || c.OrdersLimit < 1 || c.MyTradesLimit < 1 {
		return errors.New("cache limits must be positive")
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("PORT_GRPC out of range: %d", c.GRPCPort)
	}
	return nil
}

func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c *Config) CacheLimits() domain.CacheLimits {
	return domain.CacheLimits{
		Trades:   c.TradesLimit,
		Orders:   c.OrdersLimit,
		MyTrades: c.MyTradesLimit,
	}
}

type marketsFile struct {
	Markets []domain.Market `yaml:"markets"`
}

// LoadMarkets parses the markets file. It returns nil, nil when the file does not exist.
// Entries may give only a symbol, the id and assets are derived from it.
func LoadMarkets(path string) ([]domain.Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}

	var file marketsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse markets file: %w", err)
	}

	markets := make([]domain.Market, 0, len(file.Markets))
	for _, m := range file.Markets {
		symbol, err := domain.NewMarketSymbolFromString(m.Symbol)
		if err != nil {
			return nil, fmt.Errorf("market %q: %w", m.Symbol, err)
		}
		derived := domain.NewMarket(symbol)
		if m.ID != "" {
			derived.ID = m.ID
		}
		markets = append(markets, *derived)
	}
	return markets, nil
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return helpers.SplitList(os.Getenv(key))
}
