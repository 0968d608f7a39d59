package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"wallet-swap/pkg/chain/evm"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/types"
)

// Config holds the application configuration
type Config struct {
	TradingAPIURL     string
	APIKey            string
	RateLimit         int
	OrderURL          string
	PrivateKeys       []string
	SwapProtection    bool
	RoutingPreference quote.RoutingPreference
	DefaultChain      types.ChainID
	Slippage          *decimal.Decimal
	PollInterval      time.Duration
	ReceiptInterval   time.Duration
	StoreDriver       string
	StorePath         string
	LogLevel          string
	APIListen         string
	Chains            []evm.Endpoint
	Tokens            []parser.Token
}

// ChainConfig is one entry of the chains section
type ChainConfig struct {
	Chain         string `mapstructure:"chain"`
	RPCURL        string `mapstructure:"rpc_url"`
	PrivateRPCURL string `mapstructure:"private_rpc_url"`
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading_api.base_url", quote.DefaultBaseURL)
	v.SetDefault("trading_api.rate_limit", 5)
	v.SetDefault("order_url", quote.DefaultBaseURL)
	v.SetDefault("swap_protection", true)
	v.SetDefault("routing_preference", string(quote.PreferenceBestPrice))
	v.SetDefault("default_chain", "mainnet")
	v.SetDefault("poll_interval", "15s")
	v.SetDefault("receipt_interval", "4s")
	v.SetDefault("store.driver", "file")
	v.SetDefault("log_level", "info")
	v.SetDefault("api.listen", "127.0.0.1:8080")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".wallet-swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("WALLET_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TradingAPIURL:     v.GetString("trading_api.base_url"),
		APIKey:            v.GetString("trading_api.api_key"),
		RateLimit:         v.GetInt("trading_api.rate_limit"),
		OrderURL:          v.GetString("order_url"),
		SwapProtection:    v.GetBool("swap_protection"),
		RoutingPreference: quote.RoutingPreference(strings.ToUpper(v.GetString("routing_preference"))),
		PollInterval:      v.GetDuration("poll_interval"),
		ReceiptInterval:   v.GetDuration("receipt_interval"),
		StoreDriver:       strings.ToLower(v.GetString("store.driver")),
		StorePath:         v.GetString("store.path"),
		LogLevel:          v.GetString("log_level"),
		APIListen:         v.GetString("api.listen"),
	}

	for _, k := range v.GetStringSlice("private_keys") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.PrivateKeys = append(cfg.PrivateKeys, k)
		}
	}
	if k := strings.TrimSpace(v.GetString("private_key")); k != "" {
		cfg.PrivateKeys = append(cfg.PrivateKeys, k)
	}

	chainID, err := types.ParseChain(v.GetString("default_chain"))
	if err != nil {
		return nil, fmt.Errorf("default_chain: %w", err)
	}
	cfg.DefaultChain = chainID

	if s := v.GetString("slippage"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid slippage %q: %w", s, err)
		}
		cfg.Slippage = &d
	}

	var chains []ChainConfig
	if err := v.UnmarshalKey("chains", &chains); err != nil {
		return nil, fmt.Errorf("failed to decode chains: %w", err)
	}
	for _, c := range chains {
		id, err := types.ParseChain(c.Chain)
		if err != nil {
			return nil, fmt.Errorf("chains: %w", err)
		}
		cfg.Chains = append(cfg.Chains, evm.Endpoint{ChainID: id, RPCURL: c.RPCURL, PrivateRPCURL: c.PrivateRPCURL})
	}

	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}

	if cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath(cfg.StoreDriver)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "file", "bolt", "memory":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}
	switch c.RoutingPreference {
	case quote.PreferenceBestPrice, quote.PreferenceClassic:
	default:
		return fmt.Errorf("unsupported routing preference: %s", c.RoutingPreference)
	}
	if c.PollInterval <= 0 || c.ReceiptInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}

// RequireAPIKey fails when no Trading API key is configured
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("Trading API key not found. Please set WALLET_SWAP_TRADING_API_API_KEY environment variable or create a .wallet-swap.yaml config file")
	}
	return nil
}

// RequireSigner fails when no private key is configured
func (c *Config) RequireSigner() error {
	if len(c.PrivateKeys) == 0 {
		return fmt.Errorf("no private key configured. Please set WALLET_SWAP_PRIVATE_KEY")
	}
	return nil
}

func defaultStorePath(driver string) string {
	name := ".wallet-swap-transactions.json"
	if driver == "bolt" {
		name = ".wallet-swap.db"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return home + string(os.PathSeparator) + name
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
