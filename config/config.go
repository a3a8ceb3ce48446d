package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Chain    ChainConfig    `mapstructure:"chain"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs lists the addresses allowed to hit /api/admin endpoints.
	// An empty slice allows loopback only.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// ChainConfig holds the deployment-time engine parameters. These are
// constants of a running deployment, never free inputs of an operation.
type ChainConfig struct {
	// BlockTimeMs is the interval at which the scheduler advances the block
	// height. 0 disables automatic block production (blocks are then advanced
	// through the admin API only).
	BlockTimeMs int `mapstructure:"block_time_ms"`

	// NestingBudget bounds every recursive walk over the nesting tree
	// (burn, root-owner refresh, descent checks).
	NestingBudget int `mapstructure:"nesting_budget"`

	CollectionSymbolLimit int `mapstructure:"collection_symbol_limit"`
	ResourceSymbolLimit   int `mapstructure:"resource_symbol_limit"`
	MetadataLimit         int `mapstructure:"metadata_limit"`
	PropertiesLimit       int `mapstructure:"properties_limit"`
	KeyLimit              int `mapstructure:"key_limit"`
	ValueLimit            int `mapstructure:"value_limit"`
	MaxPriorities         int `mapstructure:"max_priorities"`
	MaxResourcesOnMint    int `mapstructure:"max_resources_on_mint"`

	PartsLimit                      int `mapstructure:"parts_limit"`
	MaxPropertiesPerTheme           int `mapstructure:"max_properties_per_theme"`
	MaxCollectionsEquippablePerPart int `mapstructure:"max_collections_equippable_per_part"`

	// MinimumOfferAmount is the smallest amount an offer may reserve.
	MinimumOfferAmount int64 `mapstructure:"minimum_offer_amount"`
	// MarketFee is the marketplace cut of every sale, in parts per million.
	MarketFee uint32 `mapstructure:"market_fee"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/chain.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("chain.block_time_ms", 6000)
	v.SetDefault("chain.nesting_budget", 10)
	v.SetDefault("chain.collection_symbol_limit", 16)
	v.SetDefault("chain.resource_symbol_limit", 10)
	v.SetDefault("chain.metadata_limit", 256)
	v.SetDefault("chain.properties_limit", 15)
	v.SetDefault("chain.key_limit", 32)
	v.SetDefault("chain.value_limit", 256)
	v.SetDefault("chain.max_priorities", 25)
	v.SetDefault("chain.max_resources_on_mint", 8)
	v.SetDefault("chain.parts_limit", 25)
	v.SetDefault("chain.max_properties_per_theme", 5)
	v.SetDefault("chain.max_collections_equippable_per_part", 10)
	v.SetDefault("chain.minimum_offer_amount", 50)
	v.SetDefault("chain.market_fee", 5000) // 0.5%, parts per million

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultChain returns the chain parameters used when no config file is
// loaded (tests, embedded use).
func DefaultChain() ChainConfig {
	return ChainConfig{
		NestingBudget:                   10,
		CollectionSymbolLimit:           16,
		ResourceSymbolLimit:             10,
		MetadataLimit:                   256,
		PropertiesLimit:                 15,
		KeyLimit:                        32,
		ValueLimit:                      256,
		MaxPriorities:                   25,
		MaxResourcesOnMint:              8,
		PartsLimit:                      25,
		MaxPropertiesPerTheme:           5,
		MaxCollectionsEquippablePerPart: 10,
		MinimumOfferAmount:              50,
		MarketFee:                       5000,
	}
}
