package config

import (
	"strings"

	"github.com/blues/launchpad/internal/logger"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Migration MigrationConfig `mapstructure:"migration"`
	Task      TaskConfig      `mapstructure:"task"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // postgres 或 memory
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 跨链消息通道
type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	OutboundTopic  string   `mapstructure:"outbound_topic"`  // 发往目标链的消息
	ResponseTopic  string   `mapstructure:"response_topic"`  // 目标链的查询响应
	ConsumerGroup  string   `mapstructure:"consumer_group"`  // 响应消费组
	ResponseWorker int      `mapstructure:"response_worker"` // 响应处理协程数
}

// ChainConfig 区块时钟与随机数来源
type ChainConfig struct {
	BlockTime     int    `mapstructure:"block_time"`    // 出块间隔（秒）
	StartBlock    uint64 `mapstructure:"start_block"`   // 启动时的区块高度
	RandomSource  string `mapstructure:"random_source"` // keccak 或 ethereum
	RandomSeed    string `mapstructure:"random_seed"`   // keccak 随机数种子，为空时启动时随机生成
	RpcUrl        string `mapstructure:"rpc_url"`       // ethereum 随机信标节点
	Confirmations uint64 `mapstructure:"confirmations"` // 信标区块确认数
}

// AssetConfig 资产登记与静态价格
type AssetConfig struct {
	ID         string          `mapstructure:"id"`
	Decimals   uint8           `mapstructure:"decimals"`
	MinBalance decimal.Decimal `mapstructure:"min_balance"`
	Price      decimal.Decimal `mapstructure:"price"` // USD 价格，source 为 static 时使用
}

// OracleConfig 价格预言机
type OracleConfig struct {
	Source   string        `mapstructure:"source"`    // static 或 redis
	RedisKey string        `mapstructure:"redis_key"` // 价格哈希表
	Assets   []AssetConfig `mapstructure:"assets"`
}

// FeeBracket 手续费阶梯
type FeeBracket struct {
	Percent decimal.Decimal `mapstructure:"percent"`
	Limit   decimal.Decimal `mapstructure:"limit"` // 该档位的USD上限，零表示无上限
}

// EngineConfig 募资引擎参数，时长单位为区块
type EngineConfig struct {
	SystemAccount   string `mapstructure:"system_account"`
	TreasuryAccount string `mapstructure:"treasury_account"`
	BlocksPerHour   uint64 `mapstructure:"blocks_per_hour"`

	EvaluationDuration              uint64 `mapstructure:"evaluation_duration"`
	AuctionInitializePeriodDuration uint64 `mapstructure:"auction_initialize_period_duration"`
	EnglishAuctionDuration          uint64 `mapstructure:"english_auction_duration"`
	CandleAuctionDuration           uint64 `mapstructure:"candle_auction_duration"`
	CommunityFundingDuration        uint64 `mapstructure:"community_funding_duration"`
	RemainderFundingDuration        uint64 `mapstructure:"remainder_funding_duration"`
	ManualAcceptanceDuration        uint64 `mapstructure:"manual_acceptance_duration"`
	SuccessToSettlementTime         uint64 `mapstructure:"success_to_settlement_time"`

	MaxProjectsToUpdatePerBlock          int `mapstructure:"max_projects_to_update_per_block"`
	MaxProjectsToUpdateInsertionAttempts int `mapstructure:"max_projects_to_update_insertion_attempts"`
	MaxEvaluationsPerUser                int `mapstructure:"max_evaluations_per_user"`
	MaxEvaluationsPerProject             int `mapstructure:"max_evaluations_per_project"`
	MaxBidsPerUser                       int `mapstructure:"max_bids_per_user"`
	MaxBidsPerProject                    int `mapstructure:"max_bids_per_project"`
	MaxContributionsPerUser              int `mapstructure:"max_contributions_per_user"`
	MaxContributionsPerProject           int `mapstructure:"max_contributions_per_project"`

	EvaluationSuccessThreshold decimal.Decimal `mapstructure:"evaluation_success_threshold"`
	EvaluatorSlash             decimal.Decimal `mapstructure:"evaluator_slash"`
	MinUsdPerEvaluation        decimal.Decimal `mapstructure:"min_usd_per_evaluation"`
	FeeBrackets                []FeeBracket    `mapstructure:"fee_brackets"`
	UsdDecimals                uint8           `mapstructure:"usd_decimals"`
}

// MigrationConfig 跨链迁移参数
type MigrationConfig struct {
	MaxMessageSize       int    `mapstructure:"max_message_size"`       // 单条消息的最大字节数
	QueryResponseTimeout uint64 `mapstructure:"query_response_timeout"` // 查询超时（区块）
	ReceiverPalletName   string `mapstructure:"receiver_pallet_name"`
	ReceiverPalletIndex  uint8  `mapstructure:"receiver_pallet_index"`
	HubParaID            uint32 `mapstructure:"hub_para_id"`
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	Workers  int `mapstructure:"workers"`  // 并发处理的项目数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// DefaultEngineConfig 默认引擎参数，每小时 300 个区块
func DefaultEngineConfig() EngineConfig {
	const hours = 300
	return EngineConfig{
		SystemAccount:                        "system",
		TreasuryAccount:                      "treasury",
		BlocksPerHour:                        hours,
		EvaluationDuration:                   28 * hours,
		AuctionInitializePeriodDuration:      7 * hours,
		EnglishAuctionDuration:               2 * hours,
		CandleAuctionDuration:                3 * hours,
		CommunityFundingDuration:             5 * hours,
		RemainderFundingDuration:             1 * hours,
		ManualAcceptanceDuration:             3 * hours,
		SuccessToSettlementTime:              4 * hours,
		MaxProjectsToUpdatePerBlock:          100,
		MaxProjectsToUpdateInsertionAttempts: 100,
		MaxEvaluationsPerUser:                4,
		MaxEvaluationsPerProject:             512,
		MaxBidsPerUser:                       4,
		MaxBidsPerProject:                    512,
		MaxContributionsPerUser:              4,
		MaxContributionsPerProject:           512,
		EvaluationSuccessThreshold:           decimal.NewFromFloat(0.1),
		EvaluatorSlash:                       decimal.NewFromFloat(0.2),
		MinUsdPerEvaluation:                  decimal.NewFromInt(1),
		FeeBrackets: []FeeBracket{
			{Percent: decimal.NewFromFloat(0.1), Limit: decimal.NewFromInt(1_000_000)},
			{Percent: decimal.NewFromFloat(0.08), Limit: decimal.NewFromInt(5_000_000)},
			{Percent: decimal.NewFromFloat(0.06), Limit: decimal.Zero},
		},
		UsdDecimals: 6,
	}
}

// DefaultMigrationConfig 默认迁移参数
func DefaultMigrationConfig() MigrationConfig {
	return MigrationConfig{
		MaxMessageSize:       102_400,
		QueryResponseTimeout: 20,
		ReceiverPalletName:   "polimec_receiver",
		ReceiverPalletIndex:  51,
		HubParaID:            3344,
	}
}

// DefaultAssets 默认资产登记
func DefaultAssets() []AssetConfig {
	return []AssetConfig{
		{ID: "PLMC", Decimals: 10, MinBalance: decimal.NewFromFloat(0.1), Price: decimal.NewFromFloat(0.5)},
		{ID: "USDT", Decimals: 6, MinBalance: decimal.NewFromFloat(0.01), Price: decimal.NewFromInt(1)},
		{ID: "USDC", Decimals: 6, MinBalance: decimal.NewFromFloat(0.01), Price: decimal.NewFromInt(1)},
		{ID: "DOT", Decimals: 10, MinBalance: decimal.NewFromFloat(0.01), Price: decimal.NewFromInt(7)},
	}
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/launchpad")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "launchpad")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.auto_migrate", true)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.outbound_topic", "launchpad.xcm.outbound")
	viper.SetDefault("kafka.response_topic", "launchpad.xcm.response")
	viper.SetDefault("kafka.consumer_group", "launchpad")
	viper.SetDefault("kafka.response_worker", 8)
	viper.SetDefault("chain.block_time", 12)
	viper.SetDefault("chain.start_block", 1)
	viper.SetDefault("chain.random_source", "ethereum")
	viper.SetDefault("chain.rpc_url", "https://ethereum-rpc.publicnode.com")
	viper.SetDefault("chain.confirmations", 12)
	viper.SetDefault("oracle.source", "static")
	viper.SetDefault("oracle.redis_key", "launchpad:prices")
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量，LAUNCHPAD_DATABASE_HOST 覆盖 database.host
	viper.SetEnvPrefix("launchpad")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	config := Config{
		Engine:    DefaultEngineConfig(),
		Migration: DefaultMigrationConfig(),
		Oracle:    OracleConfig{Assets: DefaultAssets()},
	}
	if err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
