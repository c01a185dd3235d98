package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Search   SearchConfig
	Backfill BackfillConfig
	Issues   IssuesConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   int
	WriteTimeout  int
	BodyLimit     int
	RatePerMinute int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type ProviderConfig struct {
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int
	SummaryModel   string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	MaxInputChars  int
	MinInputChars  int
}

type SearchConfig struct {
	KeywordFloor    int
	VectorFloor     int
	KeywordTopN     int
	VectorTopN      int
	MaxTokens       int
	RawCandidateCap int
	DefaultLimit    int
	EmbedTimeoutSec int
}

type BackfillConfig struct {
	BatchSize    int
	BatchDelayMS int
	WindowDays   int
}

type IssuesConfig struct {
	BadScoreCutoff int
	SimThreshold   float64
	WindowDays     int
	SummaryDelayMS int
	CronSchedule   string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/reviewlens")

	viper.SetEnvPrefix("REVIEWLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 300)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.ratePerMinute", 120)

	viper.SetDefault("sqlite.path", "./data/reviewlens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 168)

	viper.SetDefault("provider.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("provider.embeddingDim", 1536)
	viper.SetDefault("provider.summaryModel", "gpt-4o-mini")
	viper.SetDefault("provider.temperature", 0.2)
	viper.SetDefault("provider.maxTokens", 120)
	viper.SetDefault("provider.timeoutSec", 15)
	viper.SetDefault("provider.maxInputChars", 8000)
	viper.SetDefault("provider.minInputChars", 8)

	// Score floors and thresholds were tuned against the production corpus;
	// they are defaults here, not constants.
	viper.SetDefault("search.keywordFloor", 20)
	viper.SetDefault("search.vectorFloor", 25)
	viper.SetDefault("search.keywordTopN", 5)
	viper.SetDefault("search.vectorTopN", 5)
	viper.SetDefault("search.maxTokens", 15)
	viper.SetDefault("search.rawCandidateCap", 100)
	viper.SetDefault("search.defaultLimit", 10)
	viper.SetDefault("search.embedTimeoutSec", 5)

	viper.SetDefault("backfill.batchSize", 15)
	viper.SetDefault("backfill.batchDelayMS", 1000)
	viper.SetDefault("backfill.windowDays", 180)

	viper.SetDefault("issues.badScoreCutoff", 90)
	viper.SetDefault("issues.simThreshold", 0.70)
	viper.SetDefault("issues.windowDays", 21)
	viper.SetDefault("issues.summaryDelayMS", 500)
	viper.SetDefault("issues.cronSchedule", "0 3 * * *")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
