package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Retrieval RetrievalConfig
	Ingestion IngestionConfig
	Agent     AgentConfig
	Eval      EvalConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
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

type RetrievalConfig struct {
	TopK             int
	FetchKMultiplier int
}

type IngestionConfig struct {
	ChunkSize int
}

type AgentConfig struct {
	MaxIterations int
}

type EvalConfig struct {
	GoldenPath string
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
	viper.AddConfigPath("/etc/tj-assistant")

	viper.SetEnvPrefix("TJ_ASSISTANT")
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
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "GigaChat-Pro")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.embeddingModel", "multilingual-e5-large")
	viper.SetDefault("llm.embeddingDim", 1024)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "tj_articles")
	viper.SetDefault("milvus.vectorDim", 1024)

	viper.SetDefault("sqlite.path", "./data/tj_assistant.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.fetchKMultiplier", 3)

	viper.SetDefault("ingestion.chunkSize", 1000)

	viper.SetDefault("agent.maxIterations", 4)

	viper.SetDefault("eval.goldenPath", "./data/eval_golden.json")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
