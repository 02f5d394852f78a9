package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SQLitePath      string
	PostgresDSN     string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	ClickHouseAddr  string
	ClickHouseDB    string
	KafkaBrokers    []string
	KafkaGroupID    string
	UseKafka        bool
	LocalDeployment bool
	CacheTTL        time.Duration
	OutboxPeriod    time.Duration
	OutboxLimit     int
	ProcessDelay    time.Duration
	ConsumerRetries int
	ConsumerBackoff time.Duration
	ConsumerTimeout time.Duration
	HTTPPort        string
}

func LoadConfig() *Config {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getEnvInt := func(key string, fallback int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return fallback
	}

	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	return &Config{
		SQLitePath:      getEnv("SQLITE_PATH", "./reportlab.db"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDBName:     getEnv("MONGO_DB", "reportlab"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		ClickHouseAddr:  getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:    getEnv("CLICKHOUSE_DB", "reportlab"),
		KafkaBrokers:    kafkaBrokers,
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "reportlab-report-service"),
		UseKafka:        getEnv("USE_KAFKA", "") == "true",
		LocalDeployment: getEnv("LOCAL_DEPLOYMENT", "true") == "true",
		CacheTTL:        5 * time.Minute,
		OutboxPeriod:    1 * time.Second,
		OutboxLimit:     getEnvInt("OUTBOX_LIMIT", 10),
		ProcessDelay:    1 * time.Second,
		ConsumerRetries: getEnvInt("CONSUMER_RETRIES", 3),
		ConsumerBackoff: 200 * time.Millisecond,
		ConsumerTimeout: 10 * time.Second,
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
	}
}
