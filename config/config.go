package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logger"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/server"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis result cache (disabled when host is empty)
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"10m"`

	// Graph Database (Memgraph / Neo4j, disabled when host is empty)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:""`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"member-imports"`
	KafkaOutputTopic     string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"duplicate-reports"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`
	KafkaProducerEnabled bool     `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingExporter string  `env:"TRACING_EXPORTER" env-default:"none"` // none, otlp-grpc, otlp-http
	TracingEndpoint string  `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingInsecure bool    `env:"TRACING_INSECURE" env-default:"true"`
	TracingSampling float64 `env:"TRACING_SAMPLE_RATIO" env-default:"1"`

	// Processing
	ImportBatchSize int           `env:"IMPORT_BATCH_SIZE" env-default:"100"`
	MatchWorkers    int           `env:"MATCH_WORKERS" env-default:"0"` // 0 uses GOMAXPROCS
	PersistImports  bool          `env:"PERSIST_IMPORTS" env-default:"true"`
	ImportLockTTL   time.Duration `env:"IMPORT_LOCK_TTL" env-default:"5m"`
}

// Load reads an optional .env file and then the environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Pretty: c.PrettyLogs}
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             c.DatabaseMigrationVersion,
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Graph() graph.Config {
	return graph.Config{
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
	}
}

func (c *Config) Consumer() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       c.KafkaBrokers,
		Topic:         c.KafkaInputTopic,
		ConsumerGroup: c.KafkaConsumerGroup,
	}
}

func (c *Config) Producer() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaOutputTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    c.AppName,
		ServiceVersion: c.Version,
		Exporter:       c.TracingExporter,
		Endpoint:       c.TracingEndpoint,
		Insecure:       c.TracingInsecure,
		SampleRatio:    c.TracingSampling,
	}
}

func (c *Config) Server() server.Config {
	return server.Config{
		AppName:           c.AppName,
		Port:              c.Port,
		ReadTimeout:       time.Duration(c.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(c.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(c.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    c.MaxHeaderBytes,
		AllowOrigins:      c.AllowOrigins,
		AllowMethods:      c.AllowMethods,
	}
}
