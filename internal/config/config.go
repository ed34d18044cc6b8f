package config

import (
	"strings"
	"time"
)

// Sink selects the active delivery transport for the process lifetime.
type Sink string

const (
	SinkQueue    Sink = "redis"
	SinkFirehose Sink = "kafka"
)

// Config stores environment configuration for Trawler.
type Config struct {
	// Sink selection and transports
	Sink              Sink
	KafkaBrokers      []string
	SchemaRegistryURL string
	RawPostsTopic     string
	SchemaFile        string
	RawPostsStream    string
	RawPostsMaxLen    int64

	// Dedup store
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SeenTTL       time.Duration

	// Provider
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	Subreddits         string
	RPS                float64
	BackfillMinutes    int
	SkipExisting       bool

	// Health endpoint
	Port                 string
	EnableHealthEndpoint bool
}

// LoadConfig loads the Trawler configuration from environment variables.
// Provider credentials are hard requirements; the process exits non-zero
// when they are missing.
func LoadConfig() Config {
	return Config{
		Sink:              Sink(strings.ToLower(GetEnv("SINK", "redis"))),
		KafkaBrokers:      strings.Split(GetEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		SchemaRegistryURL: GetEnv("SCHEMA_REGISTRY_URL", "http://localhost:8081"),
		RawPostsTopic:     GetEnv("RAW_POSTS_TOPIC", GetEnv("TOPIC", "raw_social_posts")),
		SchemaFile:        GetEnv("SCHEMA_FILE", ""),
		RawPostsStream:    GetEnv("RAW_POSTS_STREAM", "raw_posts"),
		RawPostsMaxLen:    int64(GetEnvInt("RAW_POSTS_MAXLEN", 100000)),

		RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),
		SeenTTL:       time.Duration(GetEnvInt("SEEN_TTL_SECONDS", 86400)) * time.Second,

		RedditClientID:     RequireEnv("REDDIT_CLIENT_ID"),
		RedditClientSecret: RequireEnv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    GetEnv("REDDIT_USER_AGENT", "pulse-ingestion/1.0 by localdev"),
		Subreddits:         GetEnv("SUBREDDITS", "technology+wallstreetbets+worldnews+politics+gaming+movies"),
		RPS:                GetEnvFloat("RPS", 5),
		BackfillMinutes:    GetEnvInt("BACKFILL_MINUTES", 0),
		SkipExisting:       GetEnvBool("SKIP_EXISTING", false),

		Port:                 GetEnv("PORT", "18010"),
		EnableHealthEndpoint: GetEnvBool("ENABLE_HEALTH_ENDPOINT", true),
	}
}
