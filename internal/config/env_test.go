package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("FOO", "")
	if got := GetEnv("FOO", "bar"); got != "bar" {
		t.Fatalf("expected bar, got %s", got)
	}
	t.Setenv("FOO", "baz")
	if got := GetEnv("FOO", "bar"); got != "baz" {
		t.Fatalf("expected baz, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("NUM", "")
	if got := GetEnvInt("NUM", 42); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("NUM", "100")
	if got := GetEnvInt("NUM", 42); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	t.Setenv("NUM", "notint")
	if got := GetEnvInt("NUM", 7); got != 7 {
		t.Fatalf("expected 7 on parse error, got %d", got)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("RATE", "")
	if got := GetEnvFloat("RATE", 5); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	t.Setenv("RATE", "2.5")
	if got := GetEnvFloat("RATE", 5); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	t.Setenv("RATE", "notfloat")
	if got := GetEnvFloat("RATE", 1.5); got != 1.5 {
		t.Fatalf("expected 1.5 on parse error, got %v", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "")
	if got := GetEnvBool("FLAG", true); got != true {
		t.Fatalf("expected true default, got %v", got)
	}
	t.Setenv("FLAG", "false")
	if got := GetEnvBool("FLAG", true); got != false {
		t.Fatalf("expected false, got %v", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if GetLogLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	t.Setenv("LOG_LEVEL", "warn")
	if GetLogLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level")
	}
	t.Setenv("LOG_LEVEL", "")
	if GetLogLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("SINK", "")
	t.Setenv("RAW_POSTS_TOPIC", "")
	t.Setenv("TOPIC", "")
	t.Setenv("SEEN_TTL_SECONDS", "")

	cfg := LoadConfig()
	if cfg.Sink != SinkQueue {
		t.Fatalf("expected redis sink default, got %s", cfg.Sink)
	}
	if cfg.RawPostsTopic != "raw_social_posts" {
		t.Fatalf("unexpected topic %s", cfg.RawPostsTopic)
	}
	if cfg.SeenTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl %s", cfg.SeenTTL)
	}
	if cfg.RawPostsMaxLen != 100000 {
		t.Fatalf("unexpected maxlen %d", cfg.RawPostsMaxLen)
	}
}

func TestLoadConfigTopicFallback(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("RAW_POSTS_TOPIC", "")
	t.Setenv("TOPIC", "legacy_topic")

	cfg := LoadConfig()
	if cfg.RawPostsTopic != "legacy_topic" {
		t.Fatalf("expected TOPIC fallback, got %s", cfg.RawPostsTopic)
	}
}
