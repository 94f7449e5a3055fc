package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.GroupCapacity != 4 {
		t.Fatalf("expected group capacity 4, got %d", cfg.GroupCapacity)
	}
	if cfg.RemoteSyncMinSeconds != 300 {
		t.Fatalf("expected remote sync threshold 300, got %v", cfg.RemoteSyncMinSeconds)
	}
	if cfg.JoinTimeout != 10*time.Second {
		t.Fatalf("expected join timeout 10s, got %v", cfg.JoinTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("INVITE_SECRET", "secret")
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("JOIN_TIMEOUT", "3s")
	t.Setenv("WEEK_START", "sunday")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.InviteSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.HistoryBackend != "sqlite" {
		t.Fatalf("expected override history backend")
	}
	if cfg.JoinTimeout != 3*time.Second {
		t.Fatalf("expected override join timeout, got %v", cfg.JoinTimeout)
	}
	if cfg.FirstWeekday() != time.Sunday {
		t.Fatalf("expected sunday week start")
	}
}

func TestLocationFallback(t *testing.T) {
	if loc := (Config{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
	if loc := (Config{Timezone: "UTC"}).Location(); loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %v", loc)
	}
	if (Config{}).FirstWeekday() != time.Monday {
		t.Fatalf("expected monday default")
	}
}
