package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/eta-study/eta-server/internal/auth"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("ELEVENLABS_VOICE_STUDY_BUDDY", "buddy")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "9090" || cfg.LogLevel != "INFO" || cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("cors origins = %q", cfg.CORSOrigins)
	}
	v := cfg.Voices()
	if v.VoiceFor("study buddy") != "buddy" || v.VoiceFor("professor") != cfg.ElevenLabsVoiceID {
		t.Fatalf("unexpected voices: %+v", v)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", "s3cret")
	path := filepath.Join(t.TempDir(), "eta.yaml")
	if err := os.WriteFile(path, []byte("DATABASE_URL: memory://\nAUTH0_DOMAIN: tenant.auth0.com\nAUTH0_CLIENT_ID: cid\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "memory://" || !cfg.AuthEnabled() {
		t.Fatalf("config file values not applied: %+v", cfg)
	}
}

func TestLoadRequiresSecretOnlyWithAuth(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", "")
	t.Setenv("AUTH0_DOMAIN", "")
	t.Setenv("AUTH0_CLIENT_ID", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without auth: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Fatalf("auth should be disabled")
	}

	t.Setenv("AUTH0_DOMAIN", "tenant.auth0.com")
	t.Setenv("AUTH0_CLIENT_ID", "cid")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing APP_SECRET_KEY to fail once Auth0 is configured")
	}
}

func TestLoadSessionTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != auth.DefaultSessionTTL {
		t.Fatalf("default session ttl = %v, want %v", cfg.SessionTTL, auth.DefaultSessionTTL)
	}

	t.Setenv("SESSION_TTL", "2h")
	if cfg, err = Load(""); err != nil || cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("session ttl override = %v, %v", cfg, err)
	}

	t.Setenv("SESSION_TTL", "-1h")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected a negative SESSION_TTL to fail")
	}
}
