package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eta-study/eta-server/internal/auth"
	"github.com/eta-study/eta-server/internal/speech"
)

type Config struct {
	HTTPPort     string
	LogLevel     string
	DatabaseURL  string
	GeminiAPIKey string
	GeminiModel  string
	SystemPrompt string

	ElevenLabsAPIKey  string
	ElevenLabsModelID string
	ElevenLabsVoiceID string
	// PersonaVoices maps persona keys to voice overrides.
	PersonaVoices map[string]string

	Auth0ClientID     string
	Auth0ClientSecret string
	Auth0Domain       string
	Auth0CallbackURL  string
	AppSecretKey      string
	SessionTTL        time.Duration

	CORSOrigins []string
	FrontendURL string
}

var personaVoiceEnv = map[string]string{
	"professor":   "ELEVENLABS_VOICE_PROFESSOR",
	"study buddy": "ELEVENLABS_VOICE_STUDY_BUDDY",
	"exam coach":  "ELEVENLABS_VOICE_EXAM_COACH",
}

// Load reads .env, the optional config file at path and the environment, in
// increasing order of precedence.
func Load(path string) (*Config, error) {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("DATABASE_URL", "eta_materials.db")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("SYSTEM_PROMPT", "You are ETA, a concise teaching assistant who explains concepts clearly.")
	v.SetDefault("ELEVENLABS_MODEL_ID", speech.DefaultModelID)
	v.SetDefault("ELEVENLABS_VOICE_ID", speech.DefaultVoiceID)
	v.SetDefault("AUTH0_CALLBACK_URL", "http://localhost:3000/callback")
	v.SetDefault("SESSION_TTL", auth.DefaultSessionTTL.String())
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPPort:          v.GetString("PORT"),
		LogLevel:          strings.ToUpper(v.GetString("LOG_LEVEL")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		GeminiModel:       v.GetString("GEMINI_MODEL"),
		SystemPrompt:      v.GetString("SYSTEM_PROMPT"),
		ElevenLabsAPIKey:  v.GetString("ELEVENLABS_API_KEY"),
		ElevenLabsModelID: v.GetString("ELEVENLABS_MODEL_ID"),
		ElevenLabsVoiceID: v.GetString("ELEVENLABS_VOICE_ID"),
		PersonaVoices:     make(map[string]string, len(personaVoiceEnv)),
		Auth0ClientID:     v.GetString("AUTH0_CLIENT_ID"),
		Auth0ClientSecret: v.GetString("AUTH0_CLIENT_SECRET"),
		Auth0Domain:       v.GetString("AUTH0_DOMAIN"),
		Auth0CallbackURL:  v.GetString("AUTH0_CALLBACK_URL"),
		AppSecretKey:      v.GetString("APP_SECRET_KEY"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		FrontendURL:       strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
	}
	for persona, key := range personaVoiceEnv {
		if id := v.GetString(key); id != "" {
			cfg.PersonaVoices[persona] = id
		}
	}

	// The key only signs session cookies.
	if cfg.AuthEnabled() && cfg.AppSecretKey == "" {
		return nil, errors.New("APP_SECRET_KEY is required when Auth0 is configured")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %q", v.GetString("SESSION_TTL"))
	}
	return cfg, nil
}

// Voices resolves persona voices with ELEVENLABS_VOICE_ID as the fallback.
func (c *Config) Voices() speech.Voices {
	return speech.Voices{Default: c.ElevenLabsVoiceID, ByPersona: c.PersonaVoices}
}

// AuthEnabled reports whether the Auth0 client is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth0Domain != "" && c.Auth0ClientID != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
