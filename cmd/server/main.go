package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/api"
	"github.com/eta-study/eta-server/internal/auth"
	"github.com/eta-study/eta-server/internal/config"
	"github.com/eta-study/eta-server/internal/core"
	"github.com/eta-study/eta-server/internal/pdftext"
	"github.com/eta-study/eta-server/internal/speech"
	"github.com/eta-study/eta-server/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file (yaml, json or toml)")
	ingestPath := flag.String("ingest", "", "Ingest a PDF into a user's context and exit")
	ingestEtaID := flag.String("eta-id", "", "User to ingest into, used with -ingest")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	var generator core.Generator = core.UnavailableGenerator{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := core.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		defer gemini.Close()
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY is not set, replies and summaries will use fallbacks")
	}

	contextService := core.NewContextService(db, generator, pdftext.New(), logger)

	if *ingestPath != "" {
		if err := ingestFile(ctx, contextService, *ingestEtaID, *ingestPath, logger); err != nil {
			logger.Fatal("Ingestion failed", zap.Error(err))
		}
		return
	}

	if cfg.ElevenLabsAPIKey == "" {
		logger.Warn("ELEVENLABS_API_KEY is not set, /voice-response will fail")
	}
	tts := speech.NewElevenLabs(speech.DefaultBaseURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsModelID)

	svc := api.Services{
		Users:   core.NewUserService(db, logger),
		Context: contextService,
		Chat:    core.NewChatService(db, generator, logger),
		Study:   core.NewStudyService(db, generator, logger),
		Voice:   core.NewVoiceService(db, generator, tts, cfg.Voices(), cfg.SystemPrompt, logger),
	}

	opts := api.RouterOptions{CORSOrigins: cfg.CORSOrigins, Logger: logger}
	if cfg.AuthEnabled() {
		sessions, err := auth.NewSessions(cfg.AppSecretKey, cfg.SessionTTL)
		if err != nil {
			logger.Fatal("Failed to initialize sessions", zap.Error(err))
		}
		provider := auth.NewAuth0(cfg.Auth0Domain, cfg.Auth0ClientID, cfg.Auth0ClientSecret, cfg.Auth0CallbackURL)
		opts.Auth = auth.NewHandler(provider, sessions, cfg.FrontendURL, logger)
	} else {
		logger.Info("Auth0 is not configured, login routes are disabled")
	}

	router := api.NewRouter(api.NewAPIHandler(svc, logger), opts)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // a voice reply is two generations plus synthesis
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exiting gracefully")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "DEBUG" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func ingestFile(ctx context.Context, svc *core.ContextService, etaID, path string, logger *zap.Logger) error {
	if etaID == "" {
		return errors.New("-eta-id is required with -ingest")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	res, err := svc.Ingest(ctx, etaID, filepath.Base(path), data)
	if err != nil {
		return err
	}
	logger.Info("Ingestion complete",
		zap.String("eta_id", res.EtaID),
		zap.String("filename", res.Upload.Filename),
		zap.Int("text_length", res.TextLength),
	)
	return nil
}
