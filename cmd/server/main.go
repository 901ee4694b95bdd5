package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sidharthpunathil/chatbot-poc/internal/chat"
	"github.com/sidharthpunathil/chatbot-poc/internal/config"
	"github.com/sidharthpunathil/chatbot-poc/internal/document"
	"github.com/sidharthpunathil/chatbot-poc/internal/embedding"
	"github.com/sidharthpunathil/chatbot-poc/internal/llm"
	"github.com/sidharthpunathil/chatbot-poc/internal/search"
	"github.com/sidharthpunathil/chatbot-poc/internal/server"
	"github.com/sidharthpunathil/chatbot-poc/internal/session"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.Debug)

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vector store")
	}

	embedder := embedding.NewOpenAIProvider(
		newOpenAIClient(cfg.Embedding.APIKeyEnv, cfg.Embedding.BaseURL, cfg.Embedding.Timeout),
		cfg.Embedding.Model,
		cfg.Embedding.FallbackModels,
		logger,
	)

	completer := llm.NewClient(
		newOpenAIClient(cfg.LLM.APIKeyEnv, cfg.LLM.BaseURL, cfg.LLM.Timeout),
		llm.Config{
			Model:        cfg.LLM.Model,
			SystemPrompt: cfg.LLM.SystemPrompt,
			MaxTokens:    cfg.LLM.MaxTokens,
			Temperature:  cfg.LLM.Temperature,
			TopP:         cfg.LLM.TopP,
		},
		logger,
	)

	sessions := session.NewMemoryStore()
	documents := document.NewService(store, embedder, cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, logger)
	engine := search.NewEngine(store, embedder, logger)
	chatSvc := chat.NewService(store, embedder, completer, sessions, cfg.Search.NResults, logger)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	api := server.New(documents, engine, chatSvc, sessions, store, embedder, server.Options{
		DefaultCollection: cfg.Search.DefaultCollection,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	var logger zerolog.Logger
	if debug {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newStore(cfg *config.Config, logger zerolog.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Driver {
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return vectorstore.NewChromaStore(cfg.VectorStore.URL, logger)
	}
}

func newOpenAIClient(apiKeyEnv, baseURL string, timeout time.Duration) *openai.Client {
	clientCfg := openai.DefaultConfig(os.Getenv(apiKeyEnv))
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg)
}
