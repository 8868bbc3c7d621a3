package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/evermind-ai/interview-gateway/internal/asr"
	"github.com/evermind-ai/interview-gateway/internal/config"
	"github.com/evermind-ai/interview-gateway/internal/interview"
	"github.com/evermind-ai/interview-gateway/internal/llm"
	"github.com/evermind-ai/interview-gateway/internal/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("llm_model", cfg.LLMModel).
		Bool("test_mode", cfg.TestMode()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview Gateway Service starting")

	services := &interview.Services{
		Config: cfg,
		LLM:    llm.NewOpenAIAdapter(cfg),
	}
	if cfg.TestMode() {
		logger.Warn().Msg("ASR_API_KEY not set, running in test mode with canned transcripts")
	} else {
		services.DialASR = func(ctx context.Context, sessionLogger zerolog.Logger) (asr.Recognizer, error) {
			return asr.Dial(ctx, cfg, sessionLogger)
		}
	}

	registry := interview.NewRegistry()

	// Create HTTP server
	mux := http.NewServeMux()

	// Client WebSocket handler
	mux.HandleFunc("/ws/interview", interview.HandleInterviewWS(services, registry))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - dependency probes are closures to avoid import cycles
	asrCheck := func(ctx context.Context) (bool, error) {
		if cfg.TestMode() {
			// Test mode has no upstream; report ready so deployments without
			// an ASR key still pass readiness.
			return true, nil
		}
		if _, err := url.Parse(cfg.ASRURL); err != nil {
			return false, fmt.Errorf("invalid ASR_URL: %w", err)
		}
		// No probe connection is opened; the upstream bills per session.
		return true, nil
	}

	llmCheck := func(ctx context.Context) (bool, error) {
		if cfg.LLMAPIKey == "" && cfg.LLMBaseURL == "" {
			return false, fmt.Errorf("LLM_API_KEY not configured")
		}
		return true, nil
	}

	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"asr": asrCheck,
		"llm": llmCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. Read/write timeouts do not apply to
	// hijacked WebSocket connections, only to the plain HTTP endpoints.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/interview", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
