package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/relaybot/claude-webhook/internal/api"
	"github.com/relaybot/claude-webhook/internal/config"
	"github.com/relaybot/claude-webhook/internal/executor"
	"github.com/relaybot/claude-webhook/internal/forward"
	"github.com/relaybot/claude-webhook/internal/github"
	"github.com/relaybot/claude-webhook/internal/webhook"
)

var (
	loadDotEnv         = godotenv.Load
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting Claude webhook relay...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Trigger keyword: %s", cfg.TriggerKeyword)
	log.Printf("Forward targets: %d global, %d comment-scoped", len(cfg.ForwardURLs), len(cfg.CommentForwardURLs))
	log.Printf("Containers enabled: %v (image: %s)", cfg.UseContainers, cfg.ContainerImage)
	if cfg.TestMode {
		log.Printf("Running in TEST MODE: execution and publishing are simulated")
	}

	// Clone credentials: installation tokens when App auth is configured
	var tokenSource github.TokenSource = github.StaticToken(cfg.GitHubToken)
	if cfg.HasAppAuth() {
		log.Printf("GitHub App auth configured (App ID: %s)", cfg.GitHubAppID)
		tokenSource = &github.AppAuth{AppID: cfg.GitHubAppID, PrivateKey: cfg.GitHubPrivateKey}
	}

	runner := executor.New(executor.Options{
		Token:             cfg.GitHubToken,
		TokenSource:       tokenSource,
		AppAuth:           cfg.HasAppAuth(),
		TestMode:          cfg.TestMode,
		ContainersEnabled: cfg.UseContainers,
		ContainerImage:    cfg.ContainerImage,
		Timeout:           cfg.ExecTimeout,
		CacheDir:          cfg.RepoCacheDir,
		AnthropicAPIKey:   cfg.AnthropicAPIKey,
		Model:             cfg.AnthropicModel,
		UseBedrock:        cfg.UseBedrock,
		AWSAccessKeyID:    cfg.AWSAccessKeyID,
		AWSSecretKey:      cfg.AWSSecretKey,
		AWSRegion:         cfg.AWSRegion,
	})

	publisher := github.NewClient(cfg.GitHubToken, cfg.TestMode)
	forwarder := forward.New(cfg.OutgoingWebhookSecret)

	webhookHandler := webhook.NewHandler(webhook.Options{
		Secret:                cfg.GitHubWebhookSecret,
		TriggerKeyword:        cfg.TriggerKeyword,
		SkipVerification:      cfg.SkipVerification,
		UseContainers:         cfg.UseContainers,
		ForwardTargets:        forward.Targets(cfg.ForwardURLs),
		CommentForwardTargets: forward.Targets(cfg.CommentForwardURLs),
		Forwarder:             forwarder,
		Runner:                runner,
		Publisher:             publisher,
	})

	apiHandler := api.NewHandler(runner, cfg.CommandAuthRequired, cfg.CommandAuthToken, cfg.ContainerImage)

	r := mux.NewRouter()
	r.Use(requestLogging)

	r.HandleFunc("/api/webhooks/github", webhookHandler.Handle).Methods("POST")
	r.HandleFunc("/api/claude", apiHandler.HandleCommand).Methods("POST")
	r.HandleFunc("/api/claude/test-container", apiHandler.HandleTestContainer).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoint: http://localhost%s/api/webhooks/github", addr)
	log.Printf("Health check: http://localhost%s/health", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// requestLogging logs method, path, status and duration for every request
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
