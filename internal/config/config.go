package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the webhook relay service
type Config struct {
	// Server settings
	Port int

	// GitHub settings
	GitHubToken         string
	GitHubWebhookSecret string

	// Optional GitHub App credentials. When both are set, repository
	// clones use short-lived installation tokens instead of GitHubToken.
	GitHubAppID      string
	GitHubPrivateKey string

	// Claude settings
	AnthropicAPIKey string
	AnthropicModel  string
	UseBedrock      bool
	AWSAccessKeyID  string
	AWSSecretKey    string
	AWSRegion       string

	// Trigger settings
	TriggerKeyword string

	// Webhook forwarding
	ForwardURLs           []string
	CommentForwardURLs    []string
	OutgoingWebhookSecret string

	// Execution settings
	UseContainers  bool
	ContainerImage string
	ExecTimeout    time.Duration
	RepoCacheDir   string

	// Direct command API auth
	CommandAuthRequired bool
	CommandAuthToken    string

	// Test/production mode
	TestMode bool

	// Development escape hatch: skip inbound signature verification
	SkipVerification bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnvInt("PORT", 3003),
		GitHubToken:           os.Getenv("GITHUB_TOKEN"),
		GitHubWebhookSecret:   os.Getenv("GITHUB_WEBHOOK_SECRET"),
		GitHubAppID:           os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey:      normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:        os.Getenv("ANTHROPIC_MODEL"),
		UseBedrock:            os.Getenv("CLAUDE_CODE_USE_BEDROCK") == "1",
		AWSAccessKeyID:        os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:          os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:             os.Getenv("AWS_REGION"),
		TriggerKeyword:        getEnv("TRIGGER_KEYWORD", "@MCPClaude"),
		ForwardURLs:           splitURLList(os.Getenv("OUTGOING_WEBHOOK_URLS")),
		CommentForwardURLs:    splitURLList(os.Getenv("COMMENT_WEBHOOK_URLS")),
		OutgoingWebhookSecret: os.Getenv("OUTGOING_WEBHOOK_SECRET"),
		UseContainers:         os.Getenv("CLAUDE_USE_CONTAINERS") == "1",
		ContainerImage:        getEnv("CONTAINER_IMAGE", "claudecode:latest"),
		ExecTimeout:           time.Duration(getEnvInt("EXEC_TIMEOUT_SECONDS", 180)) * time.Second,
		RepoCacheDir:          getEnv("REPO_CACHE_DIR", filepath.Join(os.TempDir(), "repo-cache")),
		CommandAuthRequired:   os.Getenv("CLAUDE_API_AUTH_REQUIRED") == "1",
		CommandAuthToken:      os.Getenv("CLAUDE_API_AUTH_TOKEN"),
		TestMode:              os.Getenv("APP_ENV") == "test",
		SkipVerification:      os.Getenv("SKIP_WEBHOOK_VERIFICATION") == "1",
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present
func (c *Config) validate() error {
	if c.TestMode {
		return nil
	}
	if c.GitHubWebhookSecret == "" && !c.SkipVerification {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.SkipVerification {
		log.Printf("Warning: SKIP_WEBHOOK_VERIFICATION is set, inbound signatures will NOT be checked")
	}
	if c.GitHubToken == "" {
		log.Printf("Warning: GITHUB_TOKEN not set, command execution will run in simulated mode")
	}
	if c.GitHubAppID != "" && c.GitHubPrivateKey == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY is required when GITHUB_APP_ID is set")
	}
	if c.ExecTimeout <= 0 {
		return fmt.Errorf("EXEC_TIMEOUT_SECONDS must be greater than 0")
	}
	return nil
}

// HasAppAuth reports whether GitHub App credentials are configured
func (c *Config) HasAppAuth() bool {
	return c.GitHubAppID != "" && c.GitHubPrivateKey != ""
}

func splitURLList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	var urls []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
