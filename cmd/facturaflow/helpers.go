package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/facturaflow/facturaflow/internal/config"
	"github.com/facturaflow/facturaflow/internal/llm"
	"github.com/facturaflow/facturaflow/internal/service"
	"github.com/facturaflow/facturaflow/internal/storage"
	"github.com/facturaflow/facturaflow/internal/taxonomy"
	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/facturaflow/facturaflow.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadTaxonomy reads the taxonomy file named in config. The classifier
// refuses to run without one.
func loadTaxonomy() (*taxonomy.Taxonomy, error) {
	path := viper.GetString("taxonomy.path")
	if path == "" {
		path = "$HOME/.config/facturaflow/taxonomy.json"
	}
	path = config.ExpandPath(path)

	tax, err := taxonomy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy from %s: %w", path, err)
	}
	return tax, nil
}

// createClassifier creates an AI classifier based on configuration.
// This function is shared by the commands that need model access.
func createClassifier(tax *taxonomy.Taxonomy) (service.Classifier, error) {
	provider := viper.GetString("ai.provider")
	if provider == "" {
		provider = "gemini" // default provider
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("ai.model"),
		Temperature: viper.GetFloat64("ai.temperature"),
		MaxTokens:   viper.GetInt("ai.max_tokens"),
		MaxRetries:  viper.GetInt("ai.max_retries"),
		RetryDelay:  viper.GetDuration("ai.retry_delay"),
		Timeout:     viper.GetDuration("ai.timeout"),
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	// Check viper first, then environment variable
	switch provider {
	case "gemini":
		apiKey := viper.GetString("ai.gemini_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key not found in config or GEMINI_API_KEY environment variable")
		}
		cfg.APIKey = apiKey
		if cfg.Model == "" {
			cfg.Model = "gemini-1.5-flash"
		}
	case "openai":
		apiKey := viper.GetString("ai.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		cfg.APIKey = apiKey
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", provider)
	}

	slog.Debug("Creating AI classifier", "provider", provider, "model", cfg.Model)

	return llm.NewClassifier(cfg, tax, slog.Default())
}
