package llm

import (
	"context"
	"time"
)

// Client defines the interface for AI model providers. Implementations
// return the model's raw response text; parsing and validation happen in
// the Classifier so every provider shares the same defensive path.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the AI classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}
