// Package llm provides AI model clients for line item classification.
// It supports Gemini and OpenAI providers, with retry logic, per-attempt
// timeouts, and taxonomy validation of every model response.
package llm
