package models

import "context"

// AIProvider is the capability interface for the language-model backend.
// Callers inject this interface rather than a concrete backend so the
// fallback path is testable without a live service.
type AIProvider interface {
	// Infer submits a rendered prompt and returns the backend's raw text.
	// The adapter owns all parsing and validation of the response.
	Infer(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
	// Name returns the provider identifier (e.g. "ollama", "anthropic").
	Name() string
}

// InferenceRequest is the input to a single backend call.
type InferenceRequest struct {
	Prompt    string
	MaxTokens int
}

// InferenceResponse is the raw output of a backend call.
type InferenceResponse struct {
	Text  string
	Model string
}
