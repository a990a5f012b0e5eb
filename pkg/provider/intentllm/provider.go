// Package intentllm defines the Provider interface for the LLM backends that
// turn free-form utterances into structured intent JSON.
//
// A backend wraps either a cloud OpenAI-compatible endpoint (vLLM, OpenAI) or
// a local llama.cpp server and exposes a uniform single-shot completion call.
// The parser owns prompt construction, JSON extraction and validation;
// backends only move text.
//
// Implementors must be safe for concurrent use and must respect context
// cancellation and deadlines.
package intentllm

import "context"

// Request carries one intent-parsing completion.
type Request struct {
	// SystemPrompt is the instruction block describing the intent schema.
	SystemPrompt string

	// UserPrompt is the utterance (plus any conversation context) to parse.
	UserPrompt string
}

// Provider is a single-shot text completion backend.
type Provider interface {
	// Name identifies the backend in logs, metrics and breaker state.
	Name() string

	// Complete returns the raw model output for the request. The output is
	// expected to contain a JSON object but backends do not enforce that.
	Complete(ctx context.Context, req Request) (string, error)
}
