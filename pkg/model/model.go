// Package model wraps the language model providers behind one narrow
// completion interface, so stars don't care which vendor serves them.
package model

import "context"

// Request is a single completion exchange. System carries the directive's
// persona and constraints, Prompt the rendered template.
type Request struct {
	System string
	Prompt string
}

// Response carries the completion text and token accounting.
type Response struct {
	Text   string
	Tokens int
}

// Client is the surface the engine needs from a language model.
// Implementations must be safe for concurrent use.
type Client interface {
	// Name identifies the provider ("anthropic", "openai", "mock").
	Name() string

	// Complete performs one request/response exchange.
	Complete(ctx context.Context, req Request) (Response, error)
}
