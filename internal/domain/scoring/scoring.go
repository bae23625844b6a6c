// Package scoring defines the contract with the external model that turns a
// recording plus prompt into a structured evaluation, and its implementations.
package scoring

import (
	"context"

	"github.com/okian/oratora/internal/domain/model"
)

// Request is one scoring call.
type Request struct {
	Game     model.GameType
	Prompt   string
	Audio    []byte
	MIMEType string
	// Context is the structured input the prompt was rendered from.
	Context model.PromptContext
}

// Client is the scoring model. Calls are slow and may fail; the raw JSON
// body is returned undecoded so the caller owns validation.
type Client interface {
	Score(ctx context.Context, req Request) ([]byte, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) ([]byte, error)

func (f ClientFunc) Score(ctx context.Context, req Request) ([]byte, error) { return f(ctx, req) }
