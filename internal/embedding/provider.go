// Package embedding maps text to fixed-length vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import "context"

// Provider generates one vector per input text, preserving input order.
type Provider interface {
	// Embed returns one embedding per text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle returns the embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Model reports the model actually serving embeddings.
	Model() string

	// Dimension reports the vector length, 0 until the first embed.
	Dimension() int
}
