package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// OpenAIProvider embeds text through any OpenAI-compatible embeddings
// API. Model selection happens lazily on first use: the primary model
// is probed with a single-text request and, on failure, each fallback
// model is tried in order. The provider is safe for concurrent use once
// constructed; initialization runs exactly once.
type OpenAIProvider struct {
	client     *openai.Client
	candidates []string

	once      sync.Once
	initErr   error
	model     string
	dimension int

	logger zerolog.Logger
}

// NewOpenAIProvider creates a provider that will try primary first and
// then each fallback model in order.
func NewOpenAIProvider(client *openai.Client, primary string, fallbacks []string, logger zerolog.Logger) *OpenAIProvider {
	candidates := append([]string{primary}, fallbacks...)
	return &OpenAIProvider{
		client:     client,
		candidates: candidates,
		logger:     logger.With().Str("component", "embedding").Logger(),
	}
}

// init probes each candidate model until one answers. All candidates
// failing is fatal for every embedding-dependent request.
func (p *OpenAIProvider) init(ctx context.Context) {
	var lastErr error
	for _, model := range p.candidates {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{"ping"},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			p.logger.Warn().Str("model", model).Err(err).Msg("embedding model unavailable, trying next")
			lastErr = err
			continue
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			lastErr = fmt.Errorf("model %s returned an empty embedding", model)
			continue
		}
		p.model = model
		p.dimension = len(resp.Data[0].Embedding)
		p.logger.Info().Str("model", model).Int("dimension", p.dimension).Msg("embedding model loaded")
		return
	}
	p.initErr = fmt.Errorf("%w: no embedding model could be loaded (tried %v): %v", apperr.ErrProvider, p.candidates, lastErr)
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	p.once.Do(func() { p.init(ctx) })
	if p.initErr != nil {
		return nil, p.initErr
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings request failed: %v", apperr.ErrProvider, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrProvider, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", apperr.ErrProvider, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedSingle implements Provider.
func (p *OpenAIProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }

// Dimension implements Provider.
func (p *OpenAIProvider) Dimension() int { return p.dimension }
