package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

// mapEmbedder returns preassigned vectors per text and a unit fallback
// for anything else.
type mapEmbedder struct {
	vectors map[string][]float32
}

func (m *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (m *mapEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mapEmbedder) Model() string  { return "map" }
func (m *mapEmbedder) Dimension() int { return 3 }

// newTestEngine seeds three documents with controlled geometry: doc a
// points along x, doc b halfway between x and y, doc c along y.
func newTestEngine(t *testing.T) (*Engine, *vectorstore.MemoryStore) {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs"))

	err := store.Add(ctx, "docs",
		[]string{"a_chunk_0", "b_chunk_0", "c_chunk_0"},
		[]string{"go concurrency patterns", "channels and goroutines", "cooking with garlic"},
		[][]float32{{1, 0, 0}, {0.7, 0.7, 0}, {0, 1, 0}},
		[]map[string]interface{}{
			{"doc_id": "a", "chunk_index": 0, "title": "go", "source": "blog", "upload_date": "2024-01-01T00:00:00Z"},
			{"doc_id": "b", "chunk_index": 0, "title": "chan", "source": "blog", "upload_date": "2024-06-01T00:00:00Z"},
			{"doc_id": "c", "chunk_index": 0, "title": "food", "source": "wiki", "upload_date": "2025-01-01T00:00:00Z"},
		},
	)
	require.NoError(t, err)

	embedder := &mapEmbedder{vectors: map[string][]float32{
		"go concurrency patterns": {1, 0, 0},
		"channels and goroutines": {0.7, 0.7, 0},
		"cooking with garlic":     {0, 1, 0},
		"how do goroutines work":  {1, 0, 0},
		"recipes":                 {0, 1, 0},
	}}
	engine := NewEngine(store, embedder, zerolog.Nop())
	engine.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return engine, store
}

func TestSemanticOrdersByDistance(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Semantic(context.Background(), "docs", "how do goroutines work", 3, nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "go concurrency patterns", resp.Results[0].Content)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 3, resp.TotalResults)
	assert.Equal(t, "2025-06-01T12:00:00Z", resp.Timestamp)

	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, *resp.Results[i-1].Distance, *resp.Results[i].Distance)
		assert.GreaterOrEqual(t, resp.Results[i-1].SimilarityScore, resp.Results[i].SimilarityScore)
	}
	for _, r := range resp.Results {
		expected := 1 - *r.Distance
		if expected < 0 {
			expected = 0
		}
		assert.InDelta(t, expected, r.SimilarityScore, 1e-9)
	}
}

func TestSemanticWithFilter(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Semantic(context.Background(), "docs", "how do goroutines work", 5,
		map[string]interface{}{"source": "wiki"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "cooking with garlic", resp.Results[0].Content)
}

func TestSemanticEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Semantic(context.Background(), "docs", "  ", 5, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSemanticMissingCollection(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Semantic(context.Background(), "missing", "anything", 5, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdvancedSimilarityThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Advanced(context.Background(), "docs", "how do goroutines work", 5, AdvancedParams{
		SimilarityThreshold: 0.9,
		IncludeMetadata:     true,
		IncludeDistances:    true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "go concurrency patterns", resp.Results[0].Content)
	assert.NotNil(t, resp.Results[0].Distance)
	assert.NotNil(t, resp.Results[0].Metadata)
}

func TestAdvancedDateRangeInclusive(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Advanced(context.Background(), "docs", "how do goroutines work", 5, AdvancedParams{
		DateRange:        &DateRange{Start: "2024-01-01", End: "2024-06-01T00:00:00Z"},
		IncludeMetadata:  true,
		IncludeDistances: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	// Both boundary dates are kept, the 2025 document is not.
	for _, r := range resp.Results {
		assert.NotEqual(t, "food", r.Metadata["title"])
	}
}

func TestAdvancedIncludeFlagsOff(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Advanced(context.Background(), "docs", "how do goroutines work", 2, AdvancedParams{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Nil(t, resp.Results[0].Distance)
	assert.Nil(t, resp.Results[0].Metadata)
}

func TestAdvancedBadDateRange(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Advanced(context.Background(), "docs", "q", 5, AdvancedParams{
		DateRange: &DateRange{Start: "not-a-date", End: "2024-06-01"},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestMultiQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.MultiQuery(context.Background(), "docs",
		[]string{"how do goroutines work", "recipes"}, 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, 0, resp.Results[0].QueryIndex)
	require.Len(t, resp.Results[0].Results, 1)
	assert.Equal(t, "go concurrency patterns", resp.Results[0].Results[0].Content)

	assert.Equal(t, 1, resp.Results[1].QueryIndex)
	require.Len(t, resp.Results[1].Results, 1)
	assert.Equal(t, "cooking with garlic", resp.Results[1].Results[0].Content)
	assert.Equal(t, 2, resp.TotalQueries)
}

func TestMultiQueryEmpty(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.MultiQuery(context.Background(), "docs", nil, 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSimilarExcludesOwnDocument(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Similar(context.Background(), "docs", "a", 2, false)
	require.NoError(t, err)
	assert.Equal(t, "a", resp.TargetDocID)
	assert.Equal(t, "go concurrency patterns", resp.TargetContent)
	require.NotEmpty(t, resp.Similar)
	for _, doc := range resp.Similar {
		assert.NotEqual(t, "a", doc.DocID)
	}
	assert.Equal(t, "b", resp.Similar[0].DocID)
}

func TestSimilarExcludeSameSource(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Similar(context.Background(), "docs", "a", 5, true)
	require.NoError(t, err)
	// Docs a and b share the blog source, so only the wiki doc remains.
	require.Len(t, resp.Similar, 1)
	assert.Equal(t, "c", resp.Similar[0].DocID)
}

func TestSimilarNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Similar(context.Background(), "docs", "missing", 5, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSimilarUsesLowestChunkIndex(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	// Insert chunk 1 before chunk 0 to prove ordering is by index, not
	// insertion.
	err := store.Add(ctx, "docs",
		[]string{"d_chunk_1", "d_chunk_0"},
		[]string{"second part", "first part"},
		[][]float32{{0, 0, 1}, {0, 0, 1}},
		[]map[string]interface{}{
			{"doc_id": "d", "chunk_index": 1},
			{"doc_id": "d", "chunk_index": 0},
		},
	)
	require.NoError(t, err)

	resp, err := engine.Similar(ctx, "docs", "d", 5, false)
	require.NoError(t, err)
	assert.Equal(t, "first part", resp.TargetContent)
}

func TestHybridFullSemanticWeightMatchesSemantic(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	hybrid, err := engine.Hybrid(ctx, "docs", "how do goroutines work", []string{"garlic"}, 3, 1.0)
	require.NoError(t, err)
	semantic, err := engine.Semantic(ctx, "docs", "how do goroutines work", 3, nil)
	require.NoError(t, err)

	require.Len(t, hybrid.Results, len(semantic.Results))
	for i := range hybrid.Results {
		assert.Equal(t, semantic.Results[i].Content, hybrid.Results[i].Content)
	}
}

func TestHybridFullKeywordWeight(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Hybrid(context.Background(), "docs", "how do goroutines work",
		[]string{"garlic"}, 3, 0.0)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "cooking with garlic", resp.Results[0].Content)
	assert.Equal(t, 1.0, resp.Results[0].KeywordScore)
	assert.Equal(t, 1.0, resp.Results[0].CombinedScore)
}

func TestHybridKeywordScoreFraction(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Hybrid(context.Background(), "docs", "how do goroutines work",
		[]string{"GOROUTINES", "garlic"}, 3, 0.0)
	require.NoError(t, err)
	for _, r := range resp.Results {
		if r.Content == "channels and goroutines" {
			assert.InDelta(t, 0.5, r.KeywordScore, 1e-9)
		}
	}
}

func TestHybridInvalidWeight(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Hybrid(context.Background(), "docs", "q", nil, 5, 1.5)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRerankOrdersByDotProduct(t *testing.T) {
	engine, _ := newTestEngine(t)
	resp, err := engine.Rerank(context.Background(), "docs", "how do goroutines work",
		[]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "a", resp.Results[0].DocID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].SimilarityScore, resp.Results[i].SimilarityScore)
	}
	for _, r := range resp.Results {
		assert.InDelta(t, 1-r.Distance, r.SimilarityScore, 1e-6)
	}
}

func TestRerankNoMatches(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Rerank(context.Background(), "docs", "q", []string{"nope"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRerankEmptyIDs(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Rerank(context.Background(), "docs", "q", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	engine, _ := newTestEngine(t)
	stats, err := engine.Stats(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", stats.CollectionName)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Contains(t, stats.MetadataFields, "doc_id")
	assert.Contains(t, stats.MetadataFields, "upload_date")
	assert.Equal(t, "2024-01-01T00:00:00Z", stats.DateRange["earliest"])
	assert.Equal(t, "2025-01-01T00:00:00Z", stats.DateRange["latest"])
}

func TestSuggest(t *testing.T) {
	engine, _ := newTestEngine(t)
	sugg, err := engine.Suggest(context.Background(), "docs", "goroutine", 2)
	require.NoError(t, err)
	assert.Equal(t, "goroutine", sugg.PartialQuery)
	assert.LessOrEqual(t, len(sugg.Suggestions), 2)
	assert.NotEmpty(t, sugg.Suggestions)
}

func TestSuggestTooShort(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Suggest(context.Background(), "docs", "g", 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSuggestTruncatesLongOpenings(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs"))
	// Multibyte content checks that truncation never splits a rune.
	long := fmt.Sprintf("%s wörd wörd wörd wörd wörd wörd wörd wörd wörd",
		strings.Repeat("ü", 48))
	require.NoError(t, store.Add(ctx, "docs",
		[]string{"x_chunk_0"}, []string{long},
		[][]float32{{1, 0, 0}},
		[]map[string]interface{}{{"doc_id": "x", "chunk_index": 0}},
	))

	engine := NewEngine(store, &mapEmbedder{}, zerolog.Nop())
	sugg, err := engine.Suggest(ctx, "docs", "anything", 1)
	require.NoError(t, err)
	require.Len(t, sugg.Suggestions, 1)
	assert.True(t, utf8.ValidString(sugg.Suggestions[0]))
	assert.LessOrEqual(t, len([]rune(sugg.Suggestions[0])), 53)
	assert.Contains(t, sugg.Suggestions[0], "...")
}
