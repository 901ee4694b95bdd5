// Package search implements retrieval over the vector store: semantic
// search and its filtered, multi-query, hybrid and reranked variants.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
	"github.com/sidharthpunathil/chatbot-poc/internal/embedding"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

// Engine runs searches against a vector store using an embedding
// provider for query vectors.
type Engine struct {
	store    vectorstore.Store
	embedder embedding.Provider
	logger   zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine wires a search engine from its dependencies.
func NewEngine(store vectorstore.Store, embedder embedding.Provider, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		logger:   logger.With().Str("component", "search").Logger(),
		now:      time.Now,
	}
}

// Result is one ranked hit.
type Result struct {
	Rank            int                    `json:"rank"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	SimilarityScore float64                `json:"similarity_score"`
	Distance        *float64               `json:"distance,omitempty"`
}

// Response is the envelope for single-query searches.
type Response struct {
	Query          string                 `json:"query"`
	Collection     string                 `json:"collection"`
	FiltersApplied map[string]interface{} `json:"filters_applied,omitempty"`
	Results        []Result               `json:"results"`
	TotalResults   int                    `json:"total_results"`
	Timestamp      string                 `json:"search_timestamp"`
}

// similarityScore converts a distance to a score clamped at zero.
func similarityScore(distance float64) float64 {
	if s := 1 - distance; s > 0 {
		return s
	}
	return 0
}

// Semantic runs a plain similarity search with an optional metadata
// filter.
func (e *Engine) Semantic(ctx context.Context, collection, query string, topK int, filter map[string]interface{}) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	vector, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.Query(ctx, collection, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for i, hit := range hits {
		d := hit.Distance
		results = append(results, Result{
			Rank:            i + 1,
			Content:         hit.Content,
			Metadata:        hit.Metadata,
			SimilarityScore: similarityScore(d),
			Distance:        &d,
		})
	}

	return &Response{
		Query:        query,
		Collection:   collection,
		Results:      results,
		TotalResults: len(results),
		Timestamp:    e.now().UTC().Format(time.RFC3339),
	}, nil
}

// DateRange bounds results by their upload_date metadata, inclusive on
// both ends. Both fields must be set for the filter to apply.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AdvancedParams are the knobs of the advanced search.
type AdvancedParams struct {
	Filter              map[string]interface{}
	SimilarityThreshold float64
	DateRange           *DateRange
	IncludeMetadata     bool
	IncludeDistances    bool
}

// Advanced runs semantic search with post-filters. It over-fetches up
// to twice topK (capped at 50), drops hits below the similarity
// threshold or outside the date range, and truncates to topK.
func (e *Engine) Advanced(ctx context.Context, collection, query string, topK int, params AdvancedParams) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	var startDate, endDate time.Time
	applyDates := false
	if params.DateRange != nil && params.DateRange.Start != "" && params.DateRange.End != "" {
		var err error
		startDate, err = parseDate(params.DateRange.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date range start: %v", apperr.ErrInvalidInput, err)
		}
		endDate, err = parseDate(params.DateRange.End)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date range end: %v", apperr.ErrInvalidInput, err)
		}
		applyDates = true
	}

	vector, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	fetch := topK * 2
	if fetch > 50 {
		fetch = 50
	}
	hits, err := e.store.Query(ctx, collection, vector, fetch, params.Filter)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, hit := range hits {
		if applyDates && !withinDateRange(hit.Metadata, startDate, endDate) {
			continue
		}
		score := similarityScore(hit.Distance)
		if score < params.SimilarityThreshold {
			continue
		}
		r := Result{
			Rank:            len(results) + 1,
			Content:         hit.Content,
			SimilarityScore: score,
		}
		if params.IncludeDistances {
			d := hit.Distance
			r.Distance = &d
		}
		if params.IncludeMetadata {
			r.Metadata = hit.Metadata
		}
		results = append(results, r)
		if len(results) >= topK {
			break
		}
	}

	filtersApplied := map[string]interface{}{
		"metadata_filters":     params.Filter,
		"similarity_threshold": params.SimilarityThreshold,
		"date_range":           params.DateRange,
	}

	return &Response{
		Query:          query,
		Collection:     collection,
		FiltersApplied: filtersApplied,
		Results:        results,
		TotalResults:   len(results),
		Timestamp:      e.now().UTC().Format(time.RFC3339),
	}, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func withinDateRange(metadata map[string]interface{}, start, end time.Time) bool {
	raw, _ := metadata["upload_date"].(string)
	if raw == "" {
		return false
	}
	uploaded, err := parseDate(raw)
	if err != nil {
		return false
	}
	return !uploaded.Before(start) && !uploaded.After(end)
}

// PerQueryResults are the hits for one query of a multi-query search.
type PerQueryResults struct {
	Query       string   `json:"query"`
	QueryIndex  int      `json:"query_index"`
	Results     []Result `json:"results"`
	ResultCount int      `json:"result_count"`
}

// MultiResponse is the envelope for multi-query searches.
type MultiResponse struct {
	Queries      []string          `json:"queries"`
	Collection   string            `json:"collection"`
	Results      []PerQueryResults `json:"results"`
	TotalQueries int               `json:"total_queries"`
	Timestamp    string            `json:"search_timestamp"`
}

// MultiQuery embeds all queries in one batch and runs an independent
// search per query.
func (e *Engine) MultiQuery(ctx context.Context, collection string, queries []string, topK int) (*MultiResponse, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: queries cannot be empty", apperr.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	vectors, err := e.embedder.Embed(ctx, queries)
	if err != nil {
		return nil, err
	}

	all := make([]PerQueryResults, 0, len(queries))
	for i, query := range queries {
		hits, err := e.store.Query(ctx, collection, vectors[i], topK, nil)
		if err != nil {
			return nil, err
		}
		results := make([]Result, 0, len(hits))
		for j, hit := range hits {
			d := hit.Distance
			results = append(results, Result{
				Rank:            j + 1,
				Content:         hit.Content,
				Metadata:        hit.Metadata,
				SimilarityScore: similarityScore(d),
				Distance:        &d,
			})
		}
		all = append(all, PerQueryResults{
			Query:       query,
			QueryIndex:  i,
			Results:     results,
			ResultCount: len(results),
		})
	}

	return &MultiResponse{
		Queries:      queries,
		Collection:   collection,
		Results:      all,
		TotalQueries: len(queries),
		Timestamp:    e.now().UTC().Format(time.RFC3339),
	}, nil
}

// SimilarDocument is one hit of a similar-documents search.
type SimilarDocument struct {
	Rank            int                    `json:"rank"`
	DocID           string                 `json:"doc_id"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
	SimilarityScore float64                `json:"similarity_score"`
	Distance        float64                `json:"distance"`
}

// SimilarResponse is the envelope for similar-documents searches.
type SimilarResponse struct {
	TargetDocID   string            `json:"target_doc_id"`
	TargetContent string            `json:"target_content"`
	Collection    string            `json:"collection"`
	Similar       []SimilarDocument `json:"similar_documents"`
	TotalFound    int               `json:"total_found"`
	Timestamp     string            `json:"search_timestamp"`
}

// Similar finds chunks similar to a document's first chunk. Chunks of
// the target document itself never appear in the results.
func (e *Engine) Similar(ctx context.Context, collection, docID string, topK int, excludeSameSource bool) (*SimilarResponse, error) {
	if topK <= 0 {
		topK = 5
	}

	target, err := e.store.Get(ctx, collection, map[string]interface{}{"doc_id": docID})
	if err != nil {
		return nil, err
	}
	if len(target) == 0 {
		return nil, fmt.Errorf("%w: document %q not found", apperr.ErrNotFound, docID)
	}
	first := target[0]
	for _, c := range target[1:] {
		if chunkIndex(c.Metadata) < chunkIndex(first.Metadata) {
			first = c
		}
	}

	vector, err := e.embedder.EmbedSingle(ctx, first.Content)
	if err != nil {
		return nil, err
	}

	var filter map[string]interface{}
	if excludeSameSource {
		if source, _ := first.Metadata["source"].(string); source != "" {
			filter = map[string]interface{}{"source": map[string]interface{}{"$ne": source}}
		}
	}

	hits, err := e.store.Query(ctx, collection, vector, topK+1, filter)
	if err != nil {
		return nil, err
	}

	var similar []SimilarDocument
	for _, hit := range hits {
		hitDocID, _ := hit.Metadata["doc_id"].(string)
		if hitDocID == docID {
			continue
		}
		if hitDocID == "" {
			hitDocID = "unknown"
		}
		similar = append(similar, SimilarDocument{
			Rank:            len(similar) + 1,
			DocID:           hitDocID,
			Content:         hit.Content,
			Metadata:        hit.Metadata,
			SimilarityScore: similarityScore(hit.Distance),
			Distance:        hit.Distance,
		})
		if len(similar) >= topK {
			break
		}
	}

	return &SimilarResponse{
		TargetDocID:   docID,
		TargetContent: truncate(first.Content, 200),
		Collection:    collection,
		Similar:       similar,
		TotalFound:    len(similar),
		Timestamp:     e.now().UTC().Format(time.RFC3339),
	}, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// HybridResult is one hit of a hybrid search with its component
// scores.
type HybridResult struct {
	Rank          int                    `json:"rank"`
	Content       string                 `json:"content"`
	Metadata      map[string]interface{} `json:"metadata"`
	SemanticScore float64                `json:"semantic_score"`
	KeywordScore  float64                `json:"keyword_score"`
	CombinedScore float64                `json:"combined_score"`
	Distance      float64                `json:"distance"`
}

// HybridResponse is the envelope for hybrid searches.
type HybridResponse struct {
	Query          string         `json:"query"`
	Keywords       []string       `json:"keywords"`
	Collection     string         `json:"collection"`
	SemanticWeight float64        `json:"semantic_weight"`
	Results        []HybridResult `json:"results"`
	TotalResults   int            `json:"total_results"`
	Timestamp      string         `json:"search_timestamp"`
}

// Hybrid blends semantic similarity with keyword matching. Each hit's
// combined score is weight*semantic + (1-weight)*keyword, where the
// keyword score is the fraction of keywords found in the content.
func (e *Engine) Hybrid(ctx context.Context, collection, query string, keywords []string, topK int, semanticWeight float64) (*HybridResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}
	if semanticWeight < 0 || semanticWeight > 1 {
		return nil, fmt.Errorf("%w: semantic_weight must be between 0 and 1", apperr.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	vector, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	fetch := topK * 3
	if fetch > 50 {
		fetch = 50
	}
	hits, err := e.store.Query(ctx, collection, vector, fetch, nil)
	if err != nil {
		return nil, err
	}

	results := make([]HybridResult, 0, len(hits))
	for _, hit := range hits {
		semantic := similarityScore(hit.Distance)
		keyword := keywordScore(hit.Content, keywords)
		results = append(results, HybridResult{
			Content:       hit.Content,
			Metadata:      hit.Metadata,
			SemanticScore: semantic,
			KeywordScore:  keyword,
			CombinedScore: semantic*semanticWeight + keyword*(1-semanticWeight),
			Distance:      hit.Distance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].CombinedScore > results[j].CombinedScore })
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return &HybridResponse{
		Query:          query,
		Keywords:       keywords,
		Collection:     collection,
		SemanticWeight: semanticWeight,
		Results:        results,
		TotalResults:   len(results),
		Timestamp:      e.now().UTC().Format(time.RFC3339),
	}, nil
}

// keywordScore is the fraction of keywords appearing in the text,
// case insensitive.
func keywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// RerankedResult is one chunk scored directly against the query.
type RerankedResult struct {
	Rank            int                    `json:"rank"`
	DocID           string                 `json:"doc_id"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
	SimilarityScore float64                `json:"similarity_score"`
	Distance        float64                `json:"distance"`
}

// RerankResponse is the envelope for rerank requests.
type RerankResponse struct {
	Query          string           `json:"query"`
	Collection     string           `json:"collection"`
	OriginalDocIDs []string         `json:"original_doc_ids"`
	Results        []RerankedResult `json:"reranked_results"`
	TotalResults   int              `json:"total_results"`
	Timestamp      string           `json:"search_timestamp"`
}

// Rerank fetches the chunks of the given documents and orders them by
// fresh embedding similarity to the query, computed as a dot product.
func (e *Engine) Rerank(ctx context.Context, collection, query string, docIDs []string) (*RerankResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}
	if len(docIDs) == 0 {
		return nil, fmt.Errorf("%w: document_ids cannot be empty", apperr.ErrInvalidInput)
	}

	chunks, err := e.store.Get(ctx, collection, map[string]interface{}{
		"doc_id": map[string]interface{}{"$in": toInterfaceSlice(docIDs)},
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no documents found with the provided ids", apperr.ErrNotFound)
	}

	queryVector, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]RerankedResult, 0, len(chunks))
	for _, c := range chunks {
		chunkVector, err := e.embedder.EmbedSingle(ctx, c.Content)
		if err != nil {
			return nil, err
		}
		similarity := dot(queryVector, chunkVector)
		distance := 1 - similarity
		docID, _ := c.Metadata["doc_id"].(string)
		results = append(results, RerankedResult{
			DocID:           docID,
			Content:         c.Content,
			Metadata:        c.Metadata,
			SimilarityScore: similarityScore(distance),
			Distance:        distance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].SimilarityScore > results[j].SimilarityScore })
	for i := range results {
		results[i].Rank = i + 1
	}

	return &RerankResponse{
		Query:          query,
		Collection:     collection,
		OriginalDocIDs: docIDs,
		Results:        results,
		TotalResults:   len(results),
		Timestamp:      e.now().UTC().Format(time.RFC3339),
	}, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func toInterfaceSlice(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func chunkIndex(md map[string]interface{}) int {
	switch v := md["chunk_index"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
