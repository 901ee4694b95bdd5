package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// CollectionStats summarises one collection from a sample of its
// chunks.
type CollectionStats struct {
	CollectionName string            `json:"collection_name"`
	TotalDocuments int               `json:"total_documents"`
	MetadataFields []string          `json:"metadata_fields"`
	SourceTypes    []string          `json:"source_types"`
	DateRange      map[string]string `json:"date_range"`
	Timestamp      string            `json:"analysis_timestamp"`
}

// Stats inspects up to 100 chunks of a collection and reports its
// metadata shape and upload date range.
func (e *Engine) Stats(ctx context.Context, collection string) (*CollectionStats, error) {
	count, err := e.store.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	chunks, err := e.store.Get(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 100 {
		chunks = chunks[:100]
	}

	fieldSet := make(map[string]bool)
	sourceSet := make(map[string]bool)
	var uploadDates []string
	for _, c := range chunks {
		for k := range c.Metadata {
			fieldSet[k] = true
		}
		if st, ok := c.Metadata["source_type"].(string); ok {
			sourceSet[st] = true
		}
		if date, ok := c.Metadata["upload_date"].(string); ok {
			uploadDates = append(uploadDates, date)
		}
	}

	dateRange := map[string]string{}
	if len(uploadDates) > 0 {
		sort.Strings(uploadDates)
		dateRange["earliest"] = uploadDates[0]
		dateRange["latest"] = uploadDates[len(uploadDates)-1]
	}

	return &CollectionStats{
		CollectionName: collection,
		TotalDocuments: count,
		MetadataFields: sortedKeys(fieldSet),
		SourceTypes:    sortedKeys(sourceSet),
		DateRange:      dateRange,
		Timestamp:      e.now().UTC().Format(time.RFC3339),
	}, nil
}

// Suggestions proposes query completions by taking the opening words
// of the chunks nearest to the partial query.
type Suggestions struct {
	PartialQuery string   `json:"partial_query"`
	Suggestions  []string `json:"suggestions"`
	Collection   string   `json:"collection"`
	Timestamp    string   `json:"timestamp"`
}

// Suggest returns up to limit suggestions for a partial query of at
// least two characters.
func (e *Engine) Suggest(ctx context.Context, collection, partialQuery string, limit int) (*Suggestions, error) {
	if len(strings.TrimSpace(partialQuery)) < 2 {
		return nil, fmt.Errorf("%w: partial_query must be at least 2 characters", apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 5
	}

	vector, err := e.embedder.EmbedSingle(ctx, partialQuery)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.Query(ctx, collection, vector, limit*2, nil)
	if err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, limit)
	for _, hit := range hits {
		if len(suggestions) >= limit {
			break
		}
		words := strings.Fields(hit.Content)
		if len(words) > 10 {
			words = words[:10]
		}
		suggestions = append(suggestions, truncate(strings.Join(words, " "), 50))
	}

	return &Suggestions{
		PartialQuery: partialQuery,
		Suggestions:  suggestions,
		Collection:   collection,
		Timestamp:    e.now().UTC().Format(time.RFC3339),
	}, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
