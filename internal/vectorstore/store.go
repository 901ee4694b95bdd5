// Package vectorstore provides vector storage and similarity retrieval
// over named collections.
package vectorstore

import "context"

// QueryResult is one retrieved chunk with its distance to the query.
type QueryResult struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
	Distance float64
}

// GetResult is one chunk fetched by filter rather than similarity.
type GetResult struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// CollectionInfo describes one collection in the store.
type CollectionInfo struct {
	Name     string
	Metadata map[string]interface{}
}

// Store abstracts the vector database. All operations target a named
// collection. Metadata filters use the Chroma operator syntax: a plain
// value means equality, and {"$eq": v}, {"$ne": v}, {"$in": [...]},
// {"$gte": v}, {"$lte": v} are supported where noted by the driver.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string) error

	// CreateCollection creates a collection with metadata. A collection
	// that already exists is an error.
	CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error

	// DeleteCollection removes a collection and all its contents.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns every collection in the store.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// Add inserts chunks into a collection. All slices share one length.
	// A duplicate id is an error, never a silent replacement.
	Add(ctx context.Context, collection string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error

	// Query returns up to topK chunks nearest to the embedding, ordered
	// by ascending distance. filter may be nil.
	Query(ctx context.Context, collection string, embedding []float32, topK int, filter map[string]interface{}) ([]QueryResult, error)

	// Get fetches chunks matching the metadata filter without any
	// similarity ranking. A nil filter fetches everything.
	Get(ctx context.Context, collection string, filter map[string]interface{}) ([]GetResult, error)

	// Delete removes chunks by id, by filter, or both.
	Delete(ctx context.Context, collection string, ids []string, filter map[string]interface{}) error

	// Count returns the number of chunks in a collection.
	Count(ctx context.Context, collection string) (int, error)
}
