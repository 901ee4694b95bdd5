package vectorstore

import (
	"context"
	"fmt"
	"strings"

	chromago "github.com/amikos-tech/chroma-go"
	"github.com/amikos-tech/chroma-go/collection"
	"github.com/amikos-tech/chroma-go/types"
	"github.com/rs/zerolog"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// ChromaStore implements Store on a ChromaDB server. Embeddings are
// always supplied by the caller, never computed server side.
type ChromaStore struct {
	client *chromago.Client
	logger zerolog.Logger
}

var _ Store = (*ChromaStore)(nil)

// NewChromaStore connects to a ChromaDB server at the given base URL.
func NewChromaStore(url string, logger zerolog.Logger) (*ChromaStore, error) {
	client, err := chromago.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &ChromaStore{
		client: client,
		logger: logger.With().Str("component", "vectorstore").Logger(),
	}, nil
}

// EnsureCollection implements Store.
func (s *ChromaStore) EnsureCollection(ctx context.Context, name string) error {
	_, err := s.client.NewCollection(
		ctx,
		collection.WithName(name),
		collection.WithHNSWDistanceFunction(types.L2),
		collection.WithCreateIfNotExist(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create or get collection %q: %w", name, err)
	}
	return nil
}

// CreateCollection implements Store.
func (s *ChromaStore) CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	_, err := s.client.CreateCollection(ctx, name, metadata, false, nil, types.L2)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return fmt.Errorf("%w: collection %q already exists", apperr.ErrInvalidInput, name)
		}
		return fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	s.logger.Info().Str("collection", name).Msg("collection created")
	return nil
}

// DeleteCollection implements Store.
func (s *ChromaStore) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.client.DeleteCollection(ctx, name)
	if err != nil {
		return asNotFound(fmt.Errorf("failed to delete collection %q: %w", name, err))
	}
	s.logger.Info().Str("collection", name).Msg("collection deleted")
	return nil
}

// ListCollections implements Store.
func (s *ChromaStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	cols, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	infos := make([]CollectionInfo, 0, len(cols))
	for _, col := range cols {
		infos = append(infos, CollectionInfo{Name: col.Name, Metadata: col.Metadata})
	}
	return infos, nil
}

// Add implements Store.
func (s *ChromaStore) Add(ctx context.Context, collectionName string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error {
	col, err := s.getCollection(ctx, collectionName)
	if err != nil {
		return err
	}

	chromaEmbeddings := make([]*types.Embedding, len(embeddings))
	for i, e := range embeddings {
		chromaEmbeddings[i] = types.NewEmbeddingFromFloat32(e)
	}

	if _, err := col.Add(ctx, chromaEmbeddings, metadatas, documents, ids); err != nil {
		return fmt.Errorf("failed to add documents to %q: %w", collectionName, err)
	}
	s.logger.Debug().Str("collection", collectionName).Int("count", len(ids)).Msg("chunks added")
	return nil
}

// Query implements Store.
func (s *ChromaStore) Query(ctx context.Context, collectionName string, embedding []float32, topK int, filter map[string]interface{}) ([]QueryResult, error) {
	col, err := s.getCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	opts := []types.CollectionQueryOption{
		types.WithQueryEmbeddings([]*types.Embedding{types.NewEmbeddingFromFloat32(embedding)}),
		types.WithNResults(int32(topK)),
	}
	if len(filter) > 0 {
		opts = append(opts, types.WithWhereMap(filter))
	}

	results, err := col.QueryWithOptions(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", collectionName, err)
	}

	var out []QueryResult
	if len(results.Ids) > 0 {
		for i := range results.Ids[0] {
			qr := QueryResult{ID: results.Ids[0][i]}
			if len(results.Documents) > 0 && i < len(results.Documents[0]) {
				qr.Content = results.Documents[0][i]
			}
			if len(results.Metadatas) > 0 && i < len(results.Metadatas[0]) {
				qr.Metadata = results.Metadatas[0][i]
			}
			if len(results.Distances) > 0 && i < len(results.Distances[0]) {
				qr.Distance = float64(results.Distances[0][i])
			}
			out = append(out, qr)
		}
	}
	return out, nil
}

// Get implements Store.
func (s *ChromaStore) Get(ctx context.Context, collectionName string, filter map[string]interface{}) ([]GetResult, error) {
	col, err := s.getCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	results, err := col.Get(ctx, filter, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get from %q: %w", collectionName, err)
	}

	out := make([]GetResult, 0, len(results.Ids))
	for i, id := range results.Ids {
		gr := GetResult{ID: id}
		if i < len(results.Documents) {
			gr.Content = results.Documents[i]
		}
		if i < len(results.Metadatas) {
			gr.Metadata = results.Metadatas[i]
		}
		out = append(out, gr)
	}
	return out, nil
}

// Delete implements Store.
func (s *ChromaStore) Delete(ctx context.Context, collectionName string, ids []string, filter map[string]interface{}) error {
	col, err := s.getCollection(ctx, collectionName)
	if err != nil {
		return err
	}
	if _, err := col.Delete(ctx, ids, filter, nil); err != nil {
		return fmt.Errorf("failed to delete from %q: %w", collectionName, err)
	}
	return nil
}

// Count implements Store.
func (s *ChromaStore) Count(ctx context.Context, collectionName string) (int, error) {
	col, err := s.getCollection(ctx, collectionName)
	if err != nil {
		return 0, err
	}
	n, err := col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", collectionName, err)
	}
	return int(n), nil
}

func (s *ChromaStore) getCollection(ctx context.Context, name string) (*chromago.Collection, error) {
	col, err := s.client.GetCollection(ctx, name, nil)
	if err != nil {
		return nil, asNotFound(fmt.Errorf("failed to get collection %q: %w", name, err))
	}
	return col, nil
}

// asNotFound annotates collection lookups that fail because the
// collection does not exist. Chroma only signals this in the error
// text.
func asNotFound(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	return err
}
