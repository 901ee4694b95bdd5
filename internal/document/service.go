// Package document manages the ingestion lifecycle: extraction,
// chunking, embedding and storage of documents.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
	"github.com/sidharthpunathil/chatbot-poc/internal/chunk"
	"github.com/sidharthpunathil/chatbot-poc/internal/embedding"
	"github.com/sidharthpunathil/chatbot-poc/internal/extract"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

// Service ingests documents into a vector store and manages their
// lifecycle.
type Service struct {
	store        vectorstore.Store
	embedder     embedding.Provider
	chunkSize    int
	chunkOverlap int
	logger       zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewService wires a document service from its dependencies.
func NewService(store vectorstore.Store, embedder embedding.Provider, chunkSize, chunkOverlap int, logger zerolog.Logger) *Service {
	return &Service{
		store:        store,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger.With().Str("component", "document").Logger(),
		now:          time.Now,
	}
}

// IngestRequest is one document to ingest.
type IngestRequest struct {
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// IngestResult reports what one successful ingestion produced.
type IngestResult struct {
	DocID         string `json:"document_id"`
	Title         string `json:"title"`
	ChunksCreated int    `json:"chunks_created"`
	Collection    string `json:"collection"`
}

// BulkItemResult is the outcome for one document of a bulk ingest.
// Exactly one of Result and Error is set.
type BulkItemResult struct {
	Title  string        `json:"title"`
	Result *IngestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// DocumentSummary describes one stored document as seen from its
// chunks.
type DocumentSummary struct {
	DocID      string                 `json:"document_id"`
	Title      string                 `json:"title"`
	ChunkCount int                    `json:"chunk_count"`
	UploadDate string                 `json:"upload_date"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Chunk is one stored chunk of a document.
type Chunk struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Ingest chunks, embeds and stores one document. Reserved metadata
// keys (title, doc_id, chunk_index, upload_date) always carry the
// generated values even when the caller supplies them.
func (s *Service) Ingest(ctx context.Context, collection string, req IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: document content cannot be empty", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: document title cannot be empty", apperr.ErrInvalidInput)
	}

	chunks, err := chunk.Split(req.Content, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", apperr.ErrInvalidInput)
	}

	embeddings, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := s.store.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	uploadDate := s.now().UTC().Format(time.RFC3339)

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s_chunk_%d", docID, i)
		md := make(map[string]interface{}, len(req.Metadata)+4)
		for k, v := range req.Metadata {
			md[k] = v
		}
		md["title"] = req.Title
		md["doc_id"] = docID
		md["chunk_index"] = i
		md["upload_date"] = uploadDate
		metadatas[i] = md
	}

	if err := s.store.Add(ctx, collection, ids, chunks, embeddings, metadatas); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doc_id", docID).
		Str("title", req.Title).
		Int("chunks", len(chunks)).
		Str("collection", collection).
		Msg("document ingested")

	return &IngestResult{
		DocID:         docID,
		Title:         req.Title,
		ChunksCreated: len(chunks),
		Collection:    collection,
	}, nil
}

// IngestFile extracts text from an uploaded file and ingests it. The
// filename becomes the title and the source metadata; caller metadata
// is carried along but cannot override source or file_type.
func (s *Service) IngestFile(ctx context.Context, collection, filename string, content []byte, metadata map[string]interface{}) (*IngestResult, error) {
	text, err := extract.Text(filename, content)
	if err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	md := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md["source"] = filename
	md["file_type"] = ext
	return s.Ingest(ctx, collection, IngestRequest{
		Title:    filename,
		Content:  text,
		Metadata: md,
	})
}

// BulkIngest ingests each document independently and reports per-item
// outcomes. One failing document never aborts the rest.
func (s *Service) BulkIngest(ctx context.Context, collection string, reqs []IngestRequest) []BulkItemResult {
	results := make([]BulkItemResult, 0, len(reqs))
	for _, req := range reqs {
		item := BulkItemResult{Title: req.Title}
		res, err := s.Ingest(ctx, collection, req)
		if err != nil {
			s.logger.Warn().Str("title", req.Title).Err(err).Msg("bulk ingest item failed")
			item.Error = err.Error()
		} else {
			item.Result = res
		}
		results = append(results, item)
	}
	return results
}

// ListDocuments groups stored chunks by doc_id and summarises each
// document.
func (s *Service) ListDocuments(ctx context.Context, collection string) ([]DocumentSummary, error) {
	chunks, err := s.store.Get(ctx, collection, nil)
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string]*DocumentSummary)
	var order []string
	for _, c := range chunks {
		docID, _ := c.Metadata["doc_id"].(string)
		if docID == "" {
			continue
		}
		summary, ok := byDoc[docID]
		if !ok {
			title, _ := c.Metadata["title"].(string)
			uploadDate, _ := c.Metadata["upload_date"].(string)
			summary = &DocumentSummary{
				DocID:      docID,
				Title:      title,
				UploadDate: uploadDate,
				Metadata:   userMetadata(c.Metadata),
			}
			byDoc[docID] = summary
			order = append(order, docID)
		}
		summary.ChunkCount++
	}

	out := make([]DocumentSummary, 0, len(order))
	for _, docID := range order {
		out = append(out, *byDoc[docID])
	}
	return out, nil
}

// GetDocument returns every chunk of one document ordered by
// chunk_index.
func (s *Service) GetDocument(ctx context.Context, collection, docID string) ([]Chunk, error) {
	results, err := s.store.Get(ctx, collection, map[string]interface{}{"doc_id": docID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: document %q not found", apperr.ErrNotFound, docID)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{ID: r.ID, Content: r.Content, Metadata: r.Metadata})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunkIndex(chunks[i].Metadata) < chunkIndex(chunks[j].Metadata)
	})
	return chunks, nil
}

// DeleteDocument removes every chunk of one document.
func (s *Service) DeleteDocument(ctx context.Context, collection, docID string) (int, error) {
	chunks, err := s.GetDocument(ctx, collection, docID)
	if err != nil {
		return 0, err
	}
	if err := s.store.Delete(ctx, collection, nil, map[string]interface{}{"doc_id": docID}); err != nil {
		return 0, err
	}
	s.logger.Info().Str("doc_id", docID).Int("chunks", len(chunks)).Msg("document deleted")
	return len(chunks), nil
}

// UpdateDocument replaces a document with new content. The old chunks
// are removed and the replacement is ingested under a fresh id.
func (s *Service) UpdateDocument(ctx context.Context, collection, docID string, req IngestRequest) (*IngestResult, error) {
	if _, err := s.DeleteDocument(ctx, collection, docID); err != nil {
		return nil, err
	}
	return s.Ingest(ctx, collection, req)
}

// CreateCollection creates a collection with optional metadata.
func (s *Service) CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) error {
	return s.store.CreateCollection(ctx, name, metadata)
}

// DeleteCollection removes a collection.
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	return s.store.DeleteCollection(ctx, name)
}

// ListCollections returns every collection with its chunk count.
func (s *Service) ListCollections(ctx context.Context) ([]map[string]interface{}, error) {
	infos, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(infos))
	for _, info := range infos {
		count, err := s.store.Count(ctx, info.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"name":     info.Name,
			"metadata": info.Metadata,
			"count":    count,
		})
	}
	return out, nil
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

// userMetadata strips the generated keys so summaries echo only what
// the caller supplied.
func userMetadata(md map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range md {
		switch k {
		case "title", "doc_id", "chunk_index", "upload_date":
		default:
			out[k] = v
		}
	}
	return out
}
