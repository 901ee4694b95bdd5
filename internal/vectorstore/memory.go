package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// MemoryStore is an in-process Store backed by maps. It exists for
// tests and for running without a ChromaDB server. Distance is cosine
// distance, 1 - cos(a, b).
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	metadata map[string]interface{}
	// order preserves insertion order for Get.
	order []string
	items map[string]memoryItem
}

type memoryItem struct {
	content   string
	embedding []float32
	metadata  map[string]interface{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection implements Store.
func (s *MemoryStore) EnsureCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(name, nil)
	return nil
}

// CreateCollection implements Store.
func (s *MemoryStore) CreateCollection(_ context.Context, name string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%w: collection %q already exists", apperr.ErrInvalidInput, name)
	}
	s.ensureLocked(name, metadata)
	return nil
}

func (s *MemoryStore) ensureLocked(name string, metadata map[string]interface{}) *memoryCollection {
	col, ok := s.collections[name]
	if !ok {
		col = &memoryCollection{items: make(map[string]memoryItem)}
		s.collections[name] = col
	}
	if metadata != nil {
		col.metadata = metadata
	}
	return col
}

// DeleteCollection implements Store.
func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("%w: collection %q does not exist", apperr.ErrNotFound, name)
	}
	delete(s.collections, name)
	return nil
}

// ListCollections implements Store.
func (s *MemoryStore) ListCollections(_ context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]CollectionInfo, 0, len(s.collections))
	for name, col := range s.collections {
		infos = append(infos, CollectionInfo{Name: name, Metadata: col.metadata})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, collection string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error {
	if len(ids) != len(documents) || len(ids) != len(embeddings) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids, documents, embeddings and metadatas must have equal length", apperr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.ensureLocked(collection, nil)
	for _, id := range ids {
		if _, exists := col.items[id]; exists {
			return fmt.Errorf("%w: duplicate id %q", apperr.ErrInvalidInput, id)
		}
	}
	for i, id := range ids {
		col.order = append(col.order, id)
		col.items[id] = memoryItem{
			content:   documents[i],
			embedding: embeddings[i],
			metadata:  metadatas[i],
		}
	}
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, collection string, embedding []float32, topK int, filter map[string]interface{}) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}

	var results []QueryResult
	for _, id := range col.order {
		item := col.items[id]
		if !matchesFilter(item.metadata, filter) {
			continue
		}
		results = append(results, QueryResult{
			ID:       id,
			Content:  item.content,
			Metadata: item.metadata,
			Distance: cosineDistance(embedding, item.embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, collection string, filter map[string]interface{}) ([]GetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}

	var results []GetResult
	for _, id := range col.order {
		item := col.items[id]
		if !matchesFilter(item.metadata, filter) {
			continue
		}
		results = append(results, GetResult{ID: id, Content: item.content, Metadata: item.metadata})
	}
	return results, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string, filter map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collectionLocked(collection)
	if err != nil {
		return err
	}

	remove := make(map[string]bool)
	for _, id := range ids {
		remove[id] = true
	}
	if filter != nil {
		for id, item := range col.items {
			if matchesFilter(item.metadata, filter) {
				remove[id] = true
			}
		}
	}

	kept := col.order[:0]
	for _, id := range col.order {
		if remove[id] {
			delete(col.items, id)
			continue
		}
		kept = append(kept, id)
	}
	col.order = kept
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.collectionLocked(collection)
	if err != nil {
		return 0, err
	}
	return len(col.items), nil
}

func (s *MemoryStore) collectionLocked(name string) (*memoryCollection, error) {
	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q does not exist", apperr.ErrNotFound, name)
	}
	return col, nil
}

// matchesFilter evaluates a Chroma-style where filter against one
// metadata map. Supported operators: $eq, $ne, $in, $gte, $lte, plus
// the $and combinator and plain-value equality.
func matchesFilter(metadata, filter map[string]interface{}) bool {
	if len(filter) == 0 {
		return true
	}
	for key, cond := range filter {
		if key == "$and" {
			clauses, ok := cond.([]map[string]interface{})
			if !ok {
				if generic, isGeneric := cond.([]interface{}); isGeneric {
					for _, c := range generic {
						m, isMap := c.(map[string]interface{})
						if !isMap || !matchesFilter(metadata, m) {
							return false
						}
					}
					continue
				}
				return false
			}
			for _, clause := range clauses {
				if !matchesFilter(metadata, clause) {
					return false
				}
			}
			continue
		}

		value, present := metadata[key]
		ops, isOps := cond.(map[string]interface{})
		if !isOps {
			if !present || !looseEqual(value, cond) {
				return false
			}
			continue
		}
		for op, operand := range ops {
			if !applyOperator(op, value, present, operand) {
				return false
			}
		}
	}
	return true
}

func applyOperator(op string, value interface{}, present bool, operand interface{}) bool {
	switch op {
	case "$eq":
		return present && looseEqual(value, operand)
	case "$ne":
		return !present || !looseEqual(value, operand)
	case "$in":
		if !present {
			return false
		}
		items, ok := toSlice(operand)
		if !ok {
			return false
		}
		for _, item := range items {
			if looseEqual(value, item) {
				return true
			}
		}
		return false
	case "$gte":
		return present && compare(value, operand) >= 0
	case "$lte":
		return present && compare(value, operand) <= 0
	default:
		return false
	}
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// looseEqual compares values numerically when both sides are numbers,
// so int 3 equals float64 3 the way JSON round-tripping produces it.
func looseEqual(a, b interface{}) bool {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			return fa == fb
		}
		return false
	}
	return a == b
}

// compare orders two values, numerically when possible, otherwise as
// strings. Returns -1, 0 or 1.
func compare(a, b interface{}) int {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa := fmt.Sprintf("%v", a)
	sb := fmt.Sprintf("%v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
