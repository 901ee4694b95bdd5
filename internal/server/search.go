package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sidharthpunathil/chatbot-poc/internal/search"
)

type searchQuery struct {
	Query          string                 `json:"query" binding:"required"`
	TopK           int                    `json:"top_k"`
	CollectionName string                 `json:"collection_name"`
	FilterMetadata map[string]interface{} `json:"filter_metadata"`
}

type advancedSearchQuery struct {
	searchQuery
	// Include flags default to true when omitted.
	IncludeMetadata     *bool             `json:"include_metadata"`
	IncludeDistances    *bool             `json:"include_distances"`
	SimilarityThreshold float64           `json:"similarity_threshold"`
	DateRange           *search.DateRange `json:"date_range"`
}

type multiSearchQuery struct {
	Queries        []string `json:"queries" binding:"required"`
	TopK           int      `json:"top_k"`
	CollectionName string   `json:"collection_name"`
}

type hybridSearchQuery struct {
	Query          string   `json:"query" binding:"required"`
	Keywords       []string `json:"keywords"`
	TopK           int      `json:"top_k"`
	CollectionName string   `json:"collection_name"`
	SemanticWeight *float64 `json:"semantic_weight"`
}

type rerankQuery struct {
	Query          string   `json:"query" binding:"required"`
	DocumentIDs    []string `json:"document_ids" binding:"required"`
	CollectionName string   `json:"collection_name"`
}

func (s *Server) resolveCollection(name string) string {
	if name == "" {
		return s.defaultCollection
	}
	return name
}

func (s *Server) handleSemanticSearch(c *gin.Context) {
	var req searchQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	resp, err := s.engine.Semantic(c.Request.Context(), s.resolveCollection(req.CollectionName), req.Query, req.TopK, req.FilterMetadata)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAdvancedSearch(c *gin.Context) {
	var req advancedSearchQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	params := search.AdvancedParams{
		Filter:              req.FilterMetadata,
		SimilarityThreshold: req.SimilarityThreshold,
		DateRange:           req.DateRange,
		IncludeMetadata:     req.IncludeMetadata == nil || *req.IncludeMetadata,
		IncludeDistances:    req.IncludeDistances == nil || *req.IncludeDistances,
	}
	resp, err := s.engine.Advanced(c.Request.Context(), s.resolveCollection(req.CollectionName), req.Query, req.TopK, params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMultiQuerySearch(c *gin.Context) {
	var req multiSearchQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	resp, err := s.engine.MultiQuery(c.Request.Context(), s.resolveCollection(req.CollectionName), req.Queries, req.TopK)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSimilarSearch(c *gin.Context) {
	docID := c.Param("doc_id")
	collection := s.collectionName(c)

	topK := 5
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.badRequest(c, fmt.Errorf("top_k must be a positive integer"))
			return
		}
		topK = n
	}
	excludeSameSource := c.Query("exclude_same_source") == "true"

	resp, err := s.engine.Similar(c.Request.Context(), collection, docID, topK, excludeSameSource)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHybridSearch(c *gin.Context) {
	var req hybridSearchQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	weight := 0.7
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}
	resp, err := s.engine.Hybrid(c.Request.Context(), s.resolveCollection(req.CollectionName), req.Query, req.Keywords, req.TopK, weight)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRerank(c *gin.Context) {
	var req rerankQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	resp, err := s.engine.Rerank(c.Request.Context(), s.resolveCollection(req.CollectionName), req.Query, req.DocumentIDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCollectionStats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleSearchSuggestions(c *gin.Context) {
	partial := c.Query("partial_query")
	collection := s.collectionName(c)

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.badRequest(c, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}

	resp, err := s.engine.Suggest(c.Request.Context(), collection, partial, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleSearchHealth probes the embedding provider and the vector
// store. Failures are reported in the body rather than the status.
func (s *Server) handleSearchHealth(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := s.embedder.EmbedSingle(ctx, "test"); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "unhealthy", "error": err.Error(), "timestamp": now})
		return
	}
	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "unhealthy", "error": err.Error(), "timestamp": now})
		return
	}

	names := make([]string, 0, len(collections))
	for _, col := range collections {
		names = append(names, col.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"embedding_model":       s.embedder.Model(),
		"embedding_dimension":   s.embedder.Dimension(),
		"available_collections": names,
		"timestamp":             now,
	})
}
