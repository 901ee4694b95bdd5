package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
	"github.com/sidharthpunathil/chatbot-poc/internal/document"
)

type documentUpload struct {
	Content  string                 `json:"content" binding:"required"`
	Title    string                 `json:"title" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

type bulkDocumentUpload struct {
	Documents []documentUpload `json:"documents" binding:"required"`
}

type collectionCreate struct {
	Name     string                 `json:"name" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, fmt.Errorf("file is required: %w", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(c, err)
		return
	}

	collection := c.DefaultPostForm("collection_name", s.collectionName(c))
	metadata := map[string]interface{}{}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			s.badRequest(c, fmt.Errorf("metadata must be a JSON object: %w", err))
			return
		}
	}

	result, err := s.documents.IngestFile(c.Request.Context(), collection, fileHeader.Filename, content, metadata)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Document uploaded successfully",
		"filename":       fileHeader.Filename,
		"document_id":    result.DocID,
		"title":          result.Title,
		"chunks_created": result.ChunksCreated,
		"collection":     result.Collection,
	})
}

func (s *Server) handleEmbed(c *gin.Context) {
	var req documentUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.documents.Ingest(c.Request.Context(), s.collectionName(c), document.IngestRequest{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Content embedded successfully",
		"document_id":    result.DocID,
		"title":          result.Title,
		"chunks_created": result.ChunksCreated,
		"collection":     result.Collection,
	})
}

func (s *Server) handleBulkEmbed(c *gin.Context) {
	var req bulkDocumentUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if len(req.Documents) == 0 {
		s.writeError(c, fmt.Errorf("%w: documents cannot be empty", apperr.ErrInvalidInput))
		return
	}

	collection := s.collectionName(c)
	reqs := make([]document.IngestRequest, 0, len(req.Documents))
	for _, d := range req.Documents {
		reqs = append(reqs, document.IngestRequest{Title: d.Title, Content: d.Content, Metadata: d.Metadata})
	}
	results := s.documents.BulkIngest(c.Request.Context(), collection, reqs)

	succeeded := 0
	totalChunks := 0
	for _, r := range results {
		if r.Result != nil {
			succeeded++
			totalChunks += r.Result.ChunksCreated
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Successfully embedded %d documents", succeeded),
		"collection":   collection,
		"documents":    results,
		"total_chunks": totalChunks,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	collection := s.collectionName(c)
	docs, err := s.documents.ListDocuments(c.Request.Context(), collection)
	if err != nil {
		s.writeError(c, err)
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.badRequest(c, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"collection":      collection,
		"total_documents": len(docs),
		"documents":       docs,
	})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	docID := c.Param("doc_id")
	chunks, err := s.documents.GetDocument(c.Request.Context(), s.collectionName(c), docID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	head := chunks[0].Metadata
	title, _ := head["title"].(string)
	source, _ := head["source"].(string)
	uploadDate, _ := head["upload_date"].(string)

	c.JSON(http.StatusOK, gin.H{
		"document_id": docID,
		"title":       title,
		"source":      source,
		"upload_date": uploadDate,
		"chunk_count": len(chunks),
		"chunks":      chunks,
	})
}

func (s *Server) handleUpdateDocument(c *gin.Context) {
	var req documentUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	docID := c.Param("doc_id")
	result, err := s.documents.UpdateDocument(c.Request.Context(), s.collectionName(c), docID, document.IngestRequest{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Document updated successfully",
		"old_doc_id":     docID,
		"document_id":    result.DocID,
		"title":          result.Title,
		"chunks_created": result.ChunksCreated,
		"collection":     result.Collection,
	})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	docID := c.Param("doc_id")
	deleted, err := s.documents.DeleteDocument(c.Request.Context(), s.collectionName(c), docID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Document deleted successfully",
		"document_id":    docID,
		"chunks_deleted": deleted,
	})
}

func (s *Server) handleListCollections(c *gin.Context) {
	collections, err := s.documents.ListCollections(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

func (s *Server) handleCreateCollection(c *gin.Context) {
	var req collectionCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.documents.CreateCollection(c.Request.Context(), req.Name, req.Metadata); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Collection created successfully",
		"name":     req.Name,
		"metadata": req.Metadata,
	})
}

func (s *Server) handleDeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if err := s.documents.DeleteCollection(c.Request.Context(), name); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Collection '%s' deleted successfully", name)})
}
