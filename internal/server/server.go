// Package server exposes the HTTP API over gin.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sidharthpunathil/chatbot-poc/internal/chat"
	"github.com/sidharthpunathil/chatbot-poc/internal/document"
	"github.com/sidharthpunathil/chatbot-poc/internal/embedding"
	"github.com/sidharthpunathil/chatbot-poc/internal/search"
	"github.com/sidharthpunathil/chatbot-poc/internal/session"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

// Server wires the HTTP handlers to the application services.
type Server struct {
	documents *document.Service
	engine    *search.Engine
	chat      *chat.Service
	sessions  session.Store
	store     vectorstore.Store
	embedder  embedding.Provider

	defaultCollection string
	allowedOrigins    []string
	logger            zerolog.Logger
}

// Options configure the server surface.
type Options struct {
	DefaultCollection string
	AllowedOrigins    []string
}

// New constructs a server from its services.
func New(documents *document.Service, engine *search.Engine, chatSvc *chat.Service, sessions session.Store, store vectorstore.Store, embedder embedding.Provider, opts Options, logger zerolog.Logger) *Server {
	if opts.DefaultCollection == "" {
		opts.DefaultCollection = "default"
	}
	return &Server{
		documents:         documents,
		engine:            engine,
		chat:              chatSvc,
		sessions:          sessions,
		store:             store,
		embedder:          embedder,
		defaultCollection: opts.DefaultCollection,
		allowedOrigins:    opts.AllowedOrigins,
		logger:            logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.cors())

	r.GET("/health", s.handleHealth)

	docs := r.Group("/documents")
	{
		docs.POST("/upload", s.handleUpload)
		docs.POST("/embed", s.handleEmbed)
		docs.POST("/bulk-embed", s.handleBulkEmbed)
		docs.GET("/", s.handleListDocuments)
		docs.GET("/collections/list", s.handleListCollections)
		docs.POST("/collections/create", s.handleCreateCollection)
		docs.DELETE("/collections/:name", s.handleDeleteCollection)
		docs.GET("/:doc_id", s.handleGetDocument)
		docs.PUT("/:doc_id", s.handleUpdateDocument)
		docs.DELETE("/:doc_id", s.handleDeleteDocument)
	}

	searches := r.Group("/search")
	{
		searches.POST("/", s.handleSemanticSearch)
		searches.POST("/advanced", s.handleAdvancedSearch)
		searches.POST("/multi-query", s.handleMultiQuerySearch)
		searches.GET("/similar/:doc_id", s.handleSimilarSearch)
		searches.POST("/hybrid", s.handleHybridSearch)
		searches.POST("/rerank", s.handleRerank)
		searches.GET("/analytics/collection-stats/:name", s.handleCollectionStats)
		searches.GET("/analytics/search-suggestions", s.handleSearchSuggestions)
		searches.GET("/health", s.handleSearchHealth)
	}

	chats := r.Group("/chat")
	{
		chats.POST("/", s.handleChat)
		chats.GET("/history/:session_id", s.handleChatHistory)
		chats.POST("/session", s.handleCreateSession)
		chats.DELETE("/session/:session_id", s.handleDeleteSession)
		chats.GET("/sessions", s.handleListSessions)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// collectionName resolves the collection_name query parameter.
func (s *Server) collectionName(c *gin.Context) string {
	if name := c.Query("collection_name"); name != "" {
		return name
	}
	return s.defaultCollection
}
