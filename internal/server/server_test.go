package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidharthpunathil/chatbot-poc/internal/chat"
	"github.com/sidharthpunathil/chatbot-poc/internal/document"
	"github.com/sidharthpunathil/chatbot-poc/internal/llm"
	"github.com/sidharthpunathil/chatbot-poc/internal/search"
	"github.com/sidharthpunathil/chatbot-poc/internal/session"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

type testEmbedder struct{}

func (testEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		var sum float32
		for _, r := range text {
			sum += float32(r)
		}
		out[i] = []float32{sum, float32(len(text)), 1}
	}
	return out, nil
}

func (e testEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (testEmbedder) Model() string  { return "test-model" }
func (testEmbedder) Dimension() int { return 3 }

type testCompleter struct{}

func (testCompleter) Complete(_ context.Context, query string, contexts []string, _ *llm.Options) (string, error) {
	return fmt.Sprintf("answer to %q from %d sources", query, len(contexts)), nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := vectorstore.NewMemoryStore()
	embedder := testEmbedder{}
	logger := zerolog.Nop()

	docs := document.NewService(store, embedder, 1000, 200, logger)
	engine := search.NewEngine(store, embedder, logger)
	sessions := session.NewMemoryStore()
	chatSvc := chat.NewService(store, embedder, testCompleter{}, sessions, 5, logger)

	srv := New(docs, engine, chatSvc, sessions, store, embedder, Options{
		DefaultCollection: "default",
		AllowedOrigins:    []string{"http://localhost:3000"},
	}, logger)
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func embedDocument(t *testing.T, router *gin.Engine, title, content string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/documents/embed", map[string]interface{}{
		"title":   title,
		"content": content,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	return body["document_id"].(string)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestEmbedAndGetDocument(t *testing.T) {
	router := newTestRouter(t)
	docID := embedDocument(t, router, "my doc", "some document content")

	w := doJSON(t, router, http.MethodGet, "/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "my doc", body["title"])
	assert.Equal(t, float64(1), body["chunk_count"])
}

func TestEmbedRejectsMissingFields(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/documents/embed", map[string]interface{}{"title": "no content"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w), "detail")
}

func TestUploadMultipart(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("uploaded file body"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("metadata", `{"team": "docs"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "notes.txt", body["filename"])

	docID := body["document_id"].(string)
	w = doJSON(t, router, http.MethodGet, "/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, "notes.txt", got["source"])
}

func TestUploadUnsupportedFormat(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "image.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkEmbedPartialFailure(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/documents/bulk-embed", map[string]interface{}{
		"documents": []map[string]interface{}{
			{"title": "ok", "content": "fine"},
			{"title": "broken", "content": "   "},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "Successfully embedded 1 documents", body["message"])
	docs := body["documents"].([]interface{})
	require.Len(t, docs, 2)
	second := docs[1].(map[string]interface{})
	assert.NotEmpty(t, second["error"])
}

func TestListAndDeleteDocument(t *testing.T) {
	router := newTestRouter(t)
	docID := embedDocument(t, router, "doc", "content here")

	w := doJSON(t, router, http.MethodGet, "/documents/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["total_documents"])

	w = doJSON(t, router, http.MethodDelete, "/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/documents/"+docID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateDocument(t *testing.T) {
	router := newTestRouter(t)
	docID := embedDocument(t, router, "v1", "old content")

	w := doJSON(t, router, http.MethodPut, "/documents/"+docID, map[string]interface{}{
		"title":   "v2",
		"content": "new content",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, docID, body["old_doc_id"])
	assert.NotEqual(t, docID, body["document_id"])
}

func TestCollectionLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/documents/collections/create", map[string]interface{}{
		"name": "kb",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/documents/collections/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	collections := decodeBody(t, w)["collections"].([]interface{})
	assert.Len(t, collections, 1)

	w = doJSON(t, router, http.MethodDelete, "/documents/collections/kb", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/documents/collections/kb", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCollectionAlreadyExists(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/documents/collections/create", map[string]interface{}{
		"name": "kb",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/documents/collections/create", map[string]interface{}{
		"name": "kb",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["detail"], "already exists")
}

func TestListDocumentsDefaultLimit(t *testing.T) {
	router := newTestRouter(t)
	for i := 0; i < 101; i++ {
		embedDocument(t, router, fmt.Sprintf("doc %d", i), fmt.Sprintf("content number %d", i))
	}

	w := doJSON(t, router, http.MethodGet, "/documents/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs := decodeBody(t, w)["documents"].([]interface{})
	assert.Len(t, docs, 100)

	w = doJSON(t, router, http.MethodGet, "/documents/?limit=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs = decodeBody(t, w)["documents"].([]interface{})
	assert.Len(t, docs, 7)
}

func TestSemanticSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)
	embedDocument(t, router, "doc", "searchable content")

	w := doJSON(t, router, http.MethodPost, "/search/", map[string]interface{}{
		"query": "searchable content",
		"top_k": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "searchable content", body["query"])
	results := body["results"].([]interface{})
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["rank"])
}

func TestSearchMissingCollection(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/search/", map[string]interface{}{
		"query":           "anything",
		"collection_name": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeBody(t, w)["detail"], "missing")
}

func TestAdvancedSearchIncludeFlagsDefaultTrue(t *testing.T) {
	router := newTestRouter(t)
	embedDocument(t, router, "doc", "advanced search target")

	w := doJSON(t, router, http.MethodPost, "/search/advanced", map[string]interface{}{
		"query": "advanced search target",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	results := decodeBody(t, w)["results"].([]interface{})
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Contains(t, first, "metadata")
	assert.Contains(t, first, "distance")
}

func TestHybridSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)
	embedDocument(t, router, "doc", "hybrid search target with keyword")

	w := doJSON(t, router, http.MethodPost, "/search/hybrid", map[string]interface{}{
		"query":    "hybrid search target with keyword",
		"keywords": []string{"keyword"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, 0.7, body["semantic_weight"])
}

func TestRerankEndpointNotFound(t *testing.T) {
	router := newTestRouter(t)
	embedDocument(t, router, "doc", "rerank target")

	w := doJSON(t, router, http.MethodPost, "/search/rerank", map[string]interface{}{
		"query":        "q",
		"document_ids": []string{"no-such-doc"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimilarSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)
	docID := embedDocument(t, router, "doc one", "first document body")
	embedDocument(t, router, "doc two", "second document body")

	w := doJSON(t, router, http.MethodGet, "/search/similar/"+docID+"?top_k=3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, docID, body["target_doc_id"])
}

func TestSearchHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/search/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-model", body["embedding_model"])
}

func TestChatFlow(t *testing.T) {
	router := newTestRouter(t)
	embedDocument(t, router, "doc", "chat context material")

	w := doJSON(t, router, http.MethodPost, "/chat/", map[string]interface{}{
		"message": "what is in the docs?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	sessionID := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Contains(t, body["response"], "what is in the docs?")

	w = doJSON(t, router, http.MethodGet, "/chat/history/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeBody(t, w)
	assert.Equal(t, float64(2), history["message_count"])

	w = doJSON(t, router, http.MethodDelete, "/chat/session/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/chat/history/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatSessionEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/chat/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	w = doJSON(t, router, http.MethodGet, "/chat/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["total_sessions"])
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/chat/", map[string]interface{}{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/search/", strings.NewReader(""))
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/search/", strings.NewReader(""))
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
