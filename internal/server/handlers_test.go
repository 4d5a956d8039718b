package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kotaehq/kotae/internal/cache"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/llm"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/vectorstore"
	"github.com/kotaehq/kotae/internal/watcher"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, chatReply string, opts ...Option) *Server {
	t.Helper()
	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": chatReply}},
			},
		})
	}))
	t.Cleanup(chatSrv.Close)

	registry, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	tiers := cache.NewTiers(cache.TierConfig{}, cache.TierConfig{}, cache.TierConfig{})
	embedder := embedding.NewService(embedding.NewMockEmbedder(32), tiers.Embeddings)
	generator := llm.NewClient(llm.Config{BaseURL: chatSrv.URL, Model: "test-model"})
	p := pipeline.New(pipeline.Config{}, embedder, vectorstore.NewMemory(), registry, tiers, generator, nil)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return New(p, cfg, zap.NewNop(), opts...)
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func uploadDoc(t *testing.T, h http.Handler, filename, content string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, filename, content, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			DocumentID string `json:"document_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return env.Data.DocumentID
}

const policyText = "Refunds are available within thirty days of purchase. " +
	"Customers must present a receipt to claim a refund."

func TestHealth(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	rec, env := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("status = %d env = %+v", rec.Code, env)
	}
}

func TestUpload_Success(t *testing.T) {
	srv := newTestServer(t, "unused")
	h := srv.Router()

	id := uploadDoc(t, h, "policy.txt", policyText)
	if id == "" {
		t.Fatal("no document id returned")
	}

	rec, _ := doJSON(t, h, http.MethodGet, "/api/documents", nil)
	var list struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Data.Count != 1 {
		t.Errorf("count = %d, want 1", list.Data.Count)
	}
}

func TestUpload_ChunkOverrides(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "policy.txt", policyText,
		map[string]string{"chunk_size": "150", "chunk_overlap": "30"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			ChunkConfig struct {
				ChunkSize    int `json:"chunk_size"`
				ChunkOverlap int `json:"chunk_overlap"`
			} `json:"chunk_config"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.ChunkConfig.ChunkSize != 150 || env.Data.ChunkConfig.ChunkOverlap != 30 {
		t.Errorf("chunk config = %+v", env.Data.ChunkConfig)
	}
}

func TestUpload_Validation(t *testing.T) {
	h := newTestServer(t, "unused").Router()

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"unsupported extension", uploadRequest(t, "slides.pptx", "data", nil)},
		{"bad chunk size", uploadRequest(t, "a.txt", policyText, map[string]string{"chunk_size": "50"})},
		{"non-numeric chunk size", uploadRequest(t, "a.txt", policyText, map[string]string{"chunk_size": "big"})},
		{"empty document", uploadRequest(t, "a.txt", "   ", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success || env.Error == nil || env.Error.Message == "" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("chunk_size", "200")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuery_Success(t *testing.T) {
	h := newTestServer(t, "The refund window is thirty days. [CONFIDENCE: 8/10 | REASON: stated]").Router()
	uploadDoc(t, h, "policy.txt", policyText)

	rec, env := doJSON(t, h, http.MethodPost, "/api/query",
		map[string]any{"query": "what is the refund policy"})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d env = %+v", rec.Code, env)
	}
	var resp struct {
		Data struct {
			Answer     string `json:"answer"`
			Confidence struct {
				Score int    `json:"score"`
				Level string `json:"level"`
			} `json:"confidence"`
			Sources []struct {
				Filename string `json:"filename"`
			} `json:"sources"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Answer != "The refund window is thirty days." {
		t.Errorf("answer = %q", resp.Data.Answer)
	}
	if resp.Data.Confidence.Score != 8 || resp.Data.Confidence.Level != "high" {
		t.Errorf("confidence = %+v", resp.Data.Confidence)
	}
	if len(resp.Data.Sources) == 0 || resp.Data.Sources[0].Filename != "policy.txt" {
		t.Errorf("sources = %+v", resp.Data.Sources)
	}
}

func TestQuery_Errors(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	uploadDoc(t, h, "policy.txt", policyText)

	t.Run("empty query", func(t *testing.T) {
		rec, env := doJSON(t, h, http.MethodPost, "/api/query", map[string]any{"query": "  "})
		if rec.Code != http.StatusBadRequest || env.Success {
			t.Errorf("status = %d env = %+v", rec.Code, env)
		}
	})
	t.Run("unknown document", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPost, "/api/query", map[string]any{
			"query":       "refunds",
			"document_id": "123e4567-e89b-12d3-a456-426614174000",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCompare_Success(t *testing.T) {
	h := newTestServer(t, "Document 1 allows refunds; document 2 does not.").Router()
	id1 := uploadDoc(t, h, "a.txt", policyText)
	id2 := uploadDoc(t, h, "b.txt", "All sales are final. No refunds are offered.")

	rec, env := doJSON(t, h, http.MethodPost, "/api/compare", map[string]any{
		"document_ids": []string{id1, id2},
		"topic":        "refund policy",
	})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d env = %+v", rec.Code, env)
	}
	var resp struct {
		Data struct {
			Comparison string `json:"comparison"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Comparison == "" {
		t.Error("no comparison text")
	}
}

func TestCompare_RequiresTwoIDs(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	id := uploadDoc(t, h, "a.txt", policyText)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/compare", map[string]any{
		"document_ids": []string{id},
		"topic":        "refunds",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	id := uploadDoc(t, h, "policy.txt", policyText)

	rec, env := doJSON(t, h, http.MethodDelete, "/api/documents/"+id, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d env = %+v", rec.Code, env)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/documents/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	uploadDoc(t, h, "policy.txt", policyText)

	rec, _ := doJSON(t, h, http.MethodGet, "/api/documents/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data struct {
			TotalDocuments int `json:"total_documents"`
			TotalChunks    int `json:"total_chunks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.TotalDocuments != 1 || resp.Data.TotalChunks == 0 {
		t.Errorf("stats = %+v", resp.Data)
	}
}

func TestWatchEndpoints(t *testing.T) {
	w := watcher.New(nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("watcher start: %v", err)
	}
	t.Cleanup(w.Stop)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("debug: false\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	srv := newTestServer(t, "unused", WithWatcher(w, cfgPath))
	h := srv.Router()
	dir := t.TempDir()

	rec, env := doJSON(t, h, http.MethodPost, "/api/watch/directories", map[string]string{"path": dir})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("add status = %d env = %+v", rec.Code, env)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/api/watch/directories", nil)
	var list struct {
		Data struct {
			Directories []string `json:"directories"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data.Directories) != 1 {
		t.Errorf("directories = %v", list.Data.Directories)
	}

	// Directory changes are persisted to the config file.
	deadline := time.Now().Add(time.Second)
	for {
		cfg, err := config.Load(cfgPath)
		if err == nil && len(cfg.Watch.Directories) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch directory never persisted to config")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/watch/directories?path="+dir, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	if dirs := w.Directories(); len(dirs) != 0 {
		t.Errorf("directories after remove = %v", dirs)
	}
}

func TestWatchDisabled(t *testing.T) {
	h := newTestServer(t, "unused").Router()
	rec, _ := doJSON(t, h, http.MethodGet, "/api/watch/directories", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
