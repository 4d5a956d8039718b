package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kotaehq/kotae/internal/apperr"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/models"
	"go.uber.org/zap"
)

// maxUploadBytes caps document uploads at 50MB.
const maxUploadBytes = 50 << 20

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, apperr.Validationf("file too large or malformed multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, apperr.Validationf("missing file field"))
		return
	}
	defer file.Close()

	opts := models.IngestOptions{}
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, apperr.Validationf("chunk_size must be an integer"))
			return
		}
		opts.ChunkSize = n
	}
	if v := r.FormValue("chunk_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, apperr.Validationf("chunk_overlap must be an integer"))
			return
		}
		opts.ChunkOverlap = n
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, apperr.Validationf("could not read upload: %v", err))
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), filepath.Base(header.Filename), content, opts)
	if err != nil {
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validationf("invalid request body"))
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))

	resp, err := s.pipeline.Query(r.Context(), &req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validationf("invalid request body"))
		return
	}
	s.logger.Debug("compare request",
		zap.Strings("document_ids", req.DocumentIDs), zap.String("topic", req.Topic))

	result, err := s.pipeline.Compare(r.Context(), &req)
	if err != nil {
		s.logger.Error("compare failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.ListDocuments(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, apperr.Validationf("watching is not enabled"))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, apperr.Validationf("watching is not enabled"))
		return
	}
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, apperr.Validationf("path is required"))
		return
	}
	if err := s.watch.AddDirectory(req.Path, true); err != nil {
		s.respondError(w, err)
		return
	}
	s.persistWatchDirs()
	s.respondJSON(w, http.StatusOK, map[string]any{"path": req.Path, "status": "watching"})
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, apperr.Validationf("watching is not enabled"))
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var req watchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			path = req.Path
		}
	}
	if path == "" {
		s.respondError(w, apperr.Validationf("path is required (query or body)"))
		return
	}
	if err := s.watch.RemoveDirectory(path); err != nil {
		s.respondError(w, err)
		return
	}
	s.persistWatchDirs()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "status": "removed"})
}

// persistWatchDirs writes the current watch roots back to the config file.
func (s *Server) persistWatchDirs() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("could not persist watch directories", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Message: err.Error()},
	})
}
