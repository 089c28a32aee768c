package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/content"
)

type searchRequest struct {
	Query  string `json:"query"`
	LangID int64  `json:"lang_id"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.engine.Search(r.Context(), req.Query, req.LangID)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleIndexPage indexes a page payload synchronously. Hosts that cannot
// wait for embedding use the queue endpoint instead.
func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	var page content.StaticPage
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid page payload")
		return
	}
	if page.ID() == 0 {
		s.respondError(w, http.StatusBadRequest, "page id is required")
		return
	}
	n, err := s.indexer.IndexPage(r.Context(), &page, 0)
	if err != nil {
		s.logger.Error("page indexing failed", zap.Int64("page_id", page.ID()), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"page_id": page.ID(),
		"chunks":  n,
	})
}

func (s *Server) handleEnqueuePage(w http.ResponseWriter, r *http.Request) {
	var page content.StaticPage
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid page payload")
		return
	}
	if page.ID() == 0 {
		s.respondError(w, http.StatusBadRequest, "page id is required")
		return
	}
	doc, err := s.worker.EnqueuePage(r.Context(), &page)
	if err != nil {
		s.logger.Error("page enqueue failed", zap.Int64("page_id", page.ID()), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, doc)
}

func (s *Server) handleEnqueueFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	doc, err := s.worker.EnqueueFile(r.Context(), req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, doc)
}

func (s *Server) handleEnqueueURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	doc, err := s.worker.EnqueueURL(r.Context(), req.URL)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleHasVectors(w http.ResponseWriter, r *http.Request) {
	pageID, langID, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	has, err := s.store.HasVectors(r.Context(), pageID, langID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"page_id":     pageID,
		"has_vectors": has,
	})
}

func (s *Server) handleDeleteVectors(w http.ResponseWriter, r *http.Request) {
	pageID, langID, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	n, err := s.indexer.DeleteVectors(r.Context(), pageID, langID)
	if err != nil {
		s.logger.Error("vector deletion failed", zap.Int64("page_id", pageID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"page_id": pageID,
		"removed": n,
	})
}

// pageParams parses the page ID path param and the optional lang_id query
// param. A missing lang_id means all languages.
func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (int64, *int64, bool) {
	pageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid page id")
		return 0, nil, false
	}
	var langID *int64
	if raw := r.URL.Query().Get("lang_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid lang_id")
			return 0, nil, false
		}
		langID = &id
	}
	return pageID, langID, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCounts, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"queue":  docCounts,
		"chunks": chunkCount,
		"config": map[string]interface{}{
			"chunk_size":        s.config.Search.ChunkSize,
			"chunk_overlap":     s.config.Search.ChunkOverlap,
			"top_k":             s.config.Search.TopK,
			"prefilter_limit":   s.config.Search.PrefilterLimit,
			"context_max_chars": s.config.Search.ContextMaxChars,
			"embedding_model":   s.config.Embedding.Model,
			"database_path":     s.config.Storage.DatabasePath,
			"bleve_index_path":  s.config.Storage.BleveIndexPath,
		},
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
