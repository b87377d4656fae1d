package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/client"
)

// HTTPServer serves the REST API over one client.
type HTTPServer struct {
	client *client.Client
	log    zerolog.Logger
}

func NewHTTPServer(c *client.Client, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{client: c, log: log}
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	mux.HandleFunc("GET /api/notes/{path...}", s.handleReadNote)
	mux.HandleFunc("PUT /api/notes/{path...}", s.handleUpdateNote)
	mux.HandleFunc("DELETE /api/notes/{path...}", s.handleDeleteNote)

	return cors(mux)
}

// cors allows any origin on every response, preflight included.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := s.client.SearchNotes(r.Context(), query, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (s *HTTPServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notes": s.client.ListNotes()})
}

type noteBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *HTTPServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	f, err := s.client.CreateNote(r.Context(), body.Path, body.Content)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": f.Path()})
}

func (s *HTTPServer) handleReadNote(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	content, err := s.client.ReadNote(r.Context(), path)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "content": content})
}

func (s *HTTPServer) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	path := r.PathValue("path")
	if err := s.client.UpdateNote(r.Context(), path, body.Content); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *HTTPServer) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if err := s.client.DeleteNote(r.Context(), path); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps domain errors onto HTTP status codes.
func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrInvalidInput), errors.Is(err, backend.ErrPathTraversal):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
