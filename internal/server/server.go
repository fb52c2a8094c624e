// Package server hosts a small in-memory opinions API, wire-compatible
// with the REST source the extractor consumes. It exists so the full
// pipeline can be exercised end to end without an external service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Comment is one opinion record in the API's wire format.
type Comment struct {
	ID          string   `json:"idOpinion"`
	ClientID    string   `json:"idCliente"`
	ProductCode string   `json:"idProducto"`
	Date        string   `json:"fecha"`
	Comment     string   `json:"comentario"`
	Score       *float64 `json:"puntuacion,omitempty"`
}

// Server serves the comments API over HTTP.
type Server struct {
	port int
	log  *zap.Logger

	mu       sync.Mutex
	comments []Comment
}

// New creates a Server seeded with one sample opinion.
func New(port int) *Server {
	score := 4.5
	return &Server{
		port: port,
		log:  zap.L().With(zap.String("component", "server")),
		comments: []Comment{
			{
				ID:          uuid.New().String(),
				ClientID:    "C001",
				ProductCode: "P001",
				Date:        time.Now().UTC().Format(time.RFC3339),
				Comment:     "Excelente producto, muy recomendado",
				Score:       &score,
			},
		},
	}
}

// Router builds the chi router for the comments API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Route("/api/comments", func(r chi.Router) {
		r.Get("/", s.listComments)
		r.Post("/", s.createComment)
	})
	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("comments API listening", zap.Int("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listComments(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var c Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Date == "" {
		c.Date = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	s.comments = append(s.comments, c)
	s.mu.Unlock()

	s.log.Info("comment created", zap.String("id", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
