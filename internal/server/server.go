package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	errx "github.com/directors-cut/server/internal/core/error"
	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/emotion"
	"github.com/directors-cut/server/internal/session"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
)

type Config struct {
	Addr           string        `envconfig:"HTTP_ADDR" default:":8000"`
	SessionMaxIdle time.Duration `envconfig:"SESSION_MAX_IDLE" default:"30m"`
	SweepInterval  time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
}

// Server exposes the REST surface and the websocket session endpoint. It
// also owns the stateless-API story state, the one advanced by the REST
// decide/reset calls rather than by a live session.
type Server struct {
	cfg      Config
	deps     session.Deps
	registry *session.Registry

	mu        sync.Mutex
	restState story.State
}

func New(cfg Config, deps session.Deps, registry *session.Registry) *Server {
	return &Server{
		cfg:       cfg,
		deps:      deps,
		registry:  registry,
		restState: story.NewState(story.DefaultGenre),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/emotion", s.handleEmotion)
	mux.HandleFunc("POST /api/director/decide", s.handleDecide)
	mux.HandleFunc("POST /api/content/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/story/scene/{id}", s.handleScene)
	mux.HandleFunc("GET /api/story/state", s.handleState)
	mux.HandleFunc("POST /api/story/reset", s.handleReset)
	mux.HandleFunc("GET /ws/session", s.handleSession)
	return mux
}

// ListenAndServe runs the HTTP server until ctx is cancelled, sweeping idle
// sessions in the background.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Routes(),
	}

	go s.sweepLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("http server shutdown failed")
		}
	}()

	logx.Info().Str("addr", s.cfg.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.Sweep(s.cfg.SessionMaxIdle)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errx.Status(err)
	message := err.Error()
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, status, map[string]string{"detail": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type frameInput struct {
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleEmotion(w http.ResponseWriter, r *http.Request) {
	var body frameInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON"})
		return
	}
	reading := s.deps.Classifier.Classify(r.Context(), body.ImageBase64)
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var summary emotion.Summary
	if err := json.NewDecoder(r.Body).Decode(&summary); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON"})
		return
	}

	s.mu.Lock()
	state := s.restState
	s.mu.Unlock()

	decision, err := s.deps.Director.Decide(r.Context(), summary, state, s.deps.Graph)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type generateRequest struct {
	Decision director.Decision `json:"decision"`
	Scene    story.SceneNode   `json:"scene"`
	Genre    string            `json:"genre,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON"})
		return
	}
	genre := req.Genre
	if genre == "" {
		genre = story.DefaultGenre
	}
	assets := s.deps.Generator.Generate(r.Context(), req.Decision, &req.Scene, genre)
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	node, err := s.deps.Graph.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, errx.WrapNotFound(err))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	state := s.restState
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.restState = story.NewState(story.DefaultGenre)
	state := s.restState
	s.mu.Unlock()

	s.deps.Generator.Clear()
	writeJSON(w, http.StatusOK, state)
}
