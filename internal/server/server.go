// Package server exposes the interview core over HTTP. Authentication is an
// upstream concern; requests identify their user via the X-User-ID header set
// by the fronting proxy.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prepdeck/interviewd/internal/ai"
	"github.com/prepdeck/interviewd/internal/interview"
	"github.com/prepdeck/interviewd/internal/session"
	"github.com/prepdeck/interviewd/internal/storage"
	"go.uber.org/zap"
)

// InterviewService is the slice of the interview core the transport needs.
type InterviewService interface {
	RegisterUser(ctx context.Context, name, email string) (*storage.User, error)
	Start(ctx context.Context, params interview.StartParams) (*interview.StartResult, error)
	NextTurn(ctx context.Context, userID, interviewID, answer string) (*interview.TurnResult, error)
	End(ctx context.Context, userID, interviewID string) (*ai.FinalEvaluation, error)
	SessionState(ctx context.Context, userID, interviewID string) (*session.State, error)
	IngestResume(ctx context.Context, userID, fileName, contentType string, data []byte) (*storage.Resume, error)
}

// Server is the HTTP transport around the interview service.
type Server struct {
	service InterviewService
	logger  *zap.Logger
	mux     *http.ServeMux
}

func New(service InterviewService, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/users", s.handleRegisterUser)
	s.mux.HandleFunc("POST /api/resumes", s.handleUploadResume)
	s.mux.HandleFunc("POST /api/interviews", s.handleStartInterview)
	s.mux.HandleFunc("POST /api/interviews/{id}/next", s.handleNextQuestion)
	s.mux.HandleFunc("POST /api/interviews/{id}/end", s.handleEndInterview)
	s.mux.HandleFunc("GET /api/interviews/{id}/state", s.handleSessionState)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listen serves until the context is canceled, then drains in-flight
// requests. Turns can block on oracle latency, so the write timeout is
// generous.
func (s *Server) Listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
