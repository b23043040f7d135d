package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prepdeck/interviewd/internal/interview"
	"github.com/prepdeck/interviewd/internal/storage"
	"go.uber.org/zap"
)

// maxUploadBytes bounds resume uploads.
const maxUploadBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type registerUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	user, err := s.service.RegisterUser(r.Context(), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("user registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"userId": user.ID.String(),
		"name":   user.Name,
		"email":  user.Email,
	})
}

type startInterviewRequest struct {
	Title              string `json:"title"`
	Company            string `json:"company"`
	JobDescriptionText string `json:"jobDescriptionText"`
	ResumeID           string `json:"resumeId"`
}

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	var req startInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.JobDescriptionText == "" || req.ResumeID == "" {
		writeError(w, http.StatusBadRequest, "job description text and resume ID are required")
		return
	}

	result, err := s.service.Start(r.Context(), interview.StartParams{
		UserID:             userID,
		Title:              req.Title,
		Company:            req.Company,
		JobDescriptionText: req.JobDescriptionText,
		ResumeID:           req.ResumeID,
	})
	if err != nil {
		s.logger.Error("start interview failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to initialize interview")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type nextQuestionRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	var req nextQuestionRequest
	if r.Body != nil {
		// The first turn may arrive with an empty body: no answer yet.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := s.service.NextTurn(r.Context(), userID, r.PathValue("id"), req.Answer)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	evaluation, err := s.service.End(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			writeError(w, http.StatusNotFound, "interview not found")
			return
		}
		s.logger.Error("end interview failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to complete interview")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Interview completed",
		"evaluation": evaluation,
	})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	state, err := s.service.SessionState(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			writeError(w, http.StatusNotFound, "interview not found")
			return
		}
		if errors.Is(err, interview.ErrSessionExpired) {
			writeError(w, http.StatusNotFound, "interview session expired or malformed")
			return
		}
		s.logger.Error("session state lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session state")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		writeError(w, http.StatusBadRequest, "resume file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	resume, err := s.service.IngestResume(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.logger.Error("resume ingestion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process resume")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"resumeId":   resume.ID.String(),
		"parsedData": json.RawMessage(resume.ParsedData),
	})
}

// writeTurnError keeps the two turn-level failure surfaces distinct: a gone
// session tells the user to start over, anything else is a generic
// generation failure.
func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
	case errors.Is(err, interview.ErrCompleted):
		writeError(w, http.StatusBadRequest, "interview already completed")
	case errors.Is(err, interview.ErrSessionExpired):
		writeError(w, http.StatusBadRequest, "interview session expired or malformed, please start a new interview")
	default:
		s.logger.Error("turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate question")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
