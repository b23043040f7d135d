package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prepdeck/interviewd/internal/ai"
	"github.com/prepdeck/interviewd/internal/ingest"
	"github.com/prepdeck/interviewd/internal/session"
	"github.com/prepdeck/interviewd/internal/storage"
	"go.uber.org/zap"
)

// Sentinel errors mapped to distinct user-visible failures. A gone session is
// never conflated with a failed turn.
var (
	ErrNotFound       = errors.New("interview not found")
	ErrCompleted      = errors.New("interview already completed")
	ErrSessionExpired = errors.New("interview session expired or malformed")
)

// DefaultTopics seeds an interview when no usable skill-gap topics are
// available.
var DefaultTopics = []string{"General Background", "Technical Fundamentals", "Problem Solving"}

const (
	defaultJobTitle      = "Untitled Role"
	defaultCompany       = "Unknown Company"
	defaultCandidateName = "Candidate"
)

// Service ties the orchestration core to its collaborators: durable storage,
// the session lifecycle manager and the oracle. It owns the start/turn/end
// flows and resume ingestion.
type Service struct {
	sessions     *session.Manager
	orchestrator *Orchestrator
	oracle       ai.Oracle
	store        *storage.Storage
	logger       *zap.Logger
}

func NewService(sessions *session.Manager, orchestrator *Orchestrator, oracle ai.Oracle, store *storage.Storage, logger *zap.Logger) *Service {
	return &Service{
		sessions:     sessions,
		orchestrator: orchestrator,
		oracle:       oracle,
		store:        store,
		logger:       logger,
	}
}

// RegisterUser provisions the owner record that resumes and interviews hang
// off. Authentication lives upstream; this only creates the row.
func (s *Service) RegisterUser(ctx context.Context, name, email string) (*storage.User, error) {
	user, err := s.store.CreateUser(ctx, storage.CreateUserParams{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))

	return &user, nil
}

// StartParams carries the request to begin a new interview.
type StartParams struct {
	UserID             string
	Title              string
	Company            string
	JobDescriptionText string
	ResumeID           string
}

// StartResult is returned once the interview is initialized.
type StartResult struct {
	InterviewID      string   `json:"interviewId"`
	SkillGapAnalysis []string `json:"skillGapAnalysis"`
}

// Start parses the job description, derives skill-gap topics, creates the
// durable interview record and initializes the live session.
func (s *Service) Start(ctx context.Context, params StartParams) (*StartResult, error) {
	userID, err := uuid.Parse(params.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	resumeID, err := uuid.Parse(params.ResumeID)
	if err != nil {
		return nil, fmt.Errorf("invalid resume id: %w", err)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	resume, err := s.store.GetResume(ctx, resumeID, userID)
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}

	// Job-description parsing is load-bearing: failure here aborts the start.
	jd, err := s.oracle.ParseJobDescription(ctx, params.JobDescriptionText)
	if err != nil {
		return nil, err
	}

	jdJSON, err := json.Marshal(jd)
	if err != nil {
		return nil, fmt.Errorf("encode job description: %w", err)
	}

	title := params.Title
	if title == "" {
		title = jd.Title
	}
	if title == "" {
		title = defaultJobTitle
	}
	company := params.Company
	if company == "" {
		company = defaultCompany
	}

	jdRecord, err := s.store.CreateJobDescription(ctx, storage.CreateJobDescriptionParams{
		ID:         uuid.New(),
		Title:      title,
		Company:    company,
		RawText:    params.JobDescriptionText,
		ParsedData: jdJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("save job description: %w", err)
	}

	topics, err := s.oracle.AnalyzeSkillGap(ctx, string(resume.ParsedData), string(jdJSON))
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		s.logger.Warn("skill gap analysis yielded no topics, using defaults",
			zap.String("job_description_id", jdRecord.ID.String()),
		)
		topics = DefaultTopics
	}

	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("encode skill gaps: %w", err)
	}

	interviewID := uuid.New()
	if _, err := s.store.CreateInterview(ctx, storage.CreateInterviewParams{
		ID:               interviewID,
		UserID:           userID,
		JobDescriptionID: jdRecord.ID,
		Status:           session.StatusInProgress,
		SkillGapAnalysis: topicsJSON,
	}); err != nil {
		return nil, fmt.Errorf("save interview: %w", err)
	}

	candidateName := user.Name
	if candidateName == "" {
		candidateName = defaultCandidateName
	}

	if _, err := s.sessions.Start(ctx, session.StartParams{
		InterviewID:   interviewID.String(),
		UserID:        params.UserID,
		JobTitle:      title,
		CandidateName: candidateName,
		InitialTopics: topics,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("interview started",
		zap.String("interview_id", interviewID.String()),
		zap.String("job_title", title),
	)

	return &StartResult{
		InterviewID:      interviewID.String(),
		SkillGapAnalysis: topics,
	}, nil
}

// NextTurn advances the interview by one turn. The answer is empty on the
// very first call. After the turn, the live transcript is mirrored into the
// durable record.
func (s *Service) NextTurn(ctx context.Context, userIDStr, interviewIDStr, answer string) (*TurnResult, error) {
	userID, interviewID, err := parseIDs(userIDStr, interviewIDStr)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetInterview(ctx, interviewID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load interview: %w", err)
	}

	if record.Status == session.StatusCompleted {
		return nil, ErrCompleted
	}

	// The session store is authoritative for liveness: a missing session on
	// in-progress durable state means the session expired, not that a new
	// one should be fabricated.
	if _, err := s.sessions.Get(ctx, interviewIDStr); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	result, err := s.orchestrator.AdvanceTurn(ctx, interviewIDStr, answer)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	s.mirrorTranscript(ctx, interviewID, interviewIDStr)

	return result, nil
}

// End completes the interview: the final evaluation is generated from the
// durably stored transcript, the record is marked COMPLETED, and the live
// session is cleared. A nil evaluation still completes the interview.
func (s *Service) End(ctx context.Context, userIDStr, interviewIDStr string) (*ai.FinalEvaluation, error) {
	userID, interviewID, err := parseIDs(userIDStr, interviewIDStr)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetInterview(ctx, interviewID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load interview: %w", err)
	}

	jd, err := s.store.GetJobDescription(ctx, record.JobDescriptionID)
	if err != nil {
		return nil, fmt.Errorf("load job description: %w", err)
	}

	evaluation := s.oracle.GenerateFinalEvaluation(ctx, string(record.Transcript), string(jd.ParsedData))

	var evalJSON json.RawMessage
	if evaluation != nil {
		if evalJSON, err = json.Marshal(evaluation); err != nil {
			return nil, fmt.Errorf("encode evaluation: %w", err)
		}
	}

	if err := s.store.CompleteInterview(ctx, interviewID, session.StatusCompleted, evalJSON); err != nil {
		return nil, fmt.Errorf("complete interview: %w", err)
	}

	if err := s.sessions.End(ctx, interviewIDStr); err != nil {
		// The record is already completed; TTL will reclaim the session.
		s.logger.Warn("failed to clear session", zap.String("interview_id", interviewIDStr), zap.Error(err))
	}

	s.logger.Info("interview completed",
		zap.String("interview_id", interviewIDStr),
		zap.Bool("has_evaluation", evaluation != nil),
	)

	return evaluation, nil
}

// SessionState returns the live session state, or ErrSessionExpired when it
// is gone. The session must belong to the requesting user; a mismatch looks
// identical to a missing interview.
func (s *Service) SessionState(ctx context.Context, userID, interviewID string) (*session.State, error) {
	state, err := s.sessions.Get(ctx, interviewID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if state.UserID != userID {
		return nil, ErrNotFound
	}
	return state, nil
}

// IngestResume extracts text from an uploaded document, runs the structured
// parse (which never hard-fails) and persists the result.
func (s *Service) IngestResume(ctx context.Context, userIDStr, fileName, contentType string, data []byte) (*storage.Resume, error) {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	text, err := ingest.ExtractText(contentType, data)
	if err != nil {
		return nil, fmt.Errorf("extract resume text: %w", err)
	}

	parsed := s.oracle.ParseResume(ctx, text)
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("encode parsed resume: %w", err)
	}

	resume, err := s.store.CreateResume(ctx, storage.CreateResumeParams{
		ID:         uuid.New(),
		UserID:     userID,
		FileName:   fileName,
		RawText:    text,
		ParsedData: parsedJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("save resume: %w", err)
	}

	s.logger.Info("resume ingested",
		zap.String("resume_id", resume.ID.String()),
		zap.Bool("parse_fallback", parsed.ParseError != ""),
	)

	return &resume, nil
}

func (s *Service) mirrorTranscript(ctx context.Context, interviewID uuid.UUID, interviewIDStr string) {
	state, err := s.sessions.Get(ctx, interviewIDStr)
	if err != nil {
		// Expected right after an END_INTERVIEW turn cleared by the caller;
		// nothing to mirror.
		return
	}

	transcript, err := json.Marshal(state.Transcript)
	if err != nil {
		s.logger.Warn("failed to encode transcript", zap.String("interview_id", interviewIDStr), zap.Error(err))
		return
	}

	if err := s.store.UpdateInterviewTranscript(ctx, interviewID, transcript); err != nil {
		s.logger.Warn("failed to mirror transcript", zap.String("interview_id", interviewIDStr), zap.Error(err))
	}
}

func parseIDs(userID, interviewID string) (uuid.UUID, uuid.UUID, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	iid, err := uuid.Parse(interviewID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid interview id: %w", err)
	}
	return uid, iid, nil
}
