package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager owns session lifecycle: it creates the zero state when an interview
// starts and tears the session down when the interview ends. Turn-by-turn
// mutation belongs to the orchestrator, not here.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// StartParams carries the immutable context fixed at session creation.
type StartParams struct {
	InterviewID   string
	UserID        string
	JobTitle      string
	CandidateName string
	InitialTopics []string
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Start builds the initial state for a new interview and writes it to the
// store. InitialTopics seed both the base skill-gap cycle and the unprobed
// deep-dive queue.
func (m *Manager) Start(ctx context.Context, params StartParams) (*State, error) {
	if params.InterviewID == "" {
		return nil, fmt.Errorf("interview id is required")
	}

	deepDives := make([]DeepDiveTopic, 0, len(params.InitialTopics))
	for _, topic := range params.InitialTopics {
		deepDives = append(deepDives, DeepDiveTopic{Topic: topic})
	}

	state := &State{
		InterviewID:    params.InterviewID,
		UserID:         params.UserID,
		Status:         StatusInProgress,
		StartTime:      m.now(),
		DeepDiveTopics: deepDives,
		Transcript:     []Exchange{},
		JobTitle:       params.JobTitle,
		CandidateName:  params.CandidateName,
		BaseSkillGaps:  params.InitialTopics,
	}

	if err := m.store.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.logger.Info("interview session initialized",
		zap.String("interview_id", params.InterviewID),
		zap.String("job_title", params.JobTitle),
		zap.Int("initial_topics", len(params.InitialTopics)),
	)

	return state, nil
}

// Get returns the live state for the interview, or ErrNotFound when the
// session is gone.
func (m *Manager) Get(ctx context.Context, interviewID string) (*State, error) {
	return m.store.Get(ctx, interviewID)
}

// End deletes the session. Final evaluation works off durably stored
// transcript data, so nothing here survives on purpose.
func (m *Manager) End(ctx context.Context, interviewID string) error {
	if err := m.store.Delete(ctx, interviewID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	m.logger.Info("interview session cleared", zap.String("interview_id", interviewID))

	return nil
}
