package session

import "time"

// Interview session status values.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// DeepDiveTopic is a topic surfaced mid-interview from an answer evaluation.
// Once probed it stays probed for the remainder of the session.
type DeepDiveTopic struct {
	Topic  string `json:"topic"`
	Probed bool   `json:"probed"`
}

// Exchange is a single question/answer pair in the interview transcript. The
// most recent exchange may have an empty Answer while the candidate's response
// is pending.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Feedback string `json:"feedback,omitempty"`
}

// State is the live orchestration record for one in-progress interview. It is
// owned by the orchestrator/store pair and mutated only through sequential
// turns.
type State struct {
	InterviewID string `json:"interviewId"`
	UserID      string `json:"userId"`
	Status      string `json:"status"`

	// CurrentQuestionIndex counts base (non-follow-up) topics consumed.
	CurrentQuestionIndex int `json:"currentQuestionIndex"`
	// FollowUpCount is the number of consecutive follow-ups on the current
	// base topic. Reset to zero whenever a new base topic is asked.
	FollowUpCount       int       `json:"followUpCount"`
	TotalQuestionsAsked int       `json:"totalQuestionsAsked"`
	StartTime           time.Time `json:"startTime"`

	DeepDiveTopics []DeepDiveTopic `json:"deepDiveTopics"`
	Transcript     []Exchange      `json:"transcript"`

	JobTitle      string   `json:"jobTitle"`
	CandidateName string   `json:"candidateName"`
	BaseSkillGaps []string `json:"baseSkillGaps"`
}

// Elapsed returns the interview duration as of now.
func (s *State) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// LastExchange returns the most recently appended exchange, or nil when the
// transcript is empty.
func (s *State) LastExchange() *Exchange {
	if len(s.Transcript) == 0 {
		return nil
	}
	return &s.Transcript[len(s.Transcript)-1]
}
