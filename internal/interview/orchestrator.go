// Package interview contains the orchestration core: the state machine that
// decides, turn by turn, what a live interview asks next and when it ends.
package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/prepdeck/interviewd/internal/ai"
	"github.com/prepdeck/interviewd/internal/session"
	"go.uber.org/zap"
)

// Action is the orchestrator's verdict for one turn.
type Action string

const (
	ActionContinue     Action = "CONTINUE"
	ActionEndInterview Action = "END_INTERVIEW"
)

const (
	// maxFollowUps caps consecutive follow-ups on one base topic.
	maxFollowUps = 2
	// maxQuestions is the hard safety valve regardless of elapsed time.
	maxQuestions = 30

	hardStopAfter = 60 * time.Minute
	softStopAfter = 30 * time.Minute

	// recentExchanges is how much transcript the question prompt carries.
	recentExchanges = 3

	timeUpFeedback = "Time is up. Concluding the interview."
	wrapUpFeedback = "We have covered enough topics today."
)

//go:embed question_prompt.md
var questionPrompt string

// TurnResult is what one AdvanceTurn call returns to the transport layer.
type TurnResult struct {
	Action     Action `json:"action"`
	Question   string `json:"question,omitempty"`
	IsFollowUp bool   `json:"isFollowUp,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// Orchestrator drives the per-turn decision logic against the session store
// and the oracle. Turns for the same interview serialize on a keyed lock;
// different interviews are independent.
type Orchestrator struct {
	store  session.Store
	oracle ai.Oracle
	logger *zap.Logger
	locks  *keyedLocks
	now    func() time.Time
}

func NewOrchestrator(store session.Store, oracle ai.Oracle, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		oracle: oracle,
		logger: logger,
		locks:  newKeyedLocks(),
		now:    time.Now,
	}
}

// AdvanceTurn runs one turn of the interview. An empty answer means there is
// nothing to evaluate, which is the case on the very first call for a
// session. A missing session surfaces as session.ErrNotFound and must never
// be papered over with a fresh state.
func (o *Orchestrator) AdvanceTurn(ctx context.Context, interviewID, answer string) (*TurnResult, error) {
	release := o.locks.acquire(interviewID)
	defer release()

	state, err := o.store.Get(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	feedback := ""
	isFollowUp := false

	// Step 1: evaluate the answer to the pending question, if any. State is
	// persisted immediately so a crash before question generation cannot
	// lose the recorded answer.
	if answer != "" && len(state.Transcript) > 0 {
		pending := state.LastExchange()
		eval := o.oracle.EvaluateAnswer(ctx, pending.Question, answer, state.JobTitle)

		feedback = eval.Feedback
		pending.Answer = answer
		pending.Feedback = eval.Feedback

		if eval.NewDeepDiveTopic != "" {
			state.DeepDiveTopics = append(state.DeepDiveTopics, session.DeepDiveTopic{Topic: eval.NewDeepDiveTopic})
			o.logger.Debug("queued deep dive topic",
				zap.String("interview_id", interviewID),
				zap.String("topic", eval.NewDeepDiveTopic),
			)
		}

		isFollowUp = eval.RequiresFollowUp && state.FollowUpCount < maxFollowUps

		if err := o.store.Set(ctx, state); err != nil {
			return nil, fmt.Errorf("persist evaluated answer: %w", err)
		}
	}

	// Step 2: pick the next topic. An unprobed deep-dive always wins over
	// cycling the base list, and probing intent marks coverage before the
	// question is even generated.
	topic := ""
	var deepDive *session.DeepDiveTopic
	for i := range state.DeepDiveTopics {
		if !state.DeepDiveTopics[i].Probed {
			deepDive = &state.DeepDiveTopics[i]
			break
		}
	}

	switch {
	case deepDive != nil:
		topic = deepDive.Topic
		if !isFollowUp {
			deepDive.Probed = true
		}
	case len(state.BaseSkillGaps) > 0:
		topic = state.BaseSkillGaps[state.CurrentQuestionIndex%len(state.BaseSkillGaps)]
	}

	// Step 3: termination, checked before generating a new question. When
	// ending, the state is not mutated further: the pending exchange stays
	// answered from step 1 and no new question is appended.
	elapsed := state.Elapsed(o.now())
	allGapsCovered := state.CurrentQuestionIndex >= len(state.BaseSkillGaps)
	allDeepDivesProbed := true
	for _, t := range state.DeepDiveTopics {
		if !t.Probed {
			allDeepDivesProbed = false
			break
		}
	}

	if elapsed >= hardStopAfter || (elapsed >= softStopAfter && allGapsCovered && allDeepDivesProbed) {
		o.logger.Info("ending interview",
			zap.String("interview_id", interviewID),
			zap.String("reason", "time"),
			zap.Duration("elapsed", elapsed),
		)
		if feedback == "" {
			feedback = timeUpFeedback
		}
		return &TurnResult{Action: ActionEndInterview, Feedback: feedback}, nil
	}

	if state.TotalQuestionsAsked >= maxQuestions {
		o.logger.Info("ending interview",
			zap.String("interview_id", interviewID),
			zap.String("reason", "question cap"),
			zap.Int("total_questions", state.TotalQuestionsAsked),
		)
		if feedback == "" {
			feedback = wrapUpFeedback
		}
		return &TurnResult{Action: ActionEndInterview, Feedback: feedback}, nil
	}

	// Step 4: generate the next question. The output is used verbatim.
	prompt := o.buildQuestionPrompt(state, topic, elapsed)
	question, err := o.oracle.GenerateQuestion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate question: %w", err)
	}

	// Step 5: append the pending exchange and advance the counters.
	state.Transcript = append(state.Transcript, session.Exchange{Question: question})
	state.TotalQuestionsAsked++
	if isFollowUp {
		state.FollowUpCount++
	} else {
		state.CurrentQuestionIndex++
		state.FollowUpCount = 0
	}

	if err := o.store.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("persist new question: %w", err)
	}

	o.logger.Debug("turn advanced",
		zap.String("interview_id", interviewID),
		zap.String("topic", topic),
		zap.Bool("follow_up", isFollowUp),
		zap.Int("total_questions", state.TotalQuestionsAsked),
	)

	return &TurnResult{
		Action:     ActionContinue,
		Question:   question,
		IsFollowUp: isFollowUp,
		Feedback:   feedback,
	}, nil
}

func (o *Orchestrator) buildQuestionPrompt(state *session.State, topic string, elapsed time.Duration) string {
	recent := state.Transcript
	if len(recent) > recentExchanges {
		recent = recent[len(recent)-recentExchanges:]
	}
	history, err := json.Marshal(recent)
	if err != nil {
		history = []byte("[]")
	}

	replacements := map[string]string{
		"{{JOB_TITLE}}":         state.JobTitle,
		"{{CANDIDATE_NAME}}":    state.CandidateName,
		"{{TOPIC}}":             topic,
		"{{QUESTION_NUMBER}}":   strconv.Itoa(state.TotalQuestionsAsked + 1),
		"{{FOLLOW_UP_COUNT}}":   strconv.Itoa(state.FollowUpCount),
		"{{ELAPSED_MINUTES}}":   strconv.Itoa(int(elapsed.Minutes())),
		"{{RECENT_TRANSCRIPT}}": string(history),
	}

	prompt := questionPrompt
	for placeholder, value := range replacements {
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}
