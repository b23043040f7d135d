// Package ai defines the contract between the interview core and the
// text-generation oracle. The oracle is an external black box: its structured
// responses are untrusted input, and each operation carries its own
// retry/fallback policy depending on whether a safe default exists.
package ai

import "context"

// ExperienceEntry is one position extracted from a resume.
type ExperienceEntry struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// EducationEntry is one education record extracted from a resume.
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Year        string `json:"year"`
}

// ParsedResume holds the structured fields extracted from raw resume text.
// ParseError is set on the fallback record returned when structured parsing
// repeatedly fails; ingestion proceeds regardless.
type ParsedResume struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
	ParseError string            `json:"error,omitempty"`
}

// ParsedJobDescription holds the structured requirements extracted from a raw
// job description.
type ParsedJobDescription struct {
	Title            string   `json:"title"`
	MandatorySkills  []string `json:"mandatorySkills"`
	NiceToHaveSkills []string `json:"niceToHaveSkills"`
	Responsibilities []string `json:"responsibilities"`
	ExperienceLevel  string   `json:"experienceLevel"`
}

// AnswerEvaluation is the oracle's verdict on a single candidate answer.
type AnswerEvaluation struct {
	Feedback         string `json:"feedback"`
	RequiresFollowUp bool   `json:"requiresFollowUp"`
	NewDeepDiveTopic string `json:"newDeepDiveTopic,omitempty"`
}

// FinalEvaluation is the scored report generated when an interview completes.
type FinalEvaluation struct {
	OverallScore     float64  `json:"overallScore"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	DetailedFeedback string   `json:"detailedFeedback"`
}

// Oracle is the full set of text-generation operations the interview pipeline
// consumes. Return shapes encode the per-call failure policy:
//
//   - ParseResume never fails; on exhausted retries it returns a placeholder
//     record with ParseError set, so ingestion is never blocked by parsing.
//   - ParseJobDescription and AnalyzeSkillGap retry, then re-raise: the rest
//     of the pipeline cannot proceed without them.
//   - EvaluateAnswer absorbs any failure into a neutral default so a single
//     oracle hiccup never blocks turn progression.
//   - GenerateQuestion propagates failure; there is no safe fallback question.
//   - GenerateFinalEvaluation returns nil on failure, letting the caller
//     complete the interview without a report rather than leaving it stuck.
type Oracle interface {
	ParseResume(ctx context.Context, text string) *ParsedResume
	ParseJobDescription(ctx context.Context, text string) (*ParsedJobDescription, error)
	AnalyzeSkillGap(ctx context.Context, resumeSummary, jdSummary string) ([]string, error)
	EvaluateAnswer(ctx context.Context, question, answer, jobTitle string) *AnswerEvaluation
	GenerateQuestion(ctx context.Context, prompt string) (string, error)
	GenerateFinalEvaluation(ctx context.Context, transcriptJSON, requirementsJSON string) *FinalEvaluation
}

// NeutralEvaluation is the defined default used when answer evaluation fails.
func NeutralEvaluation() *AnswerEvaluation {
	return &AnswerEvaluation{
		Feedback:         "Answer recorded.",
		RequiresFollowUp: false,
	}
}

// FallbackResume is the defined placeholder returned when resume parsing
// exhausts its retries.
func FallbackResume() *ParsedResume {
	return &ParsedResume{
		Name:       "Unparsed Candidate",
		Skills:     []string{},
		Experience: []ExperienceEntry{},
		Education:  []EducationEntry{},
		ParseError: "parsing failed due to malformed output",
	}
}
