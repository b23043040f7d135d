package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	responses  []string
	errs       []error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) next() (string, error) {
	idx := s.calls
	s.calls++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	var resp string
	if idx < len(s.responses) {
		resp = s.responses[idx]
	}
	return resp, err
}

func (s *stubGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.next()
}

func (s *stubGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.next()
}

func newTestOracle(stub *stubGenerator) *Oracle {
	oracle := NewOracle(stub, zap.NewNop(), 0)
	oracle.backoff = 0
	return oracle
}

func TestParseResume(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"phone": "555-0100",
		"skills": ["Go", "Postgres"],
		"experience": [{"company": "Analytical Engines", "role": "Engineer", "duration": "2y", "description": "Compute"}],
		"education": [{"institution": "Somerville", "degree": "Mathematics", "year": "1835"}]
	}`}}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "raw resume text")

	if parsed.Name != "Ada Lovelace" {
		t.Fatalf("unexpected name: %q", parsed.Name)
	}
	if len(parsed.Skills) != 2 || parsed.Skills[0] != "Go" {
		t.Fatalf("unexpected skills: %v", parsed.Skills)
	}
	if len(parsed.Experience) != 1 || parsed.Experience[0].Company != "Analytical Engines" {
		t.Fatalf("unexpected experience: %v", parsed.Experience)
	}
	if parsed.ParseError != "" {
		t.Fatalf("unexpected parse error: %q", parsed.ParseError)
	}
	if !strings.Contains(stub.lastPrompt, "raw resume text") {
		t.Fatal("expected resume text embedded in prompt")
	}
}

func TestParseResumeDecodesLooseEntryTypes(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"name": "Ada",
		"skills": [],
		"experience": [{"company": "Analytical Engines", "role": "Engineer", "duration": 2, "description": "Compute"}],
		"education": [{"institution": "Somerville", "degree": "Mathematics", "year": 1835}]
	}`}}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "text")

	if len(parsed.Experience) != 1 || parsed.Experience[0].Duration != "2" {
		t.Fatalf("expected numeric duration decoded to string, got %+v", parsed.Experience)
	}
	if len(parsed.Education) != 1 || parsed.Education[0].Year != "1835" {
		t.Fatalf("expected numeric year decoded to string, got %+v", parsed.Education)
	}
}

func TestParseResumeMalformedEntriesYieldEmptyCollections(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"name": "Ada",
		"skills": ["Go"],
		"experience": "ten years of everything",
		"education": 7
	}`}}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "text")

	if parsed.Name != "Ada" {
		t.Fatalf("expected scalar fields decoded despite malformed entries, got %+v", parsed)
	}
	if parsed.Experience == nil || len(parsed.Experience) != 0 {
		t.Fatalf("expected empty non-nil experience, got %#v", parsed.Experience)
	}
	if parsed.Education == nil || len(parsed.Education) != 0 {
		t.Fatalf("expected empty non-nil education, got %#v", parsed.Education)
	}
}

func TestParseResumeStripsFencing(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{"```json\n{\"name\": \"Ada\", \"skills\": []}\n```"}}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "text")

	if parsed.Name != "Ada" {
		t.Fatalf("expected fencing to be stripped, got name %q", parsed.Name)
	}
}

func TestParseResumeFallsBackAfterRetries(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{"not json", "still not json", "nope"}}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "text")

	if stub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.calls)
	}
	if parsed.Name != "Unparsed Candidate" || parsed.ParseError == "" {
		t.Fatalf("expected fallback record, got %+v", parsed)
	}
	if parsed.Skills == nil || parsed.Experience == nil || parsed.Education == nil {
		t.Fatal("fallback record must carry empty, non-nil collections")
	}
}

func TestParseResumeRetriesOnOracleError(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{
		responses: []string{"", `{"name": "Ada", "skills": []}`},
		errs:      []error{errors.New("rate limited"), nil},
	}

	parsed := newTestOracle(stub).ParseResume(context.Background(), "text")

	if stub.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", stub.calls)
	}
	if parsed.Name != "Ada" {
		t.Fatalf("expected retry to succeed, got %+v", parsed)
	}
}

func TestParseJobDescription(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"title": "Backend Engineer",
		"mandatorySkills": ["Go"],
		"niceToHaveSkills": ["Redis"],
		"responsibilities": ["Build services"],
		"experienceLevel": "Senior"
	}`}}

	parsed, err := newTestOracle(stub).ParseJobDescription(context.Background(), "jd text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Title != "Backend Engineer" || parsed.ExperienceLevel != "Senior" {
		t.Fatalf("unexpected result: %+v", parsed)
	}
}

func TestParseJobDescriptionExhaustedRetriesReRaise(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{"bad", "bad", "bad"}}

	if _, err := newTestOracle(stub).ParseJobDescription(context.Background(), "jd"); err == nil {
		t.Fatal("expected error after exhausted retries")
	}

	if stub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.calls)
	}
}

func TestAnalyzeSkillGap(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`["System Design", "Kubernetes", "React Hooks", "PostgreSQL indexing", "OAuth"]`}}

	topics, err := newTestOracle(stub).AnalyzeSkillGap(context.Background(), "resume", "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(topics) != 5 || topics[0] != "System Design" {
		t.Fatalf("unexpected topics: %v", topics)
	}
}

func TestAnalyzeSkillGapRejectsNonArray(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{"topics": []}`, `{}`, `{}`}}

	if _, err := newTestOracle(stub).AnalyzeSkillGap(context.Background(), "resume", "jd"); err == nil {
		t.Fatal("expected error for non-array response")
	}
}

func TestEvaluateAnswer(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"feedback": "Solid answer.",
		"requiresFollowUp": true,
		"newDeepDiveTopic": "Connection pooling"
	}`}}

	eval := newTestOracle(stub).EvaluateAnswer(context.Background(), "Q", "A", "Backend Engineer")

	if eval.Feedback != "Solid answer." || !eval.RequiresFollowUp || eval.NewDeepDiveTopic != "Connection pooling" {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}
	if !strings.Contains(stub.lastPrompt, "Backend Engineer") {
		t.Fatal("expected job title embedded in prompt")
	}
}

func TestEvaluateAnswerAbsorbsFailure(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{errs: []error{errors.New("oracle down")}}

	eval := newTestOracle(stub).EvaluateAnswer(context.Background(), "Q", "A", "title")

	if stub.calls != 1 {
		t.Fatalf("expected a single attempt without retry, got %d", stub.calls)
	}
	if eval.Feedback != "Answer recorded." || eval.RequiresFollowUp {
		t.Fatalf("expected neutral default, got %+v", eval)
	}
}

func TestEvaluateAnswerCoercesLooseTypes(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{"feedback": "ok", "requiresFollowUp": "true"}`}}

	eval := newTestOracle(stub).EvaluateAnswer(context.Background(), "Q", "A", "title")

	if !eval.RequiresFollowUp {
		t.Fatal("expected string \"true\" coerced to boolean")
	}
}

func TestGenerateQuestionPropagatesFailure(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{errs: []error{errors.New("oracle down")}}

	if _, err := newTestOracle(stub).GenerateQuestion(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestGenerateFinalEvaluation(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{responses: []string{`{
		"overallScore": 85,
		"strengths": ["communication"],
		"weaknesses": ["depth"],
		"detailedFeedback": "Good session."
	}`}}

	report := newTestOracle(stub).GenerateFinalEvaluation(context.Background(), "[]", "{}")

	if report == nil {
		t.Fatal("expected report")
	}
	if report.OverallScore != 85 || report.DetailedFeedback != "Good session." {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGenerateFinalEvaluationReturnsNilOnFailure(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{errs: []error{errors.New("oracle down")}}

	if report := newTestOracle(stub).GenerateFinalEvaluation(context.Background(), "[]", "{}"); report != nil {
		t.Fatalf("expected nil report, got %+v", report)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "plain json untouched",
			input:  `{"a": 1}`,
			expect: `{"a": 1}`,
		},
		{
			name:   "json fence",
			input:  "```json\n{\"a\": 1}\n```",
			expect: `{"a": 1}`,
		},
		{
			name:   "bare fence",
			input:  "```\n[1, 2]\n```",
			expect: `[1, 2]`,
		},
		{
			name:   "surrounding whitespace",
			input:  "  {\"a\": 1}\n",
			expect: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractJSON(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
