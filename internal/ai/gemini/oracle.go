package gemini

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/prepdeck/interviewd/internal/ai"
	"github.com/prepdeck/interviewd/internal/utils"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

//go:embed prompts/*.md
var promptFS embed.FS

const (
	defaultMaxLogLength = 200

	// Structured calls retry twice with a fixed backoff before their
	// per-call fallback policy kicks in.
	structuredRetries = 2
	retryBackoff      = 4 * time.Second
)

// Oracle adapts the Gemini generator to the interview pipeline's six
// operations, applying each call's retry and fallback policy.
type Oracle struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int

	retries int
	backoff time.Duration
}

func NewOracle(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Oracle {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Oracle{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		retries:   structuredRetries,
		backoff:   retryBackoff,
	}
}

// ParseResume extracts structured fields from raw resume text. It never fails:
// when retries are exhausted a placeholder record is returned so ingestion can
// still store the raw document.
func (o *Oracle) ParseResume(ctx context.Context, text string) *ai.ParsedResume {
	prompt := renderPrompt("parse_resume", map[string]string{"{{RESUME_TEXT}}": text})

	var parsed ai.ParsedResume
	err := o.withRetries(ctx, "parse_resume", func(ctx context.Context) error {
		data, err := o.structuredCall(ctx, "parse_resume", prompt)
		if err != nil {
			return err
		}

		fields, err := decodeObject(data)
		if err != nil {
			return err
		}

		parsed = ai.ParsedResume{
			Name:   coerceString(fields["name"]),
			Email:  coerceString(fields["email"]),
			Phone:  coerceString(fields["phone"]),
			Skills: coerceStringSlice(fields["skills"]),
		}
		parsed.Experience = decodeExperience(fields["experience"])
		parsed.Education = decodeEducation(fields["education"])
		return nil
	})
	if err != nil {
		o.logger.Warn("resume parsing failed, returning placeholder record", zap.Error(err))
		return ai.FallbackResume()
	}

	return &parsed
}

// ParseJobDescription extracts structured requirements from a raw job
// description. Exhausting retries re-raises: the rest of the pipeline cannot
// run without valid requirements.
func (o *Oracle) ParseJobDescription(ctx context.Context, text string) (*ai.ParsedJobDescription, error) {
	prompt := renderPrompt("parse_job_description", map[string]string{"{{JD_TEXT}}": text})

	var parsed ai.ParsedJobDescription
	err := o.withRetries(ctx, "parse_job_description", func(ctx context.Context) error {
		data, err := o.structuredCall(ctx, "parse_job_description", prompt)
		if err != nil {
			return err
		}

		fields, err := decodeObject(data)
		if err != nil {
			return err
		}

		parsed = ai.ParsedJobDescription{}
		if err := mapstructure.WeakDecode(fields, &parsed); err != nil {
			return fmt.Errorf("job description fields: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse job description: %w", err)
	}

	return &parsed, nil
}

// AnalyzeSkillGap cross-references the resume against the job description and
// returns the topics the candidate is weakest in. Exhausting retries
// re-raises.
func (o *Oracle) AnalyzeSkillGap(ctx context.Context, resumeSummary, jdSummary string) ([]string, error) {
	prompt := renderPrompt("skill_gap", map[string]string{
		"{{RESUME_JSON}}": resumeSummary,
		"{{JD_JSON}}":     jdSummary,
	})

	var topics []string
	err := o.withRetries(ctx, "skill_gap", func(ctx context.Context) error {
		data, err := o.structuredCall(ctx, "skill_gap", prompt)
		if err != nil {
			return err
		}

		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("skill gap response is not a JSON array: %w", err)
		}

		topics = topics[:0]
		for _, item := range items {
			if topic := coerceString(item); topic != "" {
				topics = append(topics, topic)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyze skill gap: %w", err)
	}

	return topics, nil
}

// EvaluateAnswer grades a single candidate answer. Any failure is absorbed
// into the neutral default so a single oracle hiccup never blocks the
// interview.
func (o *Oracle) EvaluateAnswer(ctx context.Context, question, answer, jobTitle string) *ai.AnswerEvaluation {
	prompt := renderPrompt("evaluate_answer", map[string]string{
		"{{JOB_TITLE}}": jobTitle,
		"{{QUESTION}}":  question,
		"{{ANSWER}}":    answer,
	})

	data, err := o.structuredCall(ctx, "evaluate_answer", prompt)
	if err != nil {
		o.logger.Warn("answer evaluation failed, using neutral default", zap.Error(err))
		return ai.NeutralEvaluation()
	}

	fields, err := decodeObject(data)
	if err != nil {
		o.logger.Warn("answer evaluation returned malformed JSON, using neutral default", zap.Error(err))
		return ai.NeutralEvaluation()
	}

	return &ai.AnswerEvaluation{
		Feedback:         coerceString(fields["feedback"]),
		RequiresFollowUp: coerceBool(fields["requiresFollowUp"]),
		NewDeepDiveTopic: coerceString(fields["newDeepDiveTopic"]),
	}
}

// GenerateQuestion produces the next interviewer utterance as free text. The
// output is used verbatim; failure propagates since there is no safe fallback
// question.
func (o *Oracle) GenerateQuestion(ctx context.Context, prompt string) (string, error) {
	o.logger.Debug("question generation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, o.maxLogLen)),
	)

	text, err := o.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate question: %w", err)
	}

	o.logger.Debug("question generation response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, o.maxLogLen)),
	)

	return text, nil
}

// GenerateFinalEvaluation builds the scored report for a completed interview.
// It returns nil on failure so the caller can still mark the interview
// complete without a report.
func (o *Oracle) GenerateFinalEvaluation(ctx context.Context, transcriptJSON, requirementsJSON string) *ai.FinalEvaluation {
	prompt := renderPrompt("final_evaluation", map[string]string{
		"{{REQUIREMENTS_JSON}}": requirementsJSON,
		"{{TRANSCRIPT_JSON}}":   transcriptJSON,
	})

	data, err := o.structuredCall(ctx, "final_evaluation", prompt)
	if err != nil {
		o.logger.Warn("final evaluation generation failed", zap.Error(err))
		return nil
	}

	fields, err := decodeObject(data)
	if err != nil {
		o.logger.Warn("final evaluation returned malformed JSON", zap.Error(err))
		return nil
	}

	var report ai.FinalEvaluation
	if err := mapstructure.WeakDecode(fields, &report); err != nil {
		o.logger.Warn("final evaluation has malformed fields", zap.Error(err))
		return nil
	}

	return &report
}

// structuredCall performs one JSON-mode round trip and returns the cleaned
// response bytes. Fencing noise is stripped before the caller parses.
func (o *Oracle) structuredCall(ctx context.Context, op, prompt string) ([]byte, error) {
	o.logger.Debug("oracle structured request",
		zap.String("operation", op),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, o.maxLogLen)),
	)

	raw, err := o.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("oracle structured response",
		zap.String("operation", op),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, o.maxLogLen)),
	)

	return []byte(extractJSON(raw)), nil
}

// withRetries runs attempt up to 1+retries times with a fixed backoff between
// tries. A malformed response is treated identically to an oracle error.
func (o *Oracle) withRetries(ctx context.Context, op string, attempt func(context.Context) error) error {
	var err error
	for try := 0; try <= o.retries; try++ {
		if try > 0 {
			if werr := utils.WaitFor(ctx, o.backoff); werr != nil {
				return werr
			}
		}

		if err = attempt(ctx); err == nil {
			return nil
		}

		o.logger.Warn("oracle call failed",
			zap.String("operation", op),
			zap.Int("retries_left", o.retries-try),
			zap.Error(err),
		)
	}

	return err
}

func renderPrompt(name string, replacements map[string]string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		// Embedded files are part of the build; a miss is a programming error.
		panic(fmt.Sprintf("missing embedded prompt %q: %v", name, err))
	}

	prompt := string(data)
	for placeholder, value := range replacements {
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func decodeObject(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("response is an empty JSON object")
	}
	return fields, nil
}

func decodeExperience(v any) []ai.ExperienceEntry {
	entries := []ai.ExperienceEntry{}
	if v == nil {
		return entries
	}
	if err := mapstructure.WeakDecode(v, &entries); err != nil {
		return []ai.ExperienceEntry{}
	}
	return entries
}

func decodeEducation(v any) []ai.EducationEntry {
	entries := []ai.EducationEntry{}
	if v == nil {
		return entries
	}
	if err := mapstructure.WeakDecode(v, &entries); err != nil {
		return []ai.EducationEntry{}
	}
	return entries
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			result = append(result, s)
		}
	}
	return result
}
