package plot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"plottheplot/pkg/inference"
	"plottheplot/pkg/schema"
	"plottheplot/pkg/utils"
)

var (
	// ErrExtractionFailed means the extraction retry budget was exhausted.
	ErrExtractionFailed = errors.New("story extraction failed")
	// ErrValidationFailed means the validation retry budget was exhausted.
	ErrValidationFailed = errors.New("analysis validation failed")
)

// errMalformedPayload covers non-object or missing-field model output. It is
// retried like any transient fault and never surfaced on its own.
var errMalformedPayload = errors.New("model returned a malformed payload")

// retrySleep is swapped out in tests.
var retrySleep = time.Sleep

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 5 * time.Second

	// validationTextCap is the hard cut on how much of the story is re-sent
	// with the validation prompt.
	validationTextCap = 8000
)

// Analyzer runs the two LLM passes over a story: extraction of
// characters/relations/summary, and validation of a prior extraction against
// the source text. All fields are read-only after construction, so one
// Analyzer serves concurrent requests.
type Analyzer struct {
	inferencer  inference.Inferencer
	maxAttempts int
	retryDelay  time.Duration
	temperature float64
}

func NewAnalyzer(inf inference.Inferencer) *Analyzer {
	return &Analyzer{
		inferencer:  inf,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		temperature: 0.8,
	}
}

// Extract runs the extraction pass over the full story text.
func (a *Analyzer) Extract(ctx context.Context, text string) (*schema.Analysis, error) {
	params := &openai.ChatCompletionNewParams{
		Temperature:    openai.Float(a.temperature),
		ResponseFormat: schema.AnalysisResponseFormat(),
	}
	logPromptSize("extraction", extractionPrompt, text)

	var analysis *schema.Analysis
	err := a.withRetries(ctx, "extraction", func() error {
		out, err := a.inferencer.Infer(ctx, params, extractionPrompt, text)
		if err != nil {
			return err
		}
		parsed, err := decodeObject[schema.Analysis](out, "characters", "relations", "summary")
		if err != nil {
			return err
		}
		analysis = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return analysis, nil
}

// Validate runs the second pass, cross-checking analysis against the story and
// its bibliographic record. The analysis is only serialized, never mutated.
func (a *Analyzer) Validate(ctx context.Context, text string, analysis *schema.Analysis, meta schema.Metadata) (*schema.Validation, error) {
	user := buildValidationPrompt(text, analysis, meta)
	params := &openai.ChatCompletionNewParams{
		Temperature:    openai.Float(a.temperature),
		ResponseFormat: schema.ValidationResponseFormat(),
	}
	logPromptSize("validation", validationPrompt, user)

	var validation *schema.Validation
	err := a.withRetries(ctx, "validation", func() error {
		out, err := a.inferencer.Infer(ctx, params, validationPrompt, user)
		if err != nil {
			return err
		}
		parsed, err := decodeObject[schema.Validation](out, "known_story", "issues", "notes", "score")
		if err != nil {
			return err
		}
		validation = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return validation, nil
}

// buildValidationPrompt assembles the user message for the validation pass:
// title/author, the first validationTextCap characters of the story, and the
// pretty-printed extraction result.
func buildValidationPrompt(text string, analysis *schema.Analysis, meta schema.Metadata) string {
	var sb strings.Builder
	sb.WriteString("Based on the story '")
	sb.WriteString(meta.Title)
	sb.WriteString("' by ")
	sb.WriteString(meta.Author)
	sb.WriteString(", validate the extracted information below.\n\nSTORY:\n")
	sb.WriteString(utils.Truncate(text, validationTextCap))
	sb.WriteString("\n\nSTRUCTURED_JSON:\n")
	sb.WriteString(utils.PrettyJSON(analysis))
	return sb.String()
}

// withRetries runs fn up to maxAttempts times with a fixed inter-attempt
// delay, returning nil on first success and the last error on exhaustion. The
// delay sleeps only this request's goroutine.
func (a *Analyzer) withRetries(ctx context.Context, stage string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		log.Warn("inference attempt failed", "stage", stage, "attempt", attempt, "error", lastErr)
		if attempt < a.maxAttempts {
			retrySleep(a.retryDelay)
		}
	}
	return lastErr
}

// decodeObject parses model output into T after checking that the payload is
// a JSON object carrying every required top-level field. Reasoning markers and
// stray text around the object are trimmed first.
func decodeObject[T any](out string, required ...string) (*T, error) {
	out = trimToObject(out)
	if out == "" {
		return nil, errMalformedPayload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	for _, field := range required {
		if _, ok := fields[field]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", errMalformedPayload, field)
		}
	}

	parsed := new(T)
	if err := json.Unmarshal([]byte(out), parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return parsed, nil
}

// trimToObject cuts the output down to the outermost JSON object, dropping
// <think> blocks and any text around the braces.
func trimToObject(out string) string {
	if idx := strings.LastIndex(out, "</think>"); idx != -1 {
		out = out[idx+len("</think>"):]
	}
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return out[start : end+1]
}

func logPromptSize(stage, system, user string) {
	totalCharacters := len(system) + len(user)
	tokenCount, err := utils.NumTokensFromMessages(system + user)
	if err != nil {
		log.Debug("prepared prompt", "stage", stage, "chars", totalCharacters)
		return
	}
	log.Debug("prepared prompt", "stage", stage, "chars", totalCharacters, "tokens", tokenCount)
}
