package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ovelight/storyreel-backend/internal/ingest"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

// FailureMode decides what a failed generation does to the run.
type FailureMode string

const (
	// FailureModeFallback degrades to the deterministic producer so a
	// manifest and quiz are always written.
	FailureModeFallback FailureMode = "fallback"
	// FailureModeAbort ends the run with no artifacts.
	FailureModeAbort FailureMode = "abort"
)

func ParseFailureMode(raw string) FailureMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(FailureModeAbort)) {
		return FailureModeAbort
	}
	return FailureModeFallback
}

// GenerationError aborts a run in strict mode.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ChatClient is the provider slice the generator needs.
type ChatClient interface {
	GenerateStructured(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error)
}

type Generator struct {
	log  *logger.Logger
	chat ChatClient
	mode FailureMode
}

func NewGenerator(log *logger.Logger, chat ChatClient, mode FailureMode) *Generator {
	return &Generator{
		log:  log.With("service", "ContentGenerator"),
		chat: chat,
		mode: mode,
	}
}

func (g *Generator) Mode() FailureMode { return g.mode }

// rawDocumentBudget bounds un-segmented document text in the prompt.
const rawDocumentBudget = 6000

// Generate asks the provider for a storyboard and quiz matching spec.
// In fallback mode every failure returns (nil, nil) and the caller picks
// the deterministic producer; in abort mode failures return a
// *GenerationError.
func (g *Generator) Generate(ctx context.Context, ex *ingest.Extraction, spec storyboard.GenerationSpec) (*storyboard.GenerationResult, error) {
	system := systemPrompt(spec)
	user := userPrompt(ex, spec)

	text, err := g.chat.GenerateStructured(ctx, system, user, "storyboard_package", resultSchema())
	if err != nil {
		return g.failed("provider call failed", err)
	}

	res, err := ParseGenerationResult(text)
	if err != nil {
		return g.failed("response parse failed", err)
	}

	if err := ValidateGenerationResult(res, spec); err != nil {
		return g.failed("validation failed", err)
	}
	return res, nil
}

func (g *Generator) failed(reason string, err error) (*storyboard.GenerationResult, error) {
	if g.mode == FailureModeAbort {
		return nil, &GenerationError{Reason: reason, Err: err}
	}
	g.log.Warn("Generation degraded to fallback", "reason", reason, "error", fmt.Sprint(err))
	return nil, nil
}

func systemPrompt(spec storyboard.GenerationSpec) string {
	return fmt.Sprintf(
		"You turn source documents into visual storyboards with quizzes. "+
			"Produce exactly %d scenes and exactly %d quiz questions. "+
			"Every scene must include a non-empty visualPrompt describing a single illustratable moment. "+
			"Every quiz question must offer exactly 4 options with correctIndex in [0,3]. "+
			"Respond with a single JSON object and nothing else.",
		spec.TargetSceneCount, spec.TargetQuizCount,
	)
}

func userPrompt(ex *ingest.Extraction, spec storyboard.GenerationSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Build a storyboard package from the document below: a summary of at most 250 characters, "+
			"%d scenes (title, narration, up to 6 keywords, visualPrompt), and %d quiz questions "+
			"(question, 4 options, correctIndex, explanation). Respond with strict JSON only.\n",
		spec.TargetSceneCount, spec.TargetQuizCount,
	)
	if len(ex.Segments) > 0 {
		for i, seg := range ex.Segments {
			fmt.Fprintf(&b, "\n---DOCUMENT SEGMENT %d---\n%s\n---END SEGMENT %d---\n", i+1, seg, i+1)
		}
		return b.String()
	}
	b.WriteString("\n---DOCUMENT---\n")
	b.WriteString(storyboard.Truncate(ex.FullText, rawDocumentBudget))
	b.WriteString("\n---END DOCUMENT---\n")
	return b.String()
}

// resultSchema is the strict JSON schema sent with the chat request.
func resultSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "scenes", "quiz"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"scenes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"title", "narration", "keywords", "visualPrompt"},
					"properties": map[string]any{
						"title":        map[string]any{"type": "string"},
						"narration":    map[string]any{"type": "string"},
						"keywords":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"visualPrompt": map[string]any{"type": "string"},
						"badge":        map[string]any{"type": "string"},
					},
				},
			},
			"quiz": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"question", "options", "correctIndex"},
					"properties": map[string]any{
						"question":     map[string]any{"type": "string"},
						"options":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"correctIndex": map[string]any{"type": "integer"},
						"explanation":  map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// ParseGenerationResult strips any leading prose or markdown fencing by
// locating the first '{', then decodes a single JSON value from there.
// Trailing text such as a closing fence is ignored.
func ParseGenerationResult(text string) (*storyboard.GenerationResult, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var res storyboard.GenerationResult
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("decode generation result: %w", err)
	}
	return &res, nil
}

// ValidateGenerationResult applies the business rules. Any violation
// rejects the whole result; scenes are never partially accepted.
func ValidateGenerationResult(res *storyboard.GenerationResult, spec storyboard.GenerationSpec) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	if strings.TrimSpace(res.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if len(res.Scenes) < spec.TargetSceneCount {
		// A short source may legitimately not carry enough material for
		// the full scene target; accept what the provider produced.
		if !spec.ShortSource() || len(res.Scenes) == 0 {
			return fmt.Errorf("scene count %d below target %d", len(res.Scenes), spec.TargetSceneCount)
		}
	}
	for i, s := range res.Scenes {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("scene %d has empty title", i+1)
		}
		if strings.TrimSpace(s.Narration) == "" {
			return fmt.Errorf("scene %d has empty narration", i+1)
		}
		if strings.TrimSpace(s.VisualPrompt) == "" {
			return fmt.Errorf("scene %d has empty visualPrompt", i+1)
		}
	}
	if len(res.Quiz) < spec.TargetQuizCount {
		return fmt.Errorf("quiz count %d below target %d", len(res.Quiz), spec.TargetQuizCount)
	}
	for i, q := range res.Quiz {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("quiz %d has empty question", i+1)
		}
		if len(q.Options) != 4 {
			return fmt.Errorf("quiz %d has %d options, want 4", i+1, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			return fmt.Errorf("quiz %d correctIndex %d out of range", i+1, q.CorrectIndex)
		}
	}
	return nil
}
