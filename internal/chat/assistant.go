package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/platform/openai"
	"github.com/ovelight/storyreel-backend/internal/publish"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

const (
	// maxContextChars caps the grounding block handed to the model.
	maxContextChars = 6000
	// maxContextScenes caps how many scenes feed the context.
	maxContextScenes = 8
	// maxContextQuiz caps how many answered quiz items feed the context.
	maxContextQuiz = 3
	// answerTokenBudget bounds a single chat answer.
	answerTokenBudget = 600
)

// ErrManifestNotFound means the document was never processed.
var ErrManifestNotFound = errors.New("no processed manifest for document")

// Completer is the provider slice the assistant needs.
type Completer interface {
	GenerateChat(ctx context.Context, turns []openai.ChatTurn, maxTokens int) (string, error)
}

// Store is the artifact slice the assistant reads from.
type Store interface {
	Download(ctx context.Context, category gcp.Category, key string) ([]byte, error)
}

// Assistant answers questions about a processed document, grounded on its
// published manifest and quiz.
type Assistant struct {
	log   *logger.Logger
	store Store
	chat  Completer
}

func NewAssistant(log *logger.Logger, store Store, chat Completer) *Assistant {
	return &Assistant{
		log:   log.With("service", "ChatAssistant"),
		store: store,
		chat:  chat,
	}
}

// Answer resolves the published artifacts for docName, builds a grounding
// context from them, and asks the provider. history carries prior turns the
// client wants replayed; unknown roles and empty turns are dropped.
func (a *Assistant) Answer(ctx context.Context, docName, question string, history []openai.ChatTurn) (string, error) {
	key := publish.ArtifactKey(docName)

	raw, err := a.store.Download(ctx, gcp.CategoryManifests, key)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrManifestNotFound, docName)
	}
	var manifest storyboard.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return "", fmt.Errorf("decode manifest for %s: %w", docName, err)
	}

	// The quiz is optional context; a missing or malformed quiz never
	// blocks the answer.
	var quiz *storyboard.QuizDocument
	if qb, err := a.store.Download(ctx, gcp.CategoryQuizzes, key); err == nil {
		var qd storyboard.QuizDocument
		if json.Unmarshal(qb, &qd) == nil {
			quiz = &qd
		}
	}

	contextBlock := buildContext(&manifest, quiz)
	if contextBlock == "" {
		return "", fmt.Errorf("manifest for %s has no usable content", docName)
	}

	answer, err := a.chat.GenerateChat(ctx, buildTurns(question, contextBlock, history), answerTokenBudget)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	a.log.Info("Chat answer produced", "doc_name", docName, "answer_chars", len(answer))
	return strings.TrimSpace(answer), nil
}

// buildContext flattens the manifest summary, the leading scenes, and a few
// answered quiz items into one grounding block.
func buildContext(m *storyboard.Manifest, quiz *storyboard.QuizDocument) string {
	var blocks []string

	if s := strings.TrimSpace(m.Summary); s != "" {
		blocks = append(blocks, "Document Summary:\n"+s)
	}

	scenes := m.Scenes
	if len(scenes) > maxContextScenes {
		scenes = scenes[:maxContextScenes]
	}
	var sceneLines []string
	for _, sc := range scenes {
		text := strings.TrimSpace(sc.Narration)
		if text == "" {
			continue
		}
		sceneLines = append(sceneLines, fmt.Sprintf("- %s: %s", sceneTitle(sc), text))
	}
	if len(sceneLines) > 0 {
		blocks = append(blocks, "Key Scenes:\n"+strings.Join(sceneLines, "\n"))
	}

	if quiz != nil {
		questions := quiz.Questions
		if len(questions) > maxContextQuiz {
			questions = questions[:maxContextQuiz]
		}
		var qaLines []string
		for _, q := range questions {
			if strings.TrimSpace(q.Text) == "" {
				continue
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				continue
			}
			qaLines = append(qaLines, fmt.Sprintf("Q: %s\nA: %s", q.Text, q.Options[q.CorrectIndex]))
		}
		if len(qaLines) > 0 {
			blocks = append(blocks, "Sample Quiz Knowledge:\n"+strings.Join(qaLines, "\n"))
		}
	}

	return clampRunes(strings.TrimSpace(strings.Join(blocks, "\n\n")), maxContextChars)
}

func sceneTitle(sc storyboard.Scene) string {
	if t := strings.TrimSpace(sc.Title); t != "" {
		return t
	}
	if b := strings.TrimSpace(sc.Badge); b != "" {
		return b
	}
	return fmt.Sprintf("Scene %d", sc.Index)
}

const systemPrompt = "You are an upbeat assistant that answers questions about processed documents. " +
	"Use only the context provided. If the context does not contain the answer, say you do not know. " +
	"Keep answers precise (2-4 sentences) and cite scene titles when relevant."

func buildTurns(question, contextBlock string, history []openai.ChatTurn) []openai.ChatTurn {
	turns := make([]openai.ChatTurn, 0, len(history)+2)
	turns = append(turns, openai.ChatTurn{Role: "system", Content: systemPrompt})

	for _, h := range history {
		role := strings.ToLower(strings.TrimSpace(h.Role))
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		switch role {
		case "user", "assistant", "system":
			turns = append(turns, openai.ChatTurn{Role: role, Content: content})
		}
	}

	prompt := "Context:\n" + contextBlock + "\n\n" +
		"Question: " + strings.TrimSpace(question) + "\n\n" +
		"Answer strictly from the context. If you reference a scene, include its title in parentheses."
	turns = append(turns, openai.ChatTurn{Role: "user", Content: prompt})
	return turns
}

// clampRunes caps s at n runes without a truncation marker.
func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
