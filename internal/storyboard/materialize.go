package storyboard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxKeywordsPerScene = 6
	maxSummaryChars     = 250
)

// optionPad fills quiz items that arrived with fewer than four options.
// Order is fixed so padding stays deterministic.
var optionPad = []string{
	"None of the above",
	"All of the above",
	"Not covered in the source",
	"Refer to the document",
}

// MaterializeScenes converts raw generator scenes into ordered Scene
// values with contiguous 1-based indexes, deduplicated keywords, and a
// visual prompt composed from scene context when the generator omitted it.
func MaterializeScenes(res *GenerationResult) []Scene {
	if res == nil {
		return nil
	}
	scenes := make([]Scene, 0, len(res.Scenes))
	for i, raw := range res.Scenes {
		scene := Scene{
			Index:        i + 1,
			Title:        strings.TrimSpace(raw.Title),
			Narration:    strings.TrimSpace(raw.Narration),
			Keywords:     dedupKeywords(raw.Keywords),
			Badge:        strings.TrimSpace(raw.Badge),
			VisualPrompt: strings.TrimSpace(raw.VisualPrompt),
		}
		if scene.VisualPrompt == "" {
			scene.VisualPrompt = ComposeVisualPrompt(scene.Title, scene.Keywords, res.Summary)
		}
		scenes = append(scenes, scene)
	}
	return scenes
}

// ComposeVisualPrompt builds a deterministic fallback prompt from whatever
// scene context exists.
func ComposeVisualPrompt(title string, keywords []string, summary string) string {
	var b strings.Builder
	b.WriteString("Clean editorial illustration")
	if t := strings.TrimSpace(title); t != "" {
		b.WriteString(" of ")
		b.WriteString(t)
	}
	if len(keywords) > 0 {
		b.WriteString(", highlighting ")
		b.WriteString(strings.Join(keywords, ", "))
	}
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString(". Context: ")
		b.WriteString(Truncate(s, 120))
	}
	b.WriteString(". No embedded text.")
	return b.String()
}

func dedupKeywords(in []string) []string {
	out := make([]string, 0, maxKeywordsPerScene)
	seen := map[string]bool{}
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		low := strings.ToLower(k)
		if seen[low] {
			continue
		}
		seen[low] = true
		out = append(out, k)
		if len(out) == maxKeywordsPerScene {
			break
		}
	}
	return out
}

// MaterializeQuiz converts raw quiz items into QuizQuestion values with
// exactly four options and a clamped correct index. Deterministic: the
// same input always yields the same output.
func MaterializeQuiz(items []RawQuizItem) []QuizQuestion {
	out := make([]QuizQuestion, 0, len(items))
	for i, raw := range items {
		out = append(out, QuizFromGeneration(raw, i+1))
	}
	return out
}

// QuizFromGeneration normalizes a single raw quiz item. n is the 1-based
// position used for the default "q{n}" id.
func QuizFromGeneration(raw RawQuizItem, n int) QuizQuestion {
	options := make([]string, 0, 4)
	for _, o := range raw.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		options = append(options, o)
		if len(options) == 4 {
			break
		}
	}
	for _, pad := range optionPad {
		if len(options) == 4 {
			break
		}
		if !containsFold(options, pad) {
			options = append(options, pad)
		}
	}

	correct := raw.CorrectIndex
	if correct < 0 {
		correct = 0
	}
	if correct > 3 {
		correct = 3
	}

	return QuizQuestion{
		ID:           fmt.Sprintf("q%d", n),
		Text:         strings.TrimSpace(raw.Question),
		Options:      options,
		CorrectIndex: correct,
		Explanation:  strings.TrimSpace(raw.Explanation),
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Truncate shortens s to at most n characters, appending an ellipsis when
// anything was cut. The cut lands on a rune boundary so multi-byte text
// stays valid UTF-8.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	end := 0
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return strings.TrimSpace(s[:end]) + "…"
}

// ClampSummary enforces the manifest summary ceiling.
func ClampSummary(s string) string {
	return Truncate(s, maxSummaryChars)
}
