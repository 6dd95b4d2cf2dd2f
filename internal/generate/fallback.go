package generate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

const (
	minFallbackLineChars = 25
	fallbackSummaryChars = 160
	distractorChars      = 90
)

var genericTopicOptions = []string{"Overview", "Architecture", "Operations", "Summary"}

// BuildFallback derives a storyboard and quiz straight from the document
// text. It never fails; an unusable document still yields a placeholder
// scene and a full quiz so downstream consumers keep their contract.
func BuildFallback(documentText string, spec storyboard.GenerationSpec) *storyboard.GenerationResult {
	paragraphs := qualifyingLines(documentText)

	summary := "Automatically generated storyboard for this document."
	if len(paragraphs) > 0 {
		summary = storyboard.Truncate(paragraphs[0], fallbackSummaryChars)
	}

	narrations := paragraphs
	if len(narrations) > spec.TargetSceneCount {
		narrations = narrations[:spec.TargetSceneCount]
	}
	if len(narrations) == 0 {
		narrations = []string{"This document did not contain enough readable text to build a detailed storyboard."}
	}

	scenes := make([]storyboard.RawScene, 0, len(narrations))
	for i, narration := range narrations {
		scenes = append(scenes, storyboard.RawScene{
			Title:     fallbackTitle(narration, i+1),
			Narration: narration,
			Keywords:  longWords(narration, 6),
		})
	}

	return &storyboard.GenerationResult{
		Summary: summary,
		Scenes:  scenes,
		Quiz:    fallbackQuiz(paragraphs, scenes, spec.TargetQuizCount),
	}
}

// qualifyingLines keeps distinct trimmed lines longer than the minimum.
func qualifyingLines(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= minFallbackLineChars || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}

// fallbackTitle title-cases the first 6 alphanumeric words of the
// narration, or names the scene by position when no words qualify.
func fallbackTitle(narration string, index int) string {
	words := longWords(narration, 6)
	if len(words) == 0 {
		return fmt.Sprintf("Key Insight %d", index)
	}
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

// longWords returns up to max distinct alphanumeric words from the text.
func longWords(text string, max int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
		if len(out) == max {
			break
		}
	}
	return out
}

func titleCase(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	for i := 1; i < len(r); i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

func fallbackQuiz(paragraphs []string, scenes []storyboard.RawScene, target int) []storyboard.RawQuizItem {
	quiz := []storyboard.RawQuizItem{centralTopicQuestion(paragraphs)}

	// One description-matching question per scene, distractors drawn
	// from the other scenes' narrations. Correct answer stays first;
	// materialization clamps option order deterministically.
	for i, s := range scenes {
		if len(quiz) >= target {
			break
		}
		options := []string{storyboard.Truncate(s.Narration, distractorChars)}
		for j := 0; j < len(scenes) && len(options) < 4; j++ {
			if j == i {
				continue
			}
			options = append(options, storyboard.Truncate(scenes[j].Narration, distractorChars))
		}
		quiz = append(quiz, storyboard.RawQuizItem{
			Question:     fmt.Sprintf("Which description matches scene %d, %q?", i+1, s.Title),
			Options:      options,
			CorrectIndex: 0,
			Explanation:  "The description is taken from that scene's narration.",
		})
	}

	for len(quiz) < target {
		quiz = append(quiz, fillerQuestion(len(quiz), len(scenes)))
	}
	return quiz
}

func centralTopicQuestion(paragraphs []string) storyboard.RawQuizItem {
	var options []string
	if len(paragraphs) > 0 {
		for _, w := range longWords(paragraphs[0], 8) {
			if len(w) > 5 {
				options = append(options, titleCase(w))
			}
			if len(options) == 4 {
				break
			}
		}
	}
	for _, generic := range genericTopicOptions {
		if len(options) >= 4 {
			break
		}
		options = append(options, generic)
	}
	return storyboard.RawQuizItem{
		Question:     "What is the central topic of this document?",
		Options:      options,
		CorrectIndex: 0,
		Explanation:  "The opening paragraph introduces the document's main subject.",
	}
}

func fillerQuestion(position, sceneCount int) storyboard.RawQuizItem {
	if position%2 == 0 {
		return storyboard.RawQuizItem{
			Question:     "How many key concepts does this storyboard cover?",
			Options:      []string{fmt.Sprintf("%d", sceneCount), fmt.Sprintf("%d", sceneCount+2), fmt.Sprintf("%d", sceneCount+4), "None"},
			CorrectIndex: 0,
			Explanation:  "Each scene covers one key concept.",
		}
	}
	return storyboard.RawQuizItem{
		Question:     "How was this storyboard produced?",
		Options:      []string{"Automatically from the source document", "By a human editor", "From an unrelated document", "It was not produced"},
		CorrectIndex: 0,
		Explanation:  "The storyboard is derived directly from the uploaded document.",
	}
}
