package generate

import (
	"strings"
	"testing"

	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

func TestBuildFallbackNeverEmpty(t *testing.T) {
	res := BuildFallback("", specFor(4, 5))
	if len(res.Scenes) == 0 {
		t.Fatal("expected at least one placeholder scene")
	}
	if res.Summary == "" {
		t.Fatal("expected a summary")
	}
	if len(res.Quiz) != 5 {
		t.Fatalf("quiz count = %d, want 5", len(res.Quiz))
	}
	quiz := storyboard.MaterializeQuiz(res.Quiz)
	for i, q := range quiz {
		if len(q.Options) != 4 {
			t.Fatalf("question %d has %d options", i+1, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			t.Fatalf("question %d correctIndex = %d", i+1, q.CorrectIndex)
		}
	}
}

func TestBuildFallbackUsesQualifyingLines(t *testing.T) {
	text := strings.Join([]string{
		"short",
		"The first substantial paragraph describing the system in detail.",
		"The first substantial paragraph describing the system in detail.",
		"A second substantial paragraph about how deployments are rolled out.",
		"A third substantial paragraph covering monitoring and on-call duty.",
	}, "\n")
	res := BuildFallback(text, specFor(2, 3))
	if len(res.Scenes) != 2 {
		t.Fatalf("scene count = %d, want 2 (capped at target)", len(res.Scenes))
	}
	if res.Scenes[0].Narration != "The first substantial paragraph describing the system in detail." {
		t.Fatalf("duplicate or short line leaked into narrations: %q", res.Scenes[0].Narration)
	}
	if !strings.HasPrefix(res.Summary, "The first substantial paragraph") {
		t.Fatalf("summary = %q", res.Summary)
	}
}

func TestBuildFallbackSummaryTruncated(t *testing.T) {
	long := strings.Repeat("words and more words ", 20)
	res := BuildFallback(long, specFor(3, 3))
	if len(res.Summary) > fallbackSummaryChars+len("…") {
		t.Fatalf("summary length = %d", len(res.Summary))
	}
	if !strings.HasSuffix(res.Summary, "…") {
		t.Fatalf("expected ellipsis marker, got %q", res.Summary)
	}
}

func TestFallbackTitles(t *testing.T) {
	got := fallbackTitle("kubernetes clusters SCALE elastically under sustained production load", 1)
	want := "Kubernetes Clusters Scale Elastically Under Sustained"
	if got != want {
		t.Fatalf("title = %q, want %q", got, want)
	}
	if got := fallbackTitle("!!! ???", 3); got != "Key Insight 3" {
		t.Fatalf("title = %q", got)
	}
}

func TestBuildFallbackCentralTopicQuestion(t *testing.T) {
	res := BuildFallback("x", specFor(3, 4))
	q := res.Quiz[0]
	if !strings.Contains(q.Question, "central topic") {
		t.Fatalf("first question = %q", q.Question)
	}
	if len(q.Options) != 4 {
		t.Fatalf("option count = %d", len(q.Options))
	}
	// Document with no qualifying paragraph pads with generic options.
	for i, want := range genericTopicOptions {
		if q.Options[i] != want {
			t.Fatalf("option %d = %q, want %q", i, q.Options[i], want)
		}
	}
}

func TestBuildFallbackSceneQuestionsCorrectAtZero(t *testing.T) {
	text := "A substantial first paragraph that easily clears the length bar.\n" +
		"A substantial second paragraph that also clears the length bar.\n"
	res := BuildFallback(text, specFor(2, 6))
	if len(res.Quiz) != 6 {
		t.Fatalf("quiz count = %d", len(res.Quiz))
	}
	for i, q := range res.Quiz[1:3] {
		if q.CorrectIndex != 0 {
			t.Fatalf("description question %d correctIndex = %d", i+1, q.CorrectIndex)
		}
		if !strings.HasPrefix(q.Options[0], res.Scenes[i].Narration[:20]) {
			t.Fatalf("option 0 of question %d is not the scene's own narration", i+1)
		}
	}
}

func TestBuildFallbackDeterministic(t *testing.T) {
	text := "One long enough paragraph to become a narration in the result.\nAnother long enough paragraph for a second scene narration here."
	a := BuildFallback(text, specFor(3, 4))
	b := BuildFallback(text, specFor(3, 4))
	if a.Summary != b.Summary || len(a.Scenes) != len(b.Scenes) || len(a.Quiz) != len(b.Quiz) {
		t.Fatal("fallback output is not deterministic")
	}
	for i := range a.Quiz {
		if a.Quiz[i].Question != b.Quiz[i].Question {
			t.Fatalf("question %d differs across runs", i+1)
		}
	}
}
