package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

type fakeStore struct {
	uploads      map[string][]byte
	contentTypes map[string]string
	failQuiz     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (s *fakeStore) UploadBytes(_ context.Context, category gcp.Category, key string, data []byte, contentType string) error {
	if s.failQuiz && category == gcp.CategoryQuizzes {
		return fmt.Errorf("store unavailable")
	}
	full := string(category) + "/" + key
	s.uploads[full] = data
	s.contentTypes[full] = contentType
	return nil
}

func (s *fakeStore) PublicURL(category gcp.Category, key string) string {
	return "https://cdn.test/" + string(category) + "/" + key
}

func testPublisher(t *testing.T, store Store) *Publisher {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewPublisher(log, store)
}

func fixture() (*storyboard.Manifest, *storyboard.QuizDocument) {
	manifest := &storyboard.Manifest{
		SourceDocument: "intro.txt",
		Summary:        "A summary.",
		SceneCount:     1,
		CreatedUTC:     "2026-08-30T12:00:00Z",
		Scenes: []storyboard.Scene{{
			Index:        1,
			Title:        "Opening",
			Narration:    "It begins.",
			Keywords:     []string{"start"},
			VisualPrompt: "An opening shot.",
		}},
		VideoAsset: storyboard.SkippedVideo("video generation not configured"),
	}
	quiz := &storyboard.QuizDocument{
		SourceDocument: "intro.txt",
		CreatedUTC:     "2026-08-30T12:00:00Z",
		Questions: []storyboard.QuizQuestion{{
			ID:           "q1",
			Text:         "What begins?",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 0,
		}},
	}
	return manifest, quiz
}

func TestPublishWritesBothArtifacts(t *testing.T) {
	store := newFakeStore()
	manifest, quiz := fixture()

	if err := testPublisher(t, store).Publish(context.Background(), "intro.txt", manifest, quiz); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	raw, ok := store.uploads["video-manifests/intro.json"]
	if !ok {
		t.Fatal("manifest not written")
	}
	if _, ok := store.uploads["quiz-data/intro.json"]; !ok {
		t.Fatal("quiz not written")
	}
	if ct := store.contentTypes["video-manifests/intro.json"]; ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	// Pretty printed with stable wire keys.
	if !strings.Contains(string(raw), "\n  \"sourceDocument\"") {
		t.Fatalf("manifest is not indented: %s", raw)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	for _, key := range []string{"sourceDocument", "summary", "sceneCount", "createdUtc", "scenes", "videoAsset"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("manifest missing key %q", key)
		}
	}
	scene := decoded["scenes"].([]any)[0].(map[string]any)
	if _, ok := scene["text"]; !ok {
		t.Fatal("scene narration must serialize under the text key")
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	store := newFakeStore()
	manifest, quiz := fixture()
	p := testPublisher(t, store)

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), "intro.txt", manifest, quiz); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	if len(store.uploads) != 2 {
		t.Fatalf("republishing created %d objects, want 2", len(store.uploads))
	}
}

func TestPublishSurfacesQuizFailure(t *testing.T) {
	store := newFakeStore()
	store.failQuiz = true
	manifest, quiz := fixture()

	err := testPublisher(t, store).Publish(context.Background(), "intro.txt", manifest, quiz)
	if err == nil {
		t.Fatal("expected quiz upload failure to surface")
	}
	if !strings.Contains(err.Error(), "quiz") {
		t.Fatalf("error = %v", err)
	}
}

func TestArtifactKeyDerivation(t *testing.T) {
	cases := map[string]string{
		"intro.txt":          "intro.json",
		"My Report (v2).pdf": "My_Report__v2_.json",
		"../../etc/passwd":   "passwd.json",
	}
	for in, want := range cases {
		if got := ArtifactKey(in); got != want {
			t.Fatalf("ArtifactKey(%q) = %q, want %q", in, got, want)
		}
	}
}
