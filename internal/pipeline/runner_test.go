package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/ovelight/storyreel-backend/internal/generate"
	"github.com/ovelight/storyreel-backend/internal/ingest"
	"github.com/ovelight/storyreel-backend/internal/media"
	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/publish"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

type memoryBucket struct {
	objects map[string][]byte
}

func newMemoryBucket() *memoryBucket { return &memoryBucket{objects: map[string][]byte{}} }

func (b *memoryBucket) key(category gcp.Category, key string) string {
	return string(category) + "/" + key
}

func (b *memoryBucket) UploadBytes(_ context.Context, category gcp.Category, key string, data []byte, _ string) error {
	b.objects[b.key(category, key)] = data
	return nil
}

func (b *memoryBucket) ReadText(_ context.Context, category gcp.Category, key string) (string, error) {
	data, ok := b.objects[b.key(category, key)]
	if !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	return string(data), nil
}

func (b *memoryBucket) Download(_ context.Context, category gcp.Category, key string) ([]byte, error) {
	data, ok := b.objects[b.key(category, key)]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return data, nil
}

func (b *memoryBucket) Exists(_ context.Context, category gcp.Category, key string) (bool, error) {
	_, ok := b.objects[b.key(category, key)]
	return ok, nil
}

func (b *memoryBucket) ListKeys(_ context.Context, category gcp.Category, prefix string) ([]string, error) {
	full := b.key(category, prefix)
	var out []string
	for k := range b.objects {
		if strings.HasPrefix(k, full) {
			out = append(out, strings.TrimPrefix(k, string(category)+"/"))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *memoryBucket) Delete(_ context.Context, category gcp.Category, key string) error {
	delete(b.objects, b.key(category, key))
	return nil
}

func (b *memoryBucket) PublicURL(category gcp.Category, key string) string {
	return "https://cdn.test/" + b.key(category, key)
}

type scriptedChat struct {
	response string
	err      error
	calls    int
}

func (c *scriptedChat) GenerateStructured(_ context.Context, _, _, _ string, _ map[string]any) (string, error) {
	c.calls++
	return c.response, c.err
}

func validChatResponse(scenes, quiz int) string {
	res := storyboard.GenerationResult{Summary: "A generated summary of the document."}
	for i := 1; i <= scenes; i++ {
		res.Scenes = append(res.Scenes, storyboard.RawScene{
			Title:        fmt.Sprintf("Chapter %d", i),
			Narration:    fmt.Sprintf("Narration for chapter %d.", i),
			Keywords:     []string{"topic"},
			VisualPrompt: fmt.Sprintf("An illustration for chapter %d.", i),
		})
	}
	for i := 0; i < quiz; i++ {
		res.Quiz = append(res.Quiz, storyboard.RawQuizItem{
			Question:     fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		})
	}
	raw, _ := json.Marshal(res)
	return string(raw)
}

func newTestRunner(t *testing.T, bucket gcp.BucketService, chat generate.ChatClient, mode generate.FailureMode) *Runner {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	styles, err := media.LoadStyleTable()
	if err != nil {
		t.Fatalf("styles: %v", err)
	}
	return NewRunner(RunnerParams{
		Log:             log,
		Store:           bucket,
		Generator:       generate.NewGenerator(log, chat, mode),
		Illustrator:     media.NewIllustrator(log, nil, bucket, ""),
		Cinematographer: media.NewCinematographer(log, nil, bucket, styles, ""),
		Publisher:       publish.NewPublisher(log, bucket),
	})
}

func prose(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 && i%12 == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

func TestProcessEmptyDocumentWritesNothing(t *testing.T) {
	bucket := newMemoryBucket()
	_ = bucket.UploadBytes(context.Background(), gcp.CategoryUploads, "empty.txt", []byte("   \n\n  "), "text/plain")
	runner := newTestRunner(t, bucket, &scriptedChat{}, generate.FailureModeFallback)

	_, err := runner.Process(context.Background(), "empty.txt")
	var extractErr *ingest.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if _, ok := bucket.objects["video-manifests/empty.json"]; ok {
		t.Fatal("manifest written for failed extraction")
	}
	if _, ok := bucket.objects["quiz-data/empty.json"]; ok {
		t.Fatal("quiz written for failed extraction")
	}
}

func TestProcessProseDocumentNoMedia(t *testing.T) {
	bucket := newMemoryBucket()
	_ = bucket.UploadBytes(context.Background(), gcp.CategoryUploads, "guide.txt", []byte(prose(500)), "text/plain")
	chat := &scriptedChat{response: validChatResponse(4, 5)}
	runner := newTestRunner(t, bucket, chat, generate.FailureModeFallback)

	res, err := runner.Process(context.Background(), "guide.txt")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.UsedFallback {
		t.Fatal("valid generation must not fall back")
	}

	raw, ok := bucket.objects["video-manifests/guide.json"]
	if !ok {
		t.Fatal("manifest not written")
	}
	var manifest storyboard.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("manifest decode: %v", err)
	}
	if manifest.SceneCount < 4 || manifest.SceneCount > 6 {
		t.Fatalf("scene count = %d", manifest.SceneCount)
	}
	if manifest.VideoAsset.Status != storyboard.VideoStatusSkipped {
		t.Fatalf("video status = %q", manifest.VideoAsset.Status)
	}
	for _, s := range manifest.Scenes {
		if s.ImageURL != "" {
			t.Fatalf("scene %d has image url without image config", s.Index)
		}
	}
	if _, ok := bucket.objects["quiz-data/guide.json"]; !ok {
		t.Fatal("quiz not written")
	}
}

func TestProcessMalformedGenerationFallsBack(t *testing.T) {
	bucket := newMemoryBucket()
	doc := "The first paragraph of the source document, long enough to qualify.\n" +
		"The second paragraph of the source document, also long enough.\n" +
		"The third paragraph rounds out the body of the source document.\n"
	_ = bucket.UploadBytes(context.Background(), gcp.CategoryUploads, "notes.txt", []byte(doc), "text/plain")

	// Missing the quiz key entirely.
	chat := &scriptedChat{response: `{"summary":"s","scenes":[{"title":"t","narration":"n","visualPrompt":"v"}]}`}
	runner := newTestRunner(t, bucket, chat, generate.FailureModeFallback)

	res, err := runner.Process(context.Background(), "notes.txt")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !res.UsedFallback {
		t.Fatal("invalid generation must use the fallback producer")
	}

	var manifest storyboard.Manifest
	if err := json.Unmarshal(bucket.objects["video-manifests/notes.json"], &manifest); err != nil {
		t.Fatalf("manifest decode: %v", err)
	}
	if manifest.SceneCount != 3 {
		t.Fatalf("scene count = %d, want the 3 qualifying paragraphs", manifest.SceneCount)
	}

	var quiz storyboard.QuizDocument
	if err := json.Unmarshal(bucket.objects["quiz-data/notes.json"], &quiz); err != nil {
		t.Fatalf("quiz decode: %v", err)
	}
	if len(quiz.Questions) < 3 || len(quiz.Questions) > 6 {
		t.Fatalf("question count = %d", len(quiz.Questions))
	}
	for _, q := range quiz.Questions {
		if len(q.Options) != 4 {
			t.Fatalf("question %s has %d options", q.ID, len(q.Options))
		}
	}
}

func TestProcessAbortModeWritesNothing(t *testing.T) {
	bucket := newMemoryBucket()
	_ = bucket.UploadBytes(context.Background(), gcp.CategoryUploads, "notes.txt", []byte(prose(200)), "text/plain")
	chat := &scriptedChat{err: fmt.Errorf("provider down")}
	runner := newTestRunner(t, bucket, chat, generate.FailureModeAbort)

	_, err := runner.Process(context.Background(), "notes.txt")
	var genErr *generate.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if _, ok := bucket.objects["video-manifests/notes.json"]; ok {
		t.Fatal("strict mode must not write a manifest on failure")
	}
}

func TestProcessCapsScenes(t *testing.T) {
	bucket := newMemoryBucket()
	_ = bucket.UploadBytes(context.Background(), gcp.CategoryUploads, "big.txt", []byte(prose(1200)), "text/plain")
	chat := &scriptedChat{response: validChatResponse(2, 3)}
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	styles, err := media.LoadStyleTable()
	if err != nil {
		t.Fatalf("styles: %v", err)
	}
	runner := NewRunner(RunnerParams{
		Log:             log,
		Store:           bucket,
		Generator:       generate.NewGenerator(log, chat, generate.FailureModeFallback),
		Illustrator:     media.NewIllustrator(log, nil, bucket, ""),
		Cinematographer: media.NewCinematographer(log, nil, bucket, styles, ""),
		Publisher:       publish.NewPublisher(log, bucket),
		MaxScenes:       2,
	})

	res, err := runner.Process(context.Background(), "big.txt")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.SceneCount != 2 {
		t.Fatalf("scene count = %d, want capped 2", res.SceneCount)
	}
}

func TestSweepSkipsPublishedUnlessForced(t *testing.T) {
	bucket := newMemoryBucket()
	ctx := context.Background()
	_ = bucket.UploadBytes(ctx, gcp.CategoryUploads, "a.txt", []byte(prose(100)), "text/plain")
	_ = bucket.UploadBytes(ctx, gcp.CategoryUploads, "b.txt", []byte(prose(100)), "text/plain")
	_ = bucket.UploadBytes(ctx, gcp.CategoryManifests, "a.json", []byte("{}"), "application/json")

	chat := &scriptedChat{response: validChatResponse(3, 4)}
	runner := newTestRunner(t, bucket, chat, generate.FailureModeFallback)

	sweep, err := runner.Sweep(ctx, 0, false)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(sweep.Processed) != 1 || sweep.Processed[0] != "b.txt" {
		t.Fatalf("processed = %v", sweep.Processed)
	}
	if len(sweep.Skipped) != 1 || sweep.Skipped[0] != "a.txt" {
		t.Fatalf("skipped = %v", sweep.Skipped)
	}

	forced, err := runner.Sweep(ctx, 0, true)
	if err != nil {
		t.Fatalf("forced sweep failed: %v", err)
	}
	if len(forced.Processed) != 2 {
		t.Fatalf("forced processed = %v", forced.Processed)
	}
}
