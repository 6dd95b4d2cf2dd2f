package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ovelight/storyreel-backend/internal/generate"
	"github.com/ovelight/storyreel-backend/internal/ingest"
	"github.com/ovelight/storyreel-backend/internal/media"
	"github.com/ovelight/storyreel-backend/internal/observability"
	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/publish"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

// Runner executes one document's pipeline: extract, plan, generate,
// illustrate, film, publish. Stages run strictly in order; runs for
// different documents are independent and last writer wins.
type Runner struct {
	log             *logger.Logger
	store           gcp.BucketService
	generator       *generate.Generator
	illustrator     *media.Illustrator
	cinematographer *media.Cinematographer
	publisher       *publish.Publisher
	maxScenes       int
}

type RunnerParams struct {
	Log             *logger.Logger
	Store           gcp.BucketService
	Generator       *generate.Generator
	Illustrator     *media.Illustrator
	Cinematographer *media.Cinematographer
	Publisher       *publish.Publisher
	MaxScenes       int
}

func NewRunner(p RunnerParams) *Runner {
	return &Runner{
		log:             p.Log.With("service", "PipelineRunner"),
		store:           p.Store,
		generator:       p.Generator,
		illustrator:     p.Illustrator,
		cinematographer: p.Cinematographer,
		publisher:       p.Publisher,
		maxScenes:       p.MaxScenes,
	}
}

// Result summarizes one completed run for callers and logs.
type Result struct {
	RunID         string `json:"runId"`
	DocName       string `json:"docName"`
	SceneCount    int    `json:"sceneCount"`
	QuestionCount int    `json:"questionCount"`
	VideoStatus   string `json:"videoStatus"`
	UsedFallback  bool   `json:"usedFallback"`
	ManifestURL   string `json:"manifestUrl"`
	QuizURL       string `json:"quizUrl"`
}

// Process runs the full pipeline for one uploaded document. An
// extraction failure aborts with no artifacts written; generation
// failures follow the configured failure mode; image and video problems
// only degrade their own fields.
func (r *Runner) Process(ctx context.Context, docName string) (*Result, error) {
	runID := uuid.NewString()
	log := r.log.With("run_id", runID, "doc_name", docName)
	started := time.Now()
	log.Info("Pipeline run started")

	res, err := r.process(ctx, log, runID, docName)
	if err != nil {
		observability.Current().ObserveRun("error")
		log.Error("Pipeline run failed", "error", err.Error(), "elapsed", time.Since(started).String())
		return nil, err
	}
	observability.Current().ObserveRun("ok")
	log.Info("Pipeline run finished",
		"scene_count", res.SceneCount,
		"question_count", res.QuestionCount,
		"video_status", res.VideoStatus,
		"used_fallback", res.UsedFallback,
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

func (r *Runner) process(ctx context.Context, log *logger.Logger, runID, docName string) (*Result, error) {
	raw, err := timedStage("read", func() (string, error) {
		return r.store.ReadText(ctx, gcp.CategoryUploads, docName)
	})
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", docName, err)
	}

	ex, err := timedStage("extract", func() (*ingest.Extraction, error) {
		return ingest.Extract(docName, raw, "")
	})
	if err != nil {
		return nil, err
	}

	spec := storyboard.CalcSpec(ex.WordCount)
	if r.maxScenes > 0 {
		spec = spec.CapScenes(r.maxScenes)
	}
	log.Info("Generation plan",
		"word_count", ex.WordCount,
		"estimated_tokens", ex.EstimatedTokens,
		"target_scenes", spec.TargetSceneCount,
		"target_quiz", spec.TargetQuizCount,
	)

	gen, err := timedStage("generate", func() (*storyboard.GenerationResult, error) {
		return r.generator.Generate(ctx, ex, spec)
	})
	if err != nil {
		return nil, err
	}
	usedFallback := gen == nil
	if usedFallback {
		log.Warn("Using deterministic fallback content")
		gen = generate.BuildFallback(ex.FullText, spec)
	}

	summary := storyboard.ClampSummary(gen.Summary)
	scenes := storyboard.MaterializeScenes(gen)
	questions := storyboard.MaterializeQuiz(gen.Quiz)

	if r.illustrator.Enabled() {
		_, _ = timedStage("images", func() (struct{}, error) {
			r.illustrator.PopulateImages(ctx, docName, summary, scenes)
			return struct{}{}, nil
		})
	}

	video := storyboard.SkippedVideo("video generation not configured")
	if r.cinematographer.Enabled() {
		video, _ = timedStage("video", func() (storyboard.VideoAsset, error) {
			return r.cinematographer.GenerateVideo(ctx, docName, summary, scenes), nil
		})
		if video.Status == storyboard.VideoStatusFailed {
			log.Warn("Video generation failed", "reason", video.Error, "operation_id", video.OperationID)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	manifest := &storyboard.Manifest{
		SourceDocument: docName,
		Summary:        summary,
		SceneCount:     len(scenes),
		CreatedUTC:     now,
		Scenes:         scenes,
		VideoAsset:     video,
	}
	quiz := &storyboard.QuizDocument{
		SourceDocument: docName,
		CreatedUTC:     now,
		Questions:      questions,
	}

	if _, err := timedStage("publish", func() (struct{}, error) {
		return struct{}{}, r.publisher.Publish(ctx, docName, manifest, quiz)
	}); err != nil {
		return nil, err
	}

	key := publish.ArtifactKey(docName)
	return &Result{
		RunID:         runID,
		DocName:       docName,
		SceneCount:    len(scenes),
		QuestionCount: len(questions),
		VideoStatus:   video.Status,
		UsedFallback:  usedFallback,
		ManifestURL:   r.store.PublicURL(gcp.CategoryManifests, key),
		QuizURL:       r.store.PublicURL(gcp.CategoryQuizzes, key),
	}, nil
}

func timedStage[T any](stage string, fn func() (T, error)) (T, error) {
	started := time.Now()
	out, err := fn()
	observability.Current().ObservePipelineStage(stage, time.Since(started), err)
	return out, err
}

// SweepResult reports one manual sweep over pending uploads.
type SweepResult struct {
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
}

// Sweep processes uploads that have no manifest yet. With force set,
// already-published documents run again and overwrite their artifacts.
func (r *Runner) Sweep(ctx context.Context, max int, force bool) (*SweepResult, error) {
	keys, err := r.store.ListKeys(ctx, gcp.CategoryUploads, "")
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	out := &SweepResult{Processed: []string{}, Skipped: []string{}, Failed: []string{}}
	for _, key := range keys {
		if max > 0 && len(out.Processed) >= max {
			break
		}
		if strings.TrimSpace(key) == "" {
			continue
		}
		if !force {
			exists, err := r.store.Exists(ctx, gcp.CategoryManifests, publish.ArtifactKey(key))
			if err == nil && exists {
				out.Skipped = append(out.Skipped, key)
				continue
			}
		}
		if _, err := r.Process(ctx, key); err != nil {
			out.Failed = append(out.Failed, key)
			continue
		}
		out.Processed = append(out.Processed, key)
	}
	return out, nil
}
