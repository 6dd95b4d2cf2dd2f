package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/platform/openai"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

const (
	videoSecondsPerScene = 12
	videoMinSeconds      = 45
	videoMaxSeconds      = 120
	maxPromptShots       = 8
	videoAspect          = "1280x720"
	videoFormat          = "mp4"
)

// VideoClient is the provider slice the cinematographer needs.
type VideoClient interface {
	SubmitVideoJob(ctx context.Context, deployment, prompt string, durationSeconds int, size, format string) (openai.VideoJobStatus, error)
	GetVideoJob(ctx context.Context, operationID string) (openai.VideoJobStatus, error)
	DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Cinematographer turns a finished storyboard into one generated clip.
// Every failure path returns a skipped or failed VideoAsset; nothing
// here is ever fatal to the run.
type Cinematographer struct {
	log        *logger.Logger
	client     VideoClient
	store      ImageStore
	styles     *StyleTable
	deployment string
	policy     RetryPolicy
}

func NewCinematographer(log *logger.Logger, client VideoClient, store ImageStore, styles *StyleTable, deployment string) *Cinematographer {
	return &Cinematographer{
		log:        log.With("service", "Cinematographer"),
		client:     client,
		store:      store,
		styles:     styles,
		deployment: strings.TrimSpace(deployment),
		policy: RetryPolicy{
			MaxAttempts: 20,
			Delay:       LinearBackoff(3*time.Second, 15*time.Second),
		},
	}
}

func (c *Cinematographer) Enabled() bool { return c != nil && c.deployment != "" }

// TargetDuration clamps scene-count-proportional runtime into the
// provider's supported window.
func TargetDuration(sceneCount int) int {
	if sceneCount < 1 {
		sceneCount = 1
	}
	d := sceneCount * videoSecondsPerScene
	if d < videoMinSeconds {
		return videoMinSeconds
	}
	if d > videoMaxSeconds {
		return videoMaxSeconds
	}
	return d
}

// GenerateVideo runs the full submit, poll, download, inspect, upload
// sequence and reports the outcome as a VideoAsset.
func (c *Cinematographer) GenerateVideo(ctx context.Context, docName, summary string, scenes []storyboard.Scene) storyboard.VideoAsset {
	if !c.Enabled() {
		return storyboard.SkippedVideo("video generation not configured")
	}
	if len(scenes) == 0 {
		return storyboard.SkippedVideo("no scenes to render")
	}

	style := c.styles.Select(styleCorpus(docName, summary, scenes))
	prompt := ComposeVideoPrompt(docName, summary, scenes, style)
	duration := TargetDuration(len(scenes))

	c.log.Info("Submitting video job",
		"doc_name", docName,
		"style", style.Name,
		"duration_seconds", duration,
	)

	status, err := c.client.SubmitVideoJob(ctx, c.deployment, prompt, duration, videoAspect, videoFormat)
	if err != nil {
		return storyboard.FailedVideo(fmt.Sprintf("submit: %v", err), prompt, "")
	}

	final, err := c.awaitJob(ctx, status)
	if err != nil {
		return storyboard.FailedVideo(err.Error(), prompt, status.ID)
	}

	output, err := firstOutput(final)
	if err != nil {
		return storyboard.FailedVideo(err.Error(), prompt, final.ID)
	}

	asset, err := c.persist(ctx, docName, prompt, final.ID, output, scenes)
	if err != nil {
		return storyboard.FailedVideo(err.Error(), prompt, final.ID)
	}
	return asset
}

// awaitJob polls until a terminal state or the attempt cap.
func (c *Cinematographer) awaitJob(ctx context.Context, status openai.VideoJobStatus) (openai.VideoJobStatus, error) {
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		switch strings.ToLower(status.Status) {
		case "succeeded", "completed", "finished":
			return status, nil
		case "failed", "cancelled", "canceled":
			return status, fmt.Errorf("video job %s failed: %s", status.ID, jobFailureDetail(status))
		}
		if status.ID == "" {
			// Some deployments answer the submission with the finished
			// payload and never assign a job id.
			if len(status.Outputs) > 0 {
				return status, nil
			}
			return status, fmt.Errorf("video response carries no operation id and no inline result")
		}
		if err := c.policy.Wait(ctx, attempt); err != nil {
			return status, err
		}
		next, err := c.client.GetVideoJob(ctx, status.ID)
		if err != nil {
			return status, fmt.Errorf("poll video job %s: %w", status.ID, err)
		}
		status = next
	}
	return status, fmt.Errorf("video job %s timed out after %d attempts", status.ID, c.policy.MaxAttempts)
}

func jobFailureDetail(status openai.VideoJobStatus) string {
	if status.Error != "" {
		return status.Error
	}
	if status.RawExcerpt != "" {
		return status.RawExcerpt
	}
	return "no detail returned"
}

func firstOutput(status openai.VideoJobStatus) (openai.VideoOutput, error) {
	for _, out := range status.Outputs {
		if out.B64 != "" || out.URL != "" {
			return out, nil
		}
	}
	return openai.VideoOutput{}, fmt.Errorf("video job %s finished without output payload", status.ID)
}

// persist downloads, inspects, and uploads the clip plus its thumbnail.
// An unrecognized container signature is recorded but still uploaded.
func (c *Cinematographer) persist(ctx context.Context, docName, prompt, operationID string, out openai.VideoOutput, scenes []storyboard.Scene) (storyboard.VideoAsset, error) {
	data, contentType, sourceURL, err := c.resolvePayload(ctx, out.B64, out.URL)
	if err != nil {
		return storyboard.VideoAsset{}, fmt.Errorf("fetch video payload: %w", err)
	}
	if len(data) == 0 {
		return storyboard.VideoAsset{}, fmt.Errorf("video payload is empty")
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	info := InspectContainer(data)
	if !info.IsLikelyMP4 {
		c.log.Warn("Video container signature mismatch",
			"doc_name", docName,
			"box_code", info.BoxCode,
			"hex_prefix", info.HexPrefix,
		)
	}

	base := storyboard.BaseName(docName)
	videoKey := base + "/clip.mp4"
	if err := c.store.UploadBytes(ctx, gcp.CategoryVideos, videoKey, data, contentType); err != nil {
		return storyboard.VideoAsset{}, fmt.Errorf("upload video: %w", err)
	}

	thumbURL, thumbSource := c.persistThumbnail(ctx, base, out, scenes)

	duration := out.DurationSeconds
	if duration == 0 {
		duration = float64(TargetDuration(len(scenes)))
	}

	return storyboard.SuccessVideo(storyboard.SuccessVideoParams{
		MP4URL:             c.store.PublicURL(gcp.CategoryVideos, videoKey),
		ThumbnailURL:       thumbURL,
		DurationSeconds:    duration,
		Prompt:             prompt,
		OperationID:        operationID,
		SourceURL:          sourceURL,
		ThumbnailSourceURL: thumbSource,
		ContentType:        contentType,
		ByteLength:         len(data),
		ContainerFourCC:    info.BoxCode,
		MajorBrand:         info.MajorBrand,
		HexPrefix:          info.HexPrefix,
		IsLikelyMP4:        info.IsLikelyMP4,
	}), nil
}

// persistThumbnail is best effort. A job-provided thumbnail wins; the
// first scene's still image is the fallback.
func (c *Cinematographer) persistThumbnail(ctx context.Context, base string, out openai.VideoOutput, scenes []storyboard.Scene) (string, string) {
	if out.ThumbnailB64 != "" || out.ThumbnailURL != "" {
		data, contentType, source, err := c.resolvePayload(ctx, out.ThumbnailB64, out.ThumbnailURL)
		if err == nil && len(data) > 0 {
			if contentType == "" {
				contentType = "image/png"
			}
			key := base + "/thumbnail.png"
			if err := c.store.UploadBytes(ctx, gcp.CategoryVideos, key, data, contentType); err == nil {
				return c.store.PublicURL(gcp.CategoryVideos, key), source
			}
		}
		if err != nil {
			c.log.Warn("Thumbnail fetch failed", "error", err.Error())
		}
	}
	for _, s := range scenes {
		if s.ImageURL != "" {
			return s.ImageURL, s.ImageURL
		}
	}
	return "", ""
}

func (c *Cinematographer) resolvePayload(ctx context.Context, b64, rawURL string) ([]byte, string, string, error) {
	if b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, "", "", fmt.Errorf("decode inline payload: %w", err)
		}
		return data, "", "", nil
	}
	data, contentType, err := c.client.DownloadBytes(ctx, rawURL)
	if err != nil {
		return nil, "", rawURL, err
	}
	return data, contentType, rawURL, nil
}

func styleCorpus(docName, summary string, scenes []storyboard.Scene) string {
	var b strings.Builder
	b.WriteString(docName)
	b.WriteString(" ")
	b.WriteString(summary)
	for _, s := range scenes {
		b.WriteString(" ")
		b.WriteString(s.Title)
		b.WriteString(" ")
		b.WriteString(s.Narration)
		for _, kw := range s.Keywords {
			b.WriteString(" ")
			b.WriteString(kw)
		}
	}
	return b.String()
}

// ComposeVideoPrompt builds the cinematic brief: topic and style, an
// optional summary line, camera and lighting direction, then one shot
// line per scene capped at the first 8.
func ComposeVideoPrompt(docName, summary string, scenes []storyboard.Scene, style StyleProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A short educational video about %q, rendered as %s.\n", storyboard.BaseName(docName), style.Visual)
	if strings.TrimSpace(summary) != "" {
		fmt.Fprintf(&b, "Narrative arc: %s\n", summary)
	}
	fmt.Fprintf(&b, "Camera: %s\n", style.Camera)
	fmt.Fprintf(&b, "Lighting: %s\n", style.Lighting)
	if style.Avoid != "" {
		fmt.Fprintf(&b, "Avoid: %s\n", style.Avoid)
	}
	b.WriteString("Shots, in order:\n")
	for i, s := range scenes {
		if i == maxPromptShots {
			break
		}
		line := s.VisualPrompt
		if strings.TrimSpace(line) == "" {
			line = s.Narration
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, s.Title, line)
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&b, " (themes: %s)", strings.Join(s.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Keep every shot consistent with the %s look.\n", style.Name)
	return b.String()
}
