package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/platform/openai"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

// ImageClient is the provider slice the illustrator needs.
type ImageClient interface {
	CreateImage(ctx context.Context, deployment, prompt, size string) (openai.ImagePayload, error)
	SubmitImageJob(ctx context.Context, deployment, prompt, size string) (string, error)
	GetImageJob(ctx context.Context, operationID string) (openai.ImageJobStatus, error)
	DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// ImageStore is the object-store slice the illustrator needs.
type ImageStore interface {
	UploadBytes(ctx context.Context, category gcp.Category, key string, data []byte, contentType string) error
	PublicURL(category gcp.Category, key string) string
}

// imageMode tags the two request shapes a deployment can expose.
type imageMode int

const (
	imageModeImmediate imageMode = iota
	imageModeLongRunning
)

// imageModeFor picks the request shape from the deployment name alone.
// Job-based models carry "gpt-image" in their deployment names.
func imageModeFor(deployment string) imageMode {
	if strings.Contains(strings.ToLower(deployment), "gpt-image") {
		return imageModeLongRunning
	}
	return imageModeImmediate
}

func imageSizeFor(mode imageMode) string {
	if mode == imageModeLongRunning {
		return "1536x1024"
	}
	return "1024x1024"
}

// Illustrator attaches one generated still to each scene, best effort.
type Illustrator struct {
	log        *logger.Logger
	client     ImageClient
	store      ImageStore
	deployment string
	policy     RetryPolicy
}

func NewIllustrator(log *logger.Logger, client ImageClient, store ImageStore, deployment string) *Illustrator {
	return &Illustrator{
		log:        log.With("service", "Illustrator"),
		client:     client,
		store:      store,
		deployment: strings.TrimSpace(deployment),
		policy: RetryPolicy{
			MaxAttempts: 10,
			Delay:       LinearBackoff(2*time.Second, 10*time.Second),
		},
	}
}

func (il *Illustrator) Enabled() bool { return il != nil && il.deployment != "" }

// PopulateImages fills ImageURL/ImageAlt on every scene that lacks one.
// Per-scene failures are logged and skipped; the slice is always left in
// a publishable state.
func (il *Illustrator) PopulateImages(ctx context.Context, docName string, summary string, scenes []storyboard.Scene) {
	if !il.Enabled() {
		return
	}
	mode := imageModeFor(il.deployment)
	size := imageSizeFor(mode)

	for i := range scenes {
		if scenes[i].ImageURL != "" {
			continue
		}
		prompt := scenes[i].VisualPrompt
		if strings.TrimSpace(prompt) == "" {
			prompt = storyboard.ComposeVisualPrompt(scenes[i].Title, scenes[i].Keywords, summary)
		}

		url, err := il.generateOne(ctx, docName, scenes[i].Index, prompt, mode, size)
		if err != nil {
			il.log.Warn("Scene image generation failed",
				"doc_name", docName,
				"scene_index", scenes[i].Index,
				"error", err.Error(),
			)
			continue
		}
		scenes[i].ImageURL = url
		scenes[i].ImageAlt = scenes[i].Title
	}
}

func (il *Illustrator) generateOne(ctx context.Context, docName string, index int, prompt string, mode imageMode, size string) (string, error) {
	var payload openai.ImagePayload
	var err error
	if mode == imageModeLongRunning {
		payload, err = il.submitAndPoll(ctx, prompt, size)
	} else {
		payload, err = il.client.CreateImage(ctx, il.deployment, prompt, size)
	}
	if err != nil {
		return "", err
	}

	data := payload.Bytes
	contentType := payload.MimeType
	if len(data) == 0 && payload.URL != "" {
		data, contentType, err = il.client.DownloadBytes(ctx, payload.URL)
		if err != nil {
			return "", fmt.Errorf("download image: %w", err)
		}
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image payload is empty")
	}
	if contentType == "" {
		contentType = "image/png"
	}

	key := SceneImageKey(docName, index)
	if err := il.store.UploadBytes(ctx, gcp.CategorySceneImages, key, data, contentType); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return il.store.PublicURL(gcp.CategorySceneImages, key), nil
}

func (il *Illustrator) submitAndPoll(ctx context.Context, prompt, size string) (openai.ImagePayload, error) {
	opID, err := il.client.SubmitImageJob(ctx, il.deployment, prompt, size)
	if err != nil {
		return openai.ImagePayload{}, err
	}
	for attempt := 0; attempt < il.policy.MaxAttempts; attempt++ {
		if err := il.policy.Wait(ctx, attempt); err != nil {
			return openai.ImagePayload{}, err
		}
		status, err := il.client.GetImageJob(ctx, opID)
		if err != nil {
			return openai.ImagePayload{}, err
		}
		switch strings.ToLower(status.Status) {
		case "succeeded", "completed":
			return status.Image, nil
		case "failed", "cancelled", "canceled":
			return openai.ImagePayload{}, fmt.Errorf("image job %s failed: %s", opID, status.Error)
		}
	}
	return openai.ImagePayload{}, fmt.Errorf("image job %s timed out after %d attempts", opID, il.policy.MaxAttempts)
}

// SceneImageKey is the deterministic per-document, per-scene object key.
func SceneImageKey(docName string, index int) string {
	return fmt.Sprintf("%s/scene-%d.png", storyboard.BaseName(docName), index)
}
