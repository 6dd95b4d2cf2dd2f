package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

// Store is the object-store slice the publisher needs.
type Store interface {
	UploadBytes(ctx context.Context, category gcp.Category, key string, data []byte, contentType string) error
	PublicURL(category gcp.Category, key string) string
}

// Publisher writes the final manifest and quiz artifacts. Keys derive
// from the document base name, so re-publishing the same document
// overwrites the prior artifacts in place.
type Publisher struct {
	log   *logger.Logger
	store Store
}

func NewPublisher(log *logger.Logger, store Store) *Publisher {
	return &Publisher{log: log.With("service", "Publisher"), store: store}
}

// ArtifactKey is the deterministic JSON key for one document.
func ArtifactKey(docName string) string {
	return storyboard.BaseName(docName) + ".json"
}

// Publish writes both artifacts or neither. A manifest without its quiz
// would break the player, so the quiz failure surfaces even after the
// manifest landed.
func (p *Publisher) Publish(ctx context.Context, docName string, manifest *storyboard.Manifest, quiz *storyboard.QuizDocument) error {
	key := ArtifactKey(docName)

	if err := p.writeJSON(ctx, gcp.CategoryManifests, key, manifest); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	if err := p.writeJSON(ctx, gcp.CategoryQuizzes, key, quiz); err != nil {
		return fmt.Errorf("publish quiz: %w", err)
	}

	p.log.Info("Artifacts published",
		"doc_name", docName,
		"manifest_url", p.store.PublicURL(gcp.CategoryManifests, key),
		"quiz_url", p.store.PublicURL(gcp.CategoryQuizzes, key),
		"scene_count", manifest.SceneCount,
		"question_count", len(quiz.Questions),
	)
	return nil
}

func (p *Publisher) writeJSON(ctx context.Context, category gcp.Category, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", category, key, err)
	}
	return p.store.UploadBytes(ctx, category, key, data, "application/json")
}
