package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovelight/storyreel-backend/internal/http/response"
	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/publish"
	"github.com/ovelight/storyreel-backend/internal/storyboard"
)

// maxUploadBytes caps one document body.
const maxUploadBytes = 200 * 1024

type DocumentHandler struct {
	log   *logger.Logger
	store gcp.BucketService
}

func NewDocumentHandler(log *logger.Logger, store gcp.BucketService) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "document"), store: store}
}

type uploadRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type uploadResponse struct {
	DocName string `json:"docName"`
	Size    int    `json:"size"`
}

// Upload stores one raw document. The stored name is sanitized and
// timestamp prefixed so repeated uploads of the same file never collide.
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Content) > maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "document_too_large",
			fmt.Errorf("document is %d bytes; limit is %d", len(req.Content), maxUploadBytes))
		return
	}

	docName := fmt.Sprintf("%s_%s",
		time.Now().UTC().Format("20060102T150405Z"),
		storyboard.SanitizeName(req.Name),
	)
	if err := h.store.UploadBytes(c.Request.Context(), gcp.CategoryUploads, docName, []byte(req.Content), "text/plain; charset=utf-8"); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	h.log.Info("Document uploaded", "doc_name", docName, "size", len(req.Content))
	response.RespondCreated(c, uploadResponse{DocName: docName, Size: len(req.Content)})
}

type documentEntry struct {
	DocName     string `json:"docName"`
	HasManifest bool   `json:"hasManifest"`
	ManifestURL string `json:"manifestUrl,omitempty"`
	QuizURL     string `json:"quizUrl,omitempty"`
}

// List enumerates uploaded documents with their processing state.
func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.store.ListKeys(ctx, gcp.CategoryUploads, "")
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	out := make([]documentEntry, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out = append(out, h.entryFor(ctx, key))
	}
	response.RespondOK(c, gin.H{"documents": out})
}

func (h *DocumentHandler) entryFor(ctx context.Context, docName string) documentEntry {
	entry := documentEntry{DocName: docName}
	artifact := publish.ArtifactKey(docName)
	if ok, err := h.store.Exists(ctx, gcp.CategoryManifests, artifact); err == nil && ok {
		entry.HasManifest = true
		entry.ManifestURL = h.store.PublicURL(gcp.CategoryManifests, artifact)
		entry.QuizURL = h.store.PublicURL(gcp.CategoryQuizzes, artifact)
	}
	return entry
}

type statusResponse struct {
	DocName     string `json:"docName"`
	Uploaded    bool   `json:"uploaded"`
	Processed   bool   `json:"processed"`
	HasQuiz     bool   `json:"hasQuiz"`
	ManifestURL string `json:"manifestUrl,omitempty"`
	QuizURL     string `json:"quizUrl,omitempty"`
}

// Status reports where one document sits in the pipeline.
func (h *DocumentHandler) Status(c *gin.Context) {
	docName := c.Param("docName")
	ctx := c.Request.Context()
	artifact := publish.ArtifactKey(docName)

	uploaded, _ := h.store.Exists(ctx, gcp.CategoryUploads, docName)
	processed, _ := h.store.Exists(ctx, gcp.CategoryManifests, artifact)
	hasQuiz, _ := h.store.Exists(ctx, gcp.CategoryQuizzes, artifact)

	if !uploaded && !processed {
		response.RespondError(c, http.StatusNotFound, "document_not_found",
			fmt.Errorf("no upload or artifacts for %q", docName))
		return
	}

	resp := statusResponse{
		DocName:   docName,
		Uploaded:  uploaded,
		Processed: processed,
		HasQuiz:   hasQuiz,
	}
	if processed {
		resp.ManifestURL = h.store.PublicURL(gcp.CategoryManifests, artifact)
	}
	if hasQuiz {
		resp.QuizURL = h.store.PublicURL(gcp.CategoryQuizzes, artifact)
	}
	response.RespondOK(c, resp)
}

// Manifest streams the published manifest JSON.
func (h *DocumentHandler) Manifest(c *gin.Context) {
	h.artifact(c, gcp.CategoryManifests)
}

// Quiz streams the published quiz JSON.
func (h *DocumentHandler) Quiz(c *gin.Context) {
	h.artifact(c, gcp.CategoryQuizzes)
}

func (h *DocumentHandler) artifact(c *gin.Context, category gcp.Category) {
	docName := c.Param("docName")
	raw, err := h.store.Download(c.Request.Context(), category, publish.ArtifactKey(docName))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "artifact_not_found", err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
