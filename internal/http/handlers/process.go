package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ovelight/storyreel-backend/internal/generate"
	"github.com/ovelight/storyreel-backend/internal/http/response"
	"github.com/ovelight/storyreel-backend/internal/ingest"
	"github.com/ovelight/storyreel-backend/internal/pipeline"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
)

type ProcessHandler struct {
	log    *logger.Logger
	runner *pipeline.Runner
}

func NewProcessHandler(log *logger.Logger, runner *pipeline.Runner) *ProcessHandler {
	return &ProcessHandler{log: log.With("handler", "process"), runner: runner}
}

// ProcessOne runs the pipeline for a single uploaded document.
func (h *ProcessHandler) ProcessOne(c *gin.Context) {
	docName := c.Param("docName")
	res, err := h.runner.Process(c.Request.Context(), docName)
	if err != nil {
		var extractErr *ingest.ExtractionError
		var genErr *generate.GenerationError
		switch {
		case errors.As(err, &extractErr):
			response.RespondError(c, http.StatusUnprocessableEntity, "extraction_failed", err)
		case errors.As(err, &genErr):
			response.RespondError(c, http.StatusBadGateway, "generation_failed", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "pipeline_failed", err)
		}
		return
	}
	response.RespondOK(c, res)
}

// ProcessPending sweeps uploads that never got a manifest. Query params:
// max bounds the number of runs, force reprocesses published documents.
func (h *ProcessHandler) ProcessPending(c *gin.Context) {
	max, _ := strconv.Atoi(c.DefaultQuery("max", "0"))
	force := strings.EqualFold(c.DefaultQuery("force", "false"), "true")

	res, err := h.runner.Sweep(c.Request.Context(), max, force)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "sweep_failed", err)
		return
	}
	response.RespondOK(c, res)
}
