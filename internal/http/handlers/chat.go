package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovelight/storyreel-backend/internal/chat"
	"github.com/ovelight/storyreel-backend/internal/http/response"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/platform/openai"
)

type ChatHandler struct {
	log       *logger.Logger
	assistant *chat.Assistant
}

func NewChatHandler(log *logger.Logger, assistant *chat.Assistant) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "chat"), assistant: assistant}
}

type chatAskRequest struct {
	Question string            `json:"question" binding:"required"`
	History  []openai.ChatTurn `json:"history"`
}

type chatAskResponse struct {
	DocName string `json:"docName"`
	Answer  string `json:"answer"`
}

// Ask answers a question about a processed document, grounded on its
// published manifest and quiz.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	docName := c.Param("docName")
	answer, err := h.assistant.Answer(c.Request.Context(), docName, req.Question, req.History)
	if err != nil {
		if errors.Is(err, chat.ErrManifestNotFound) {
			response.RespondError(c, http.StatusNotFound, "manifest_not_found", err)
			return
		}
		response.RespondError(c, http.StatusBadGateway, "chat_failed", err)
		return
	}
	response.RespondOK(c, chatAskResponse{DocName: docName, Answer: answer})
}
