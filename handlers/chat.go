package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-assistant/conversation"
	logx "chat-assistant/logger"
	"chat-assistant/metrics"
	"chat-assistant/models"
	"chat-assistant/transcript"
	"chat-assistant/workflows"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	workflow *workflows.ChatWorkflow
	buffers  *conversation.Buffers
	store    transcript.Store
	metrics  *metrics.Metrics
}

// askBody mirrors models.ChatRequest for binding. Pointer fields let
// "required" reject absent fields while accepting empty strings.
type askBody struct {
	Question     *string               `json:"question" binding:"required"`
	History      []models.HistoryEntry `json:"history"`
	SessionID    *string               `json:"session_id" binding:"required"`
	OpenAIAPIKey *string               `json:"openai_api_key" binding:"required"`
}

func (b askBody) request() models.ChatRequest {
	return models.ChatRequest{
		Question:     *b.Question,
		History:      b.History,
		SessionID:    *b.SessionID,
		OpenAIAPIKey: *b.OpenAIAPIKey,
	}
}

// NewChatHandler creates a new chat handler
func NewChatHandler(wf *workflows.ChatWorkflow, buffers *conversation.Buffers, store transcript.Store, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{
		workflow: wf,
		buffers:  buffers,
		store:    store,
		metrics:  m,
	}
}

// Register mounts the chat routes on router
func (h *ChatHandler) Register(router gin.IRouter) {
	router.POST("/llm", h.Ask)
	router.GET("/health", h.Health)
}

// Ask answers one question and returns the reply plus the buffer snapshot
func (h *ChatHandler) Ask(c *gin.Context) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		h.metrics.ObserveRequest(strconv.Itoa(status), time.Since(start))
	}()

	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil {
		status = http.StatusUnprocessableEntity
		c.JSON(status, models.ErrorResponse{Detail: err.Error()})
		return
	}
	req := body.request()

	logx.Info().
		Str("session_id", req.SessionID).
		Int("history_len", len(req.History)).
		Msg("received query")
	logx.Debug().Str("session_id", req.SessionID).Str("question", req.Question).Msg("query text")

	output, err := h.workflow.Answer(c.Request.Context(), workflows.AnswerInput{
		Question:  req.Question,
		History:   req.History,
		SessionID: req.SessionID,
		APIKey:    req.OpenAIAPIKey,
	})
	h.metrics.TurnsPersisted.Add(float64(output.Persisted))
	if err != nil {
		step := "unknown"
		var stepErr *workflows.StepError
		if errors.As(err, &stepErr) {
			step = string(stepErr.Step)
		}
		h.metrics.Failures.WithLabelValues(step).Inc()
		logx.Error().Err(err).Str("session_id", req.SessionID).Str("step", step).Msg("answer failed")

		status = http.StatusInternalServerError
		c.JSON(status, models.ErrorResponse{Detail: err.Error()})
		return
	}

	logx.Info().
		Str("session_id", req.SessionID).
		Int("response_len", len(output.Response)).
		Int("buffer_len", len(output.History)).
		Msg("answered query")

	c.JSON(status, models.ChatResponse{
		Response: output.Response,
		History:  output.History,
	})
}

// Health reports liveness and the configured backends
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"store":        h.store.Backend(),
		"buffer_scope": string(h.buffers.Scope()),
	})
}
