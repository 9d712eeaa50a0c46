package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/service"
)

// QueryRouter answers one chat query
type QueryRouter interface {
	Handle(ctx context.Context, q model.Query) model.StructuredResponse
	HandleStream(ctx context.Context, q model.Query, callback service.EventCallback) model.StructuredResponse
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	router QueryRouter
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(router QueryRouter, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{router: router, logger: logger}
}

// bindChat reads the request body; the usage middleware may have read it first
func bindChat(c *gin.Context) (model.ChatRequest, bool) {
	var req model.ChatRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(c, model.ErrorCodeInvalidRequest, "Invalid request: "+err.Error()))
		return req, false
	}
	return req, true
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}

	resp := h.router.Handle(c.Request.Context(), req.ToQuery(RequestID(c)))
	c.JSON(statusFor(resp), resp)
}

// ChatStream handles POST /api/v1/chat/stream - SSE streaming chat
func (h *ChatHandler) ChatStream(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse(c, model.ErrorCodeInternal, "Streaming not supported"))
		return
	}

	ctx := c.Request.Context()
	requestID := RequestID(c)

	sendSSE(c, "start", map[string]any{"query": req.Query, "request_id": requestID})
	flusher.Flush()

	resp := h.router.HandleStream(ctx, req.ToQuery(requestID), func(event string, data any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})

	if ctx.Err() != nil {
		h.logger.Debug("stream client went away", zap.String("request_id", requestID))
		return
	}

	sendSSE(c, "result", resp)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}

// statusFor maps a response to its HTTP status. Listing outages are an
// ordinary reply; only internal failures are 5xx.
func statusFor(resp model.StructuredResponse) int {
	if resp.Kind == model.KindError && resp.ErrorCode == model.ErrorCodeInternal {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// errorResponse builds an error-kind response for failures outside the router
func errorResponse(c *gin.Context, code, reply string) model.StructuredResponse {
	return model.StructuredResponse{
		Kind:      model.KindError,
		Reply:     strings.TrimSpace(reply),
		ErrorCode: code,
		RequestID: RequestID(c),
	}
}
