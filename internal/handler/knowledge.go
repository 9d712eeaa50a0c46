package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/service"
)

// KnowledgeSnapshot is the in-memory knowledge store
type KnowledgeSnapshot interface {
	Load(ctx context.Context) error
	Stats() model.KnowledgeStats
}

// ChunkWriter persists knowledge chunks
type ChunkWriter interface {
	UpsertKnowledgeChunks(ctx context.Context, chunks []model.KnowledgeChunk) (int, []string)
}

// ChunkBatchRequest is the body of POST /api/v1/knowledge/chunks
type ChunkBatchRequest struct {
	Chunks []model.KnowledgeChunk `json:"chunks" binding:"required"`
}

// ChunkBatchResponse reports a chunk batch write
type ChunkBatchResponse struct {
	Success  int      `json:"success"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
	Embedded int      `json:"embedded"`
}

// KnowledgeHandler serves knowledge store inspection and maintenance
type KnowledgeHandler struct {
	store    KnowledgeSnapshot
	writer   ChunkWriter
	embedder service.BatchEmbedder
	dims     int
	logger   *zap.Logger
}

// NewKnowledgeHandler creates a new knowledge handler. writer and embedder
// may be nil, which disables chunk uploads or server-side embedding.
func NewKnowledgeHandler(store KnowledgeSnapshot, writer ChunkWriter, embedder service.BatchEmbedder, dims int, logger *zap.Logger) *KnowledgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeHandler{store: store, writer: writer, embedder: embedder, dims: dims, logger: logger}
}

// Stats handles GET /api/v1/knowledge
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// Reload handles POST /api/v1/knowledge/reload
func (h *KnowledgeHandler) Reload(c *gin.Context) {
	if err := h.store.Load(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrKnowledgeEmpty) {
			status = http.StatusUnprocessableEntity
		}
		h.logger.Error("knowledge reload failed", zap.String("request_id", RequestID(c)), zap.Error(err))
		c.JSON(status, gin.H{"error": "Reload failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.store.Stats())
}

// Upsert handles POST /api/v1/knowledge/chunks. Chunks without an embedding
// are embedded first; the snapshot is reloaded after a successful write.
func (h *KnowledgeHandler) Upsert(c *gin.Context) {
	if h.writer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Knowledge source is read-only"})
		return
	}

	var req ChunkBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Chunks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No chunks provided"})
		return
	}

	for i, chunk := range req.Chunks {
		if chunk.ID == "" || chunk.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Chunk at index %d needs an id and content", i)})
			return
		}
		if len(chunk.Embedding) > 0 && h.dims > 0 && len(chunk.Embedding) != h.dims {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid embedding dimension at index %d, expected %d", i, h.dims),
			})
			return
		}
	}

	embedded := 0
	if h.embedder != nil {
		n, err := service.EmbedMissing(c.Request.Context(), h.embedder, req.Chunks)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Embedding failed: " + err.Error()})
			return
		}
		embedded = n
	}

	success, errs := h.writer.UpsertKnowledgeChunks(c.Request.Context(), req.Chunks)
	response := ChunkBatchResponse{
		Success:  success,
		Failed:   len(req.Chunks) - success,
		Errors:   errs,
		Embedded: embedded,
	}

	if success > 0 {
		if err := h.store.Load(c.Request.Context()); err != nil {
			h.logger.Warn("knowledge reload after upsert failed", zap.Error(err))
		}
	}

	if len(errs) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}
