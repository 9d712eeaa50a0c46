package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/service"
)

// QueryInspector exposes the router's classification and filter parsing
type QueryInspector interface {
	Classify(ctx context.Context, q model.Query) model.Classification
	ParseFilter(q model.Query) model.PropertyFilter
}

// DebugHandler serves classification and filter inspection endpoints
type DebugHandler struct {
	inspector QueryInspector
	perPage   int
}

// NewDebugHandler creates a new debug handler
func NewDebugHandler(inspector QueryInspector, perPage int) *DebugHandler {
	return &DebugHandler{inspector: inspector, perPage: perPage}
}

func queryParam(c *gin.Context) (string, bool) {
	q := strings.TrimSpace(c.Query("query"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return "", false
	}
	return q, true
}

// Intent handles GET /api/v1/debug/intent
func (h *DebugHandler) Intent(c *gin.Context) {
	text, ok := queryParam(c)
	if !ok {
		return
	}
	cls := h.inspector.Classify(c.Request.Context(), model.Query{Text: text, RequestID: RequestID(c)})
	c.JSON(http.StatusOK, gin.H{
		"query":  text,
		"intent": cls.Intent,
		"method": cls.Method,
	})
}

// Filters handles GET /api/v1/debug/filters
func (h *DebugHandler) Filters(c *gin.Context) {
	text, ok := queryParam(c)
	if !ok {
		return
	}
	filter := h.inspector.ParseFilter(model.Query{Text: text})
	params := service.BuildListingParams(filter, 1, h.perPage)

	flat := map[string]string{}
	for k, v := range params.Values() {
		flat[k] = strings.Join(v, ",")
	}
	c.JSON(http.StatusOK, gin.H{
		"query":  text,
		"filter": filter,
		"params": flat,
	})
}
