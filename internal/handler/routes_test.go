package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/repository"
	"marrfa-assistant/internal/service"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type stubKnowledge struct {
	loadErr error
	loads   int
	stats   model.KnowledgeStats
}

func (s *stubKnowledge) Load(context.Context) error {
	s.loads++
	return s.loadErr
}

func (s *stubKnowledge) Stats() model.KnowledgeStats { return s.stats }

type stubChunkWriter struct {
	written []model.KnowledgeChunk
	errs    []string
}

func (s *stubChunkWriter) UpsertKnowledgeChunks(_ context.Context, chunks []model.KnowledgeChunk) (int, []string) {
	s.written = append(s.written, chunks...)
	return len(chunks) - len(s.errs), s.errs
}

type stubEmbedder struct{}

func (stubEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubFeedback struct {
	err  error
	args []string
}

func (s *stubFeedback) LogFeedback(_ context.Context, requestID, listingID, action string) error {
	s.args = []string{requestID, listingID, action}
	return s.err
}

func TestDebugIntent(t *testing.T) {
	engine := NewEngine(Deps{Router: &stubRouter{}})

	w := doJSON(engine, http.MethodGet, "/api/v1/debug/intent", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/debug/intent?query=villas+in+jvc", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]string](t, w)
	assert.Equal(t, "PROPERTY", got["intent"])
	assert.Equal(t, "rule_based", got["method"])
}

func TestDebugFilters(t *testing.T) {
	engine := NewEngine(Deps{Router: &stubRouter{}, PerPage: 15})

	w := doJSON(engine, http.MethodGet, "/api/v1/debug/filters?query=2+bedroom+villa+in+jvc+under+2m", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Filter model.PropertyFilter `json:"filter"`
		Params map[string]string    `json:"params"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Jumeirah Village Circle", got.Params["search_query"])
	assert.Equal(t, "Villa", got.Params["unit_types"])
	assert.Equal(t, "2 bedroom", got.Params["unit_bedrooms"])
	assert.Equal(t, "2000000", got.Params["unit_price_to"])
	assert.Equal(t, "15", got.Params["per_page"])
	require.NotNil(t, got.Filter.PriceMax)
	assert.Equal(t, 2_000_000.0, *got.Filter.PriceMax)
}

func TestKnowledgeStatsAndReload(t *testing.T) {
	store := &stubKnowledge{stats: model.KnowledgeStats{TotalChunks: 2, Titles: map[string]int{"About": 2}}}
	engine := NewEngine(Deps{Router: &stubRouter{}, Knowledge: store})

	w := doJSON(engine, http.MethodGet, "/api/v1/knowledge", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[model.KnowledgeStats](t, w).TotalChunks)

	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/reload", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.loads)

	store.loadErr = fmt.Errorf("load: %w", service.ErrKnowledgeEmpty)
	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	store.loadErr = errors.New("db down")
	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestKnowledgeUpsert(t *testing.T) {
	store := &stubKnowledge{}
	writer := &stubChunkWriter{}
	engine := NewEngine(Deps{Router: &stubRouter{}, Knowledge: store, Chunks: writer, Embedder: stubEmbedder{}, EmbeddingDims: 2})

	w := doJSON(engine, http.MethodPost, "/api/v1/knowledge/chunks", `{"chunks":[{"id":"a","title":"About","content":"x","embedding":[1,2,3]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "wrong dimension")

	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/chunks", `{"chunks":[{"id":"a","title":"About"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing content")

	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/chunks",
		`{"chunks":[{"id":"a","title":"About","content":"x","embedding":[0,1]},{"id":"b","title":"Team","content":"y"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ChunkBatchResponse](t, w)
	assert.Equal(t, 2, resp.Success)
	assert.Equal(t, 1, resp.Embedded)
	require.Len(t, writer.written, 2)
	assert.Equal(t, []float32{1, 0}, writer.written[1].Embedding)
	assert.Equal(t, 1, store.loads, "snapshot reloaded after write")

	writer.errs = []string{"chunk b: boom"}
	w = doJSON(engine, http.MethodPost, "/api/v1/knowledge/chunks", `{"chunks":[{"id":"a","content":"x"},{"id":"b","content":"y"}]}`)
	assert.Equal(t, http.StatusPartialContent, w.Code)
}

func TestKnowledgeUpsert_ReadOnly(t *testing.T) {
	engine := NewEngine(Deps{Router: &stubRouter{}, Knowledge: &stubKnowledge{}})
	w := doJSON(engine, http.MethodPost, "/api/v1/knowledge/chunks", `{"chunks":[{"id":"a","content":"x"}]}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestFeedback(t *testing.T) {
	fb := &stubFeedback{}
	engine := NewEngine(Deps{Router: &stubRouter{}, Feedback: fb})

	w := doJSON(engine, http.MethodPost, "/api/v1/feedback", `{"request_id":"r1","listing_id":"p1","action":"share"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/v1/feedback", `{"request_id":"r1","listing_id":"p1","action":"click"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"r1", "p1", "click"}, fb.args)
	assert.True(t, decode[model.FeedbackResponse](t, w).Success)

	fb.err = fmt.Errorf("feedback: %w", repository.ErrRequestNotFound)
	w = doJSON(engine, http.MethodPost, "/api/v1/feedback", `{"request_id":"r2","listing_id":"p1","action":"contact"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	engine = NewEngine(Deps{Router: &stubRouter{}})
	w = doJSON(engine, http.MethodPost, "/api/v1/feedback", `{"request_id":"r1","listing_id":"p1","action":"click"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthVersionMetrics(t *testing.T) {
	build := BuildInfo{Version: "1.2.3", BuildTime: "now", GitCommit: "abc"}
	engine := NewEngine(Deps{
		Router:  &stubRouter{},
		Build:   build,
		Metrics: metrics.New(),
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})

	w := doJSON(engine, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])

	w = doJSON(engine, http.MethodGet, "/version", "")
	assert.Equal(t, build, decode[BuildInfo](t, w))

	w = doJSON(engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marrfa_http_requests_total")

	engine = NewEngine(Deps{
		Router: &stubRouter{},
		HealthChecks: map[string]HealthCheck{
			"redis": func(ctx context.Context) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Millisecond):
					return errors.New("connection refused")
				}
			},
		},
	})
	w = doJSON(engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", got["status"])
	assert.Equal(t, "connection refused", got["checks"].(map[string]any)["redis"])
}

func TestNoRoute(t *testing.T) {
	engine := NewEngine(Deps{Router: &stubRouter{}})
	w := doJSON(engine, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
