package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
)

// Router states, in the order a query passes through them
const (
	StateReceived         = "RECEIVED"
	StateClassified       = "CLASSIFIED"
	StatePropertyResolved = "PROPERTY_RESOLVED"
	StateCompanyResolved  = "COMPANY_RESOLVED"
	StateRejected         = "REJECTED"
	StateResponded        = "RESPONDED"
)

// Streaming event names
const (
	EventClassified = "classified"
	EventFilters    = "filters"
	EventSearching  = "searching"
	EventRetrieving = "retrieving"
	EventDelta      = "delta"
)

// EventCallback is called for streaming router events
type EventCallback func(event string, data any) error

// QueryLogger persists handled queries
type QueryLogger interface {
	LogQuery(ctx context.Context, entry *model.ChatLogEntry) error
}

// Router takes one query from classification to a StructuredResponse
type Router struct {
	classifier       *IntentClassifier
	parser           *FilterParser
	search           *PropertySearchCoordinator
	retrieval        *RetrievalEngine
	queryLog         QueryLogger
	speculativeEmbed bool
	logger           *zap.Logger
	metrics          *metrics.Metrics
}

// NewRouter creates a router. queryLog may be nil.
func NewRouter(
	classifier *IntentClassifier,
	parser *FilterParser,
	search *PropertySearchCoordinator,
	retrieval *RetrievalEngine,
	queryLog QueryLogger,
	cfg config.RouterConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		classifier = NewIntentClassifier(nil, nil, 0, logger, m)
	}
	if parser == nil {
		parser = NewFilterParser(nil)
	}
	return &Router{
		classifier:       classifier,
		parser:           parser,
		search:           search,
		retrieval:        retrieval,
		queryLog:         queryLog,
		speculativeEmbed: cfg.SpeculativeEmbed,
		logger:           logger,
		metrics:          m,
	}
}

// Classify exposes the classifier for debugging endpoints
func (r *Router) Classify(ctx context.Context, q model.Query) model.Classification {
	return r.classifier.Classify(ctx, q)
}

// ParseFilter exposes the filter parser for debugging endpoints
func (r *Router) ParseFilter(q model.Query) model.PropertyFilter {
	return r.parser.Parse(q)
}

// Handle routes q and always returns a response; failures become error kinds
func (r *Router) Handle(ctx context.Context, q model.Query) model.StructuredResponse {
	return r.handle(ctx, q, nil)
}

// HandleStream is Handle with progress events and answer deltas sent to
// callback. A failing callback stops further events but not the query.
func (r *Router) HandleStream(ctx context.Context, q model.Query, callback EventCallback) model.StructuredResponse {
	return r.handle(ctx, q, callback)
}

// run carries the state of one invocation
type run struct {
	query    model.Query
	states   []string
	callback EventCallback
	emitErr  error
	logger   *zap.Logger
}

func (x *run) enter(state string) {
	x.states = append(x.states, state)
}

func (x *run) emit(event string, data any) error {
	if x.callback == nil || x.emitErr != nil {
		return x.emitErr
	}
	if err := x.callback(event, data); err != nil {
		x.emitErr = err
		x.logger.Debug("stream callback failed", zap.String("event", event), zap.Error(err))
	}
	return x.emitErr
}

func (r *Router) handle(ctx context.Context, q model.Query, callback EventCallback) (resp model.StructuredResponse) {
	start := time.Now()
	if q.RequestID == "" {
		q.RequestID = uuid.NewString()
	}
	x := &run{query: q, callback: callback, logger: r.logger}
	x.enter(StateReceived)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("router panic",
				zap.String("request_id", q.RequestID),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			resp = model.StructuredResponse{
				Kind:      model.KindError,
				Reply:     InternalErrorReply,
				Intent:    resp.Intent,
				Method:    resp.Method,
				ErrorCode: model.ErrorCodeInternal,
			}
		}
		x.enter(StateResponded)
		resp.States = x.states
		resp.RequestID = q.RequestID
		took := time.Since(start)
		resp.Took = took.Milliseconds()

		r.metrics.RecordQuery(string(resp.Intent), string(resp.Kind), took)
		r.logger.Info("query handled",
			zap.String("request_id", q.RequestID),
			zap.String("intent", string(resp.Intent)),
			zap.String("method", resp.Method),
			zap.String("kind", string(resp.Kind)),
			zap.Strings("states", resp.States),
			zap.Int("total", resp.Total),
			zap.Int64("took_ms", resp.Took),
		)
		r.logQuery(q, resp)
	}()

	cls, prefetched := r.classify(ctx, q)
	x.enter(StateClassified)
	resp.Intent = cls.Intent
	resp.Method = cls.Method
	_ = x.emit(EventClassified, cls)

	switch cls.Intent {
	case model.IntentProperty:
		x.enter(StatePropertyResolved)
		r.handleProperty(ctx, x, &resp)
	case model.IntentCompany:
		x.enter(StateCompanyResolved)
		r.handleCompany(ctx, x, &resp, prefetched)
	default:
		x.enter(StateRejected)
		r.handleRejection(cls, &resp)
	}
	return resp
}

// prefetch is a query embedding computed while classifying
type prefetch struct {
	vec []float32
	err error
}

// classify runs the classifier and, when speculative embedding is enabled,
// the query embedding concurrently. The embedding is cancelled unless the
// intent is COMPANY.
func (r *Router) classify(ctx context.Context, q model.Query) (model.Classification, *prefetch) {
	if !r.speculativeEmbed || r.retrieval == nil || q.Text == "" {
		return r.classifier.Classify(ctx, q), nil
	}

	embedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var p prefetch
	var g errgroup.Group
	g.Go(func() error {
		p.vec, p.err = r.retrieval.Embed(embedCtx, q.Text)
		return nil
	})

	cls := r.classifier.Classify(ctx, q)
	if cls.Intent != model.IntentCompany {
		cancel()
	}
	_ = g.Wait()

	if cls.Intent != model.IntentCompany {
		return cls, nil
	}
	return cls, &p
}

func (r *Router) handleProperty(ctx context.Context, x *run, resp *model.StructuredResponse) {
	filter := r.parser.Parse(x.query)
	resp.Filter = &filter
	_ = x.emit(EventFilters, filter)

	if filter.ForeignCurrency {
		resp.Kind = model.KindAnswer
		resp.Reply = CurrencyNoticeReply(filter)
		return
	}

	_ = x.emit(EventSearching, map[string]any{"status": "Searching properties..."})
	var out SearchOutcome
	if r.search != nil {
		out = r.search.Search(ctx, filter)
	} else {
		out.Unavailable = true
	}
	if out.Unavailable {
		resp.Kind = model.KindError
		resp.Reply = ListingsUnavailableReply
		resp.ErrorCode = model.ErrorCodeListingsUnavailable
		return
	}

	resp.Kind = model.KindPropertyList
	resp.Listings = out.Listings
	resp.Total = out.Total
	resp.Reply = PropertyReply(x.query.Text, filter, out.Total, len(out.Listings))
}

func (r *Router) handleCompany(ctx context.Context, x *run, resp *model.StructuredResponse, p *prefetch) {
	_ = x.emit(EventRetrieving, map[string]any{"status": "Looking up Marrfa information..."})

	var result model.RetrievalResult
	switch {
	case r.retrieval == nil:
	case p != nil && p.err != nil:
		r.logger.Warn("speculative embedding failed",
			zap.String("request_id", x.query.RequestID),
			zap.Error(p.err),
		)
		result = model.RetrievalResult{ProviderUnavailable: true}
	case p != nil:
		result = r.retrieval.RetrieveVector(p.vec, 0)
	default:
		result = r.retrieval.Retrieve(ctx, x.query, 0)
	}

	resp.Kind = model.KindAnswer
	if result.IsEmpty() {
		resp.Reply = NoInformationReply
		return
	}

	var onDelta func(string) error
	if x.callback != nil {
		onDelta = func(delta string) error {
			return x.emit(EventDelta, map[string]any{"content": delta})
		}
	}
	resp.Reply, resp.Grounded = r.retrieval.Answer(ctx, x.query, result, onDelta)
	resp.Sources = Sources(result.Chunks)
}

func (r *Router) handleRejection(cls model.Classification, resp *model.StructuredResponse) {
	switch cls.Method {
	case model.MethodGreeting:
		resp.Kind = model.KindAnswer
		resp.Reply = GreetingReply
	case model.MethodEmpty:
		resp.Kind = model.KindAnswer
		resp.Reply = EmptyQueryReply
	default:
		resp.Kind = model.KindRejection
		resp.Reply = RejectionReply
	}
}

// logQuery writes the chat log without blocking the response
func (r *Router) logQuery(q model.Query, resp model.StructuredResponse) {
	if r.queryLog == nil {
		return
	}
	entry := &model.ChatLogEntry{
		RequestID: q.RequestID,
		SessionID: q.SessionID,
		Query:     q.Text,
		Intent:    string(resp.Intent),
		Method:    resp.Method,
		Kind:      string(resp.Kind),
		Filters:   resp.Filter.ToMap(),
		Total:     resp.Total,
		Grounded:  resp.Grounded,
		States:    resp.States,
		TookMS:    int(resp.Took),
	}
	for _, l := range resp.Listings {
		entry.ListingIDs = append(entry.ListingIDs, l.ID)
	}
	if resp.ErrorCode != "" {
		code := resp.ErrorCode
		entry.ErrorCode = &code
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.queryLog.LogQuery(ctx, entry); err != nil {
			r.logger.Warn("failed to log query", zap.String("request_id", entry.RequestID), zap.Error(err))
		}
	}()
}
