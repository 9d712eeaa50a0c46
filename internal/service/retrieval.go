package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

const answerSystemPrompt = `You are Marrfa AI, the assistant of Marrfa Real Estate in Dubai.
Answer the user's question using ONLY the context below. If the context does not
contain the answer, say that you don't have that information. Be concise and
professional. Do not invent names, numbers or policies.

Context:
%s`

var leadershipTerms = []string{"ceo", "owner", "founder", "co founder", "chairman", "leadership"}

// RetrievalEngine answers company questions from the knowledge store
type RetrievalEngine struct {
	store           *KnowledgeStore
	embedder        Embedder
	completer       Completer
	topK            int
	minScore        float64
	contextBudget   int
	embedTimeout    time.Duration
	generateTimeout time.Duration
	historyTurns    int
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// NewRetrievalEngine creates a retrieval engine. provider may be nil, in
// which case retrieval is always empty.
func NewRetrievalEngine(store *KnowledgeStore, provider Provider, kcfg config.KnowledgeConfig, rcfg config.RouterConfig, logger *zap.Logger, m *metrics.Metrics) *RetrievalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &RetrievalEngine{
		store:           store,
		topK:            kcfg.TopK,
		minScore:        kcfg.MinScore,
		contextBudget:   kcfg.ContextBudget,
		embedTimeout:    rcfg.EmbedTimeout,
		generateTimeout: rcfg.GenerateTimeout,
		historyTurns:    rcfg.HistoryTurns,
		logger:          logger,
		metrics:         m,
	}
	if provider != nil {
		e.embedder = provider
		e.completer = provider
	}
	return e
}

// Embed returns the query embedding bounded by the embed timeout
func (e *RetrievalEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, newDisabledError("embed")
	}
	if p, ok := e.embedder.(interface{ IsEnabled() bool }); ok && !p.IsEnabled() {
		return nil, newDisabledError("embed")
	}
	if e.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.embedTimeout)
		defer cancel()
	}
	return e.embedder.Embed(ctx, text)
}

// Retrieve embeds the query and returns the k most similar chunks above the
// score floor. k <= 0 uses the configured top-k. Embedding failures yield an
// empty result flagged ProviderUnavailable.
func (e *RetrievalEngine) Retrieve(ctx context.Context, q model.Query, k int) model.RetrievalResult {
	if e.store == nil || e.store.Len() == 0 {
		e.metrics.RecordRetrieval(0)
		return model.RetrievalResult{}
	}

	vec, err := e.Embed(ctx, q.Text)
	if err != nil {
		e.logger.Warn("query embedding failed",
			zap.String("request_id", q.RequestID),
			zap.Error(err),
		)
		e.metrics.RecordRetrieval(0)
		return model.RetrievalResult{ProviderUnavailable: true}
	}
	return e.RetrieveVector(vec, k)
}

// RetrieveVector searches with an embedding computed elsewhere
func (e *RetrievalEngine) RetrieveVector(vec []float32, k int) model.RetrievalResult {
	if k <= 0 {
		k = e.topK
	}
	var result model.RetrievalResult
	if e.store != nil {
		for _, sc := range e.store.Search(vec, k) {
			if sc.Score < e.minScore {
				break
			}
			result.Chunks = append(result.Chunks, sc)
		}
	}
	e.metrics.RecordRetrieval(len(result.Chunks))
	return result
}

// BuildContext renders chunks as "[n] Title (URL)\ncontent" blocks separated by
// blank lines, at most budget characters long. Lower-ranked blocks are dropped
// first; the top block is truncated rather than dropped.
func BuildContext(chunks []model.ScoredChunk, budget int) string {
	var b strings.Builder
	used := 0
	for i, sc := range chunks {
		header := fmt.Sprintf("[%d] %s", i+1, sc.Chunk.Title)
		if sc.Chunk.SourceURL != "" {
			header += " (" + sc.Chunk.SourceURL + ")"
		}
		segment := header + "\n" + strings.TrimSpace(sc.Chunk.Content)
		size := utf8.RuneCountInString(segment)

		if i == 0 {
			if size > budget {
				return truncateRunes(segment, budget)
			}
			b.WriteString(segment)
			used = size
			continue
		}
		if used+2+size > budget {
			break
		}
		b.WriteString("\n\n")
		b.WriteString(segment)
		used += 2 + size
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Answer generates a grounded reply from the retrieved chunks. With onDelta
// set and a streaming provider, answer tokens are forwarded as they arrive.
// When generation fails an extractive reply is built from the chunks.
func (e *RetrievalEngine) Answer(ctx context.Context, q model.Query, result model.RetrievalResult, onDelta func(string) error) (string, bool) {
	if result.IsEmpty() {
		return NoInformationReply, false
	}

	reply, err := e.generate(ctx, q, result, onDelta)
	if err == nil && strings.TrimSpace(reply) != "" {
		return strings.TrimSpace(reply), true
	}
	if err != nil {
		e.logger.Warn("grounded generation failed, using extractive answer",
			zap.String("request_id", q.RequestID),
			zap.Error(err),
		)
	}

	reply = ExtractiveAnswer(q.Text, result.Chunks)
	if reply == "" {
		return NoInformationReply, false
	}
	return reply, true
}

func (e *RetrievalEngine) generate(ctx context.Context, q model.Query, result model.RetrievalResult, onDelta func(string) error) (string, error) {
	if e.completer == nil {
		return "", newDisabledError("chat")
	}
	if p, ok := e.completer.(interface{ IsEnabled() bool }); ok && !p.IsEnabled() {
		return "", newDisabledError("chat")
	}
	if e.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.generateTimeout)
		defer cancel()
	}

	messages := e.buildMessages(q, BuildContext(result.Chunks, e.contextBudget))

	if onDelta != nil {
		if sc, ok := e.completer.(StreamCompleter); ok {
			return sc.CompleteStream(ctx, messages, CompletionOptions{}, onDelta)
		}
	}
	return e.completer.Complete(ctx, messages, CompletionOptions{})
}

func (e *RetrievalEngine) buildMessages(q model.Query, groundingContext string) []ChatMessage {
	messages := []ChatMessage{{Role: "system", Content: fmt.Sprintf(answerSystemPrompt, groundingContext)}}

	history := q.History
	if e.historyTurns >= 0 && len(history) > e.historyTurns {
		history = history[len(history)-e.historyTurns:]
	}
	for _, turn := range history {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}

	user := q.Text
	if strings.TrimSpace(q.FileText) != "" {
		user += "\n\nAttached document:\n" + q.FileText
	}
	return append(messages, ChatMessage{Role: "user", Content: user})
}

// ExtractiveAnswer picks a chunk to quote verbatim: for leadership questions
// the first chunk mentioning the CEO or titled as leadership, otherwise the
// top chunk
func ExtractiveAnswer(query string, chunks []model.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	if containsAny(utils.CleanText(query), leadershipTerms) {
		for _, sc := range chunks {
			title := strings.ToLower(sc.Chunk.Title)
			if utils.ContainsPhrase(utils.CleanText(sc.Chunk.Content), "ceo") || strings.HasPrefix(title, "lead") {
				return strings.TrimSpace(sc.Chunk.Content)
			}
		}
	}
	return strings.TrimSpace(chunks[0].Chunk.Content)
}

// Sources converts retrieved chunks into citations
func Sources(chunks []model.ScoredChunk) []model.Source {
	out := make([]model.Source, 0, len(chunks))
	for _, sc := range chunks {
		out = append(out, model.Source{
			ID:        sc.Chunk.ID,
			Title:     sc.Chunk.Title,
			SourceURL: sc.Chunk.SourceURL,
			Score:     sc.Score,
		})
	}
	return out
}
