package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/model"
)

func testKnowledgeConfig() config.KnowledgeConfig {
	return config.KnowledgeConfig{TopK: 3, MinScore: 0.2, ContextBudget: 2000}
}

func testRouterConfig() config.RouterConfig {
	return config.RouterConfig{
		ClassifierTimeout: time.Second,
		EmbedTimeout:      time.Second,
		GenerateTimeout:   time.Second,
		HistoryTurns:      2,
	}
}

func companyStore(t *testing.T) *KnowledgeStore {
	s := NewKnowledgeStore(nil, "test", zaptest.NewLogger(t))
	s.Replace([]model.KnowledgeChunk{
		{ID: "about", Title: "About Marrfa", SourceURL: "https://www.marrfa.com/about", Content: "Marrfa is a Dubai-based real estate platform.", Embedding: []float32{1, 0, 0}},
		{ID: "lead", Title: "Leadership", Content: "Jamil Ahmed is the CEO and founder of Marrfa.", Embedding: []float32{0.6, 0.8, 0}},
		{ID: "privacy", Title: "Privacy Policy", Content: "We never sell personal data.", Embedding: []float32{0, 0, 1}},
	})
	return s
}

func TestRetrievalEngine_Retrieve(t *testing.T) {
	p := &fakeProvider{enabled: true, embedding: []float32{1, 0, 0}}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), zaptest.NewLogger(t), nil)

	result := e.Retrieve(context.Background(), model.Query{Text: "what is marrfa"}, 0)
	require.Len(t, result.Chunks, 2, "privacy chunk is below the score floor")
	assert.Equal(t, "about", result.Chunks[0].Chunk.ID)
	assert.Equal(t, "lead", result.Chunks[1].Chunk.ID)
	assert.False(t, result.ProviderUnavailable)

	result = e.Retrieve(context.Background(), model.Query{Text: "what is marrfa"}, 1)
	assert.Len(t, result.Chunks, 1)
}

func TestRetrievalEngine_EmbedFailure(t *testing.T) {
	p := &fakeProvider{enabled: true, embedErr: &ProviderError{Op: "embed", Kind: ProviderTimeout, Err: context.DeadlineExceeded}}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	result := e.Retrieve(context.Background(), model.Query{Text: "who is the ceo"}, 0)
	assert.True(t, result.IsEmpty())
	assert.True(t, result.ProviderUnavailable)
}

func TestRetrievalEngine_EmptyStoreSkipsEmbedding(t *testing.T) {
	p := &fakeProvider{enabled: true, embedding: []float32{1}}
	e := NewRetrievalEngine(NewKnowledgeStore(nil, "test", nil), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	result := e.Retrieve(context.Background(), model.Query{Text: "who is the ceo"}, 0)
	assert.True(t, result.IsEmpty())
	assert.False(t, result.ProviderUnavailable)
	_, embeds, _ := p.calls()
	assert.Zero(t, embeds)
}

func TestRetrievalEngine_DisabledProvider(t *testing.T) {
	p := &fakeProvider{enabled: false, embedding: []float32{1, 0, 0}}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	result := e.Retrieve(context.Background(), model.Query{Text: "who is the ceo"}, 0)
	assert.True(t, result.ProviderUnavailable)
	_, embeds, _ := p.calls()
	assert.Zero(t, embeds)
}

func TestBuildContext(t *testing.T) {
	chunks := []model.ScoredChunk{
		{Chunk: model.KnowledgeChunk{Title: "About", SourceURL: "https://m.com/a", Content: "first block"}},
		{Chunk: model.KnowledgeChunk{Title: "Team", Content: "second block"}},
		{Chunk: model.KnowledgeChunk{Title: "Policy", Content: strings.Repeat("x", 500)}},
	}

	full := BuildContext(chunks[:2], 1000)
	assert.Equal(t, "[1] About (https://m.com/a)\nfirst block\n\n[2] Team\nsecond block", full)

	dropped := BuildContext(chunks, 100)
	assert.Equal(t, full, dropped, "lower-ranked blocks are dropped first")
	assert.LessOrEqual(t, utf8.RuneCountInString(dropped), 100)

	truncated := BuildContext(chunks[2:], 40)
	assert.Equal(t, 40, utf8.RuneCountInString(truncated), "top block is truncated, not dropped")
	assert.True(t, strings.HasPrefix(truncated, "[1] Policy\n"))

	assert.Empty(t, BuildContext(nil, 100))
}

func TestRetrievalEngine_AnswerGrounded(t *testing.T) {
	p := &fakeProvider{enabled: true, embedding: []float32{1, 0, 0}, completion: "  Marrfa is a Dubai real estate platform.  "}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	q := model.Query{
		Text: "what is marrfa",
		History: []model.ChatTurn{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
		},
		FileText: "brochure text",
	}
	result := e.Retrieve(context.Background(), q, 0)
	reply, grounded := e.Answer(context.Background(), q, result, nil)

	assert.True(t, grounded)
	assert.Equal(t, "Marrfa is a Dubai real estate platform.", reply)

	require.Len(t, p.lastMessages, 4, "system, two history turns, user")
	assert.Equal(t, "system", p.lastMessages[0].Role)
	assert.Contains(t, p.lastMessages[0].Content, "[1] About Marrfa (https://www.marrfa.com/about)")
	assert.Equal(t, "two", p.lastMessages[1].Content)
	assert.Equal(t, "assistant", p.lastMessages[1].Role)
	assert.Contains(t, p.lastMessages[3].Content, "Attached document:\nbrochure text")
}

func TestRetrievalEngine_AnswerStreams(t *testing.T) {
	p := &fakeProvider{enabled: true, embedding: []float32{1, 0, 0}, stream: []string{"Marrfa ", "is ", "great."}}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	q := model.Query{Text: "what is marrfa"}
	var deltas []string
	reply, grounded := e.Answer(context.Background(), q, e.Retrieve(context.Background(), q, 0), func(d string) error {
		deltas = append(deltas, d)
		return nil
	})

	assert.True(t, grounded)
	assert.Equal(t, "Marrfa is great.", reply)
	assert.Equal(t, []string{"Marrfa ", "is ", "great."}, deltas)
}

func TestRetrievalEngine_ExtractiveFallback(t *testing.T) {
	p := &fakeProvider{enabled: true, embedding: []float32{1, 0, 0}, completeFn: func(context.Context, []ChatMessage) (string, error) {
		return "", &ProviderError{Op: "chat", Kind: ProviderRateLimited, StatusCode: 429, Err: errors.New("slow down")}
	}}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	q := model.Query{Text: "Who is the CEO?"}
	reply, grounded := e.Answer(context.Background(), q, e.Retrieve(context.Background(), q, 0), nil)
	assert.True(t, grounded)
	assert.Equal(t, "Jamil Ahmed is the CEO and founder of Marrfa.", reply, "leadership questions prefer the CEO chunk")

	q = model.Query{Text: "what does marrfa do"}
	reply, _ = e.Answer(context.Background(), q, e.Retrieve(context.Background(), q, 0), nil)
	assert.Equal(t, "Marrfa is a Dubai-based real estate platform.", reply)
}

func TestRetrievalEngine_AnswerWithoutContext(t *testing.T) {
	p := &fakeProvider{enabled: true, completion: "made up"}
	e := NewRetrievalEngine(companyStore(t), p, testKnowledgeConfig(), testRouterConfig(), nil, nil)

	reply, grounded := e.Answer(context.Background(), model.Query{Text: "x"}, model.RetrievalResult{}, nil)
	assert.False(t, grounded)
	assert.Equal(t, NoInformationReply, reply)
	complete, _, _ := p.calls()
	assert.Zero(t, complete)
}

func TestExtractiveAnswer(t *testing.T) {
	chunks := []model.ScoredChunk{
		{Chunk: model.KnowledgeChunk{Title: "About", Content: "About text"}},
		{Chunk: model.KnowledgeChunk{Title: "Leadership Team", Content: "Our leaders"}},
	}
	assert.Equal(t, "Our leaders", ExtractiveAnswer("who is the owner", chunks))
	assert.Equal(t, "About text", ExtractiveAnswer("tell me more", chunks))
	assert.Empty(t, ExtractiveAnswer("who is the owner", nil))
}

func TestSources(t *testing.T) {
	got := Sources([]model.ScoredChunk{{Chunk: model.KnowledgeChunk{ID: "a", Title: "A", SourceURL: "u"}, Score: 0.9}})
	assert.Equal(t, []model.Source{{ID: "a", Title: "A", SourceURL: "u", Score: 0.9}}, got)
}
