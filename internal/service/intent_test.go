package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"marrfa-assistant/internal/model"
)

// fakeProvider is a scripted Provider that records every call
type fakeProvider struct {
	mu sync.Mutex

	enabled    bool
	completion string
	completeFn func(ctx context.Context, messages []ChatMessage) (string, error)
	embedding  []float32
	embedErr   error
	stream     []string
	streamErr  error

	completeCalls int
	embedCalls    int
	streamCalls   int
	lastMessages  []ChatMessage
}

func (f *fakeProvider) IsEnabled() bool { return f.enabled }

func (f *fakeProvider) Complete(ctx context.Context, messages []ChatMessage, _ CompletionOptions) (string, error) {
	f.mu.Lock()
	f.completeCalls++
	f.lastMessages = messages
	fn := f.completeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, messages)
	}
	return f.completion, nil
}

func (f *fakeProvider) CompleteStream(ctx context.Context, messages []ChatMessage, _ CompletionOptions, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	f.streamCalls++
	f.lastMessages = messages
	f.mu.Unlock()
	if f.streamErr != nil {
		return "", f.streamErr
	}
	full := ""
	for _, d := range f.stream {
		if err := onDelta(d); err != nil {
			return full, err
		}
		full += d
	}
	return full, nil
}

func (f *fakeProvider) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func (f *fakeProvider) calls() (complete, embed, stream int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls, f.embedCalls, f.streamCalls
}

func newTestClassifier(t *testing.T, p Completer) *IntentClassifier {
	return NewIntentClassifier(p, nil, time.Second, zaptest.NewLogger(t), nil)
}

func TestIntentClassifier_ModelLabel(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       model.Intent
	}{
		{"json", `{"intent": "COMPANY"}`, model.IntentCompany},
		{"json in markdown", "```json\n{\"intent\": \"property\"}\n```", model.IntentProperty},
		{"bare label", "OUT_OF_CONTEXT", model.IntentOutOfContext},
		{"label in prose", "The answer is PROPERTY.", model.IntentProperty},
		{"spaced label", "out of context", model.IntentOutOfContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{enabled: true, completion: tt.completion}
			got := newTestClassifier(t, p).Classify(context.Background(), model.Query{Text: "Tell me something about Marrfa"})
			assert.Equal(t, tt.want, got.Intent)
			assert.Equal(t, model.MethodLLM, got.Method)
		})
	}
}

func TestIntentClassifier_FallsBackToRules(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
	}{
		{"provider error", &fakeProvider{enabled: true, completeFn: func(context.Context, []ChatMessage) (string, error) {
			return "", &ProviderError{Op: "chat", Kind: ProviderUnavailable, Err: errors.New("boom")}
		}}},
		{"unparseable label", &fakeProvider{enabled: true, completion: "I think it's about houses"}},
		{"two labels", &fakeProvider{enabled: true, completion: "PROPERTY or COMPANY"}},
		{"invalid json label", &fakeProvider{enabled: true, completion: `{"intent": "WEATHER"}`}},
		{"disabled provider", &fakeProvider{enabled: false, completion: `{"intent": "COMPANY"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestClassifier(t, tt.p).Classify(context.Background(), model.Query{Text: "2 bedroom apartment in JVC"})
			assert.Equal(t, model.IntentProperty, got.Intent)
			assert.Equal(t, model.MethodRuleBased, got.Method)
		})
	}
}

func TestIntentClassifier_DisabledProviderIsNotCalled(t *testing.T) {
	p := &fakeProvider{enabled: false}
	newTestClassifier(t, p).Classify(context.Background(), model.Query{Text: "who is the ceo"})
	complete, _, _ := p.calls()
	assert.Zero(t, complete)
}

func TestIntentClassifier_Timeout(t *testing.T) {
	p := &fakeProvider{enabled: true, completeFn: func(ctx context.Context, _ []ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := NewIntentClassifier(p, nil, 20*time.Millisecond, zaptest.NewLogger(t), nil)

	start := time.Now()
	got := c.Classify(context.Background(), model.Query{Text: "Who is the CEO of Marrfa?"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.IntentCompany, got.Intent)
	assert.Equal(t, model.MethodRuleBased, got.Method)
}

func TestIntentClassifier_HardRules(t *testing.T) {
	p := &fakeProvider{enabled: true, completion: `{"intent": "PROPERTY"}`}
	c := newTestClassifier(t, p)

	tests := []struct {
		query  string
		intent model.Intent
		method string
	}{
		{"", model.IntentOutOfContext, model.MethodEmpty},
		{"   ", model.IntentOutOfContext, model.MethodEmpty},
		{"Hi", model.IntentOutOfContext, model.MethodGreeting},
		{"Good morning!", model.IntentOutOfContext, model.MethodGreeting},
		{"hello there, how are you", model.IntentOutOfContext, model.MethodGreeting},
		{"Assalamu alaikum", model.IntentOutOfContext, model.MethodGreeting},
		{"What is your privacy policy?", model.IntentCompany, model.MethodLegalRule},
		{"Show me the T&C", model.IntentCompany, model.MethodLegalRule},
		{"terms of use", model.IntentCompany, model.MethodLegalRule},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Classify(context.Background(), model.Query{Text: tt.query})
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.method, got.Method)
		})
	}

	complete, _, _ := p.calls()
	assert.Zero(t, complete, "hard rules never call the model")
}

func TestIntentClassifier_GreetingWithRequestIsNotGreeting(t *testing.T) {
	c := newTestClassifier(t, nil)

	got := c.Classify(context.Background(), model.Query{Text: "hi, show me villas in dubai hills"})
	assert.Equal(t, model.IntentProperty, got.Intent)
	assert.Equal(t, model.MethodRuleBased, got.Method)

	got = c.Classify(context.Background(), model.Query{Text: "hello who is the ceo of marrfa"})
	assert.Equal(t, model.IntentCompany, got.Intent)
}

func TestIntentRules(t *testing.T) {
	rules := DefaultIntentRules(nil)

	tests := []struct {
		query string
		want  model.Intent
		rule  string
	}{
		{"2 bedroom apartment in Dubai Marina under 2M AED", model.IntentProperty, "property_terms"},
		{"anything in jvc?", model.IntentProperty, "property_terms"},
		{"Business Bay options", model.IntentProperty, "property_terms"},
		{"something around 2m", model.IntentProperty, "property_terms"},
		{"off-plan projects by emaar", model.IntentProperty, "property_terms"},
		{"Who is the CEO of Marrfa?", model.IntentCompany, "company_terms"},
		{"How can I contact your team", model.IntentCompany, "company_terms"},
		{"What's the weather today?", model.IntentOutOfContext, "default"},
		{"Write me a poem", model.IntentOutOfContext, "default"},
		{"seasonal recipes", model.IntentOutOfContext, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, rule := EvaluateRules(rules, tt.query)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, rule)
		})
	}

	got, rule := EvaluateRules(nil, "anything")
	assert.Equal(t, model.IntentOutOfContext, got)
	assert.Equal(t, "default", rule)
}

func TestIntentClassifier_Totality(t *testing.T) {
	inputs := []string{
		"", " ", "?", "🏠", "1234567890", "null", `{"intent": "x"}`,
		"ñandú", "DROP TABLE users;", "a b c d e f g h i j k l m n o p",
		"PROPERTY", "company", "out_of_context", "hi villa", "terms", "\n\t",
	}
	completions := []string{"", "PROPERTY", "garbage", `{"intent": null}`, "COMPANY COMPANY"}

	for _, completion := range completions {
		c := newTestClassifier(t, &fakeProvider{enabled: true, completion: completion})
		for _, in := range inputs {
			got := c.Classify(context.Background(), model.Query{Text: in})
			assert.True(t, got.Intent.IsValid(), "input %q completion %q gave %q", in, completion, got.Intent)
			assert.NotEmpty(t, got.Method)
		}
	}
}

func TestParseIntentOutput(t *testing.T) {
	got, ok := parseIntentOutput(`{'intent': 'company',}`)
	assert.True(t, ok)
	assert.Equal(t, model.IntentCompany, got)

	_, ok = parseIntentOutput("")
	assert.False(t, ok)
}
