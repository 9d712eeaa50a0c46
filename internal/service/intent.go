package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/utils"
)

const intentSystemPrompt = `You are an intent router for a chatbot trained on Marrfa Real Estate.
Classify the user query into ONE label:
- PROPERTY: searching for properties, apartments, villas, prices, filters in Dubai.
- COMPANY: questions about Marrfa company info, team, CEO, owner, policies, terms.
- OUT_OF_CONTEXT: unrelated queries.
Respond with JSON only: {"intent": "PROPERTY"} or {"intent": "COMPANY"} or {"intent": "OUT_OF_CONTEXT"}.`

// IntentClassifier decides which path handles a query. It asks the model
// first and falls back to ordered keyword rules, so Classify always returns
// one of the three intents.
type IntentClassifier struct {
	completer Completer
	rules     []IntentRule
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewIntentClassifier creates a classifier. completer may be nil, in which
// case only the rules are used; nil rules use DefaultIntentRules.
func NewIntentClassifier(completer Completer, rules []IntentRule, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *IntentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(rules) == 0 {
		rules = DefaultIntentRules(nil)
	}
	return &IntentClassifier{
		completer: completer,
		rules:     rules,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Classify returns the intent of q and the method that produced it
func (c *IntentClassifier) Classify(ctx context.Context, q model.Query) model.Classification {
	result := c.classify(ctx, q)
	c.metrics.RecordClassification(result.Method)
	c.logger.Debug("query classified",
		zap.String("request_id", q.RequestID),
		zap.String("intent", string(result.Intent)),
		zap.String("method", result.Method),
	)
	return result
}

func (c *IntentClassifier) classify(ctx context.Context, q model.Query) model.Classification {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return model.Classification{Intent: model.IntentOutOfContext, Method: model.MethodEmpty}
	}
	if IsGreeting(text, c.rules) {
		return model.Classification{Intent: model.IntentOutOfContext, Method: model.MethodGreeting}
	}
	if IsLegalQuery(text) {
		return model.Classification{Intent: model.IntentCompany, Method: model.MethodLegalRule}
	}

	if c.providerEnabled() {
		intent, err := c.classifyWithModel(ctx, text)
		if err == nil {
			return model.Classification{Intent: intent, Method: model.MethodLLM}
		}
		c.logger.Warn("model classification failed, using rules",
			zap.String("request_id", q.RequestID),
			zap.Error(err),
		)
	}

	intent, rule := EvaluateRules(c.rules, text)
	c.logger.Debug("rule matched", zap.String("rule", rule))
	return model.Classification{Intent: intent, Method: model.MethodRuleBased}
}

func (c *IntentClassifier) providerEnabled() bool {
	if c.completer == nil {
		return false
	}
	if p, ok := c.completer.(interface{ IsEnabled() bool }); ok {
		return p.IsEnabled()
	}
	return true
}

func (c *IntentClassifier) classifyWithModel(ctx context.Context, text string) (model.Intent, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.completer.Complete(ctx, []ChatMessage{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: text},
	}, CompletionOptions{MaxTokens: 20, JSON: true})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	intent, ok := parseIntentOutput(out)
	if !ok {
		return "", fmt.Errorf("classify: unrecognized label %q", truncate(out, 80))
	}
	return intent, nil
}

// parseIntentOutput reads {"intent": "..."} and falls back to finding exactly
// one label anywhere in the text
func parseIntentOutput(out string) (model.Intent, bool) {
	var payload struct {
		Intent string `json:"intent"`
	}
	if err := utils.ParseAIJSON(out, &payload); err == nil {
		if intent, ok := model.ParseIntent(payload.Intent); ok {
			return intent, true
		}
	}

	labels := make([]string, 0, 3)
	for _, i := range model.Intents() {
		labels = append(labels, string(i))
	}
	if label, ok := utils.ExtractLabel(out, labels); ok {
		return model.Intent(label), true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
