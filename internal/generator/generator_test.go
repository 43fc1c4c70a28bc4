package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/crowtreasure/internal/metrics"
	"github.com/kalambet/crowtreasure/internal/proxy"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

type mockRelay struct {
	body []byte
	err  error
	got  proxy.ChatRequest
}

func (m *mockRelay) Complete(_ context.Context, req proxy.ChatRequest) ([]byte, error) {
	m.got = req
	return m.body, m.err
}

// envelope wraps content in a completion envelope the way the upstream does.
func envelope(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return b
}

func TestGenerate_TideScenario(t *testing.T) {
	relay := &mockRelay{body: envelope(t, "```json\n"+
		`{"name":"潮汐之钥","type":"GEM","description":"潮水退去之处，留下一枚被月光打磨的心事。","crowCommentary":"潮来潮往，从不问岸的意愿。","colorTheme":"#3b82f6"}`+
		"\n```")}
	g := New(relay, "", DefaultTemperature)

	d := g.Generate(context.Background(), "I feel the tide pulling", "焦虑")

	assert.Equal(t, treasure.Gem, d.Type)
	assert.Equal(t, "潮汐之钥", d.Name)
	assert.Equal(t, "I feel the tide pulling", d.Content)
	assert.Equal(t, "焦虑", d.Emotion)
	assert.Equal(t, "#3b82f6", d.Color)

	assert.Equal(t, DefaultModel, relay.got.Model)
	assert.False(t, relay.got.Stream)
	assert.Equal(t, 0.8, relay.got.Temperature)
	require.Len(t, relay.got.Messages, 2)
	assert.Equal(t, "system", relay.got.Messages[0].Role)
	assert.Equal(t, "user", relay.got.Messages[1].Role)
	assert.Contains(t, relay.got.Messages[1].Content, `User Thought: "I feel the tide pulling"`)
	assert.Contains(t, relay.got.Messages[1].Content, `User Emotion: "焦虑"`)
}

func TestGenerate_FallbackOnFailures(t *testing.T) {
	tests := []struct {
		name  string
		relay *mockRelay
	}{
		{"relay error", &mockRelay{err: errors.New("connection refused")}},
		{"status error", &mockRelay{err: &proxy.StatusError{Status: 500, Body: `{"error":"Missing DEEPSEEK_API_KEY"}`}}},
		{"empty body", &mockRelay{body: []byte{}}},
		{"non json body", &mockRelay{body: []byte("<html>bad gateway</html>")}},
		{"missing choices", &mockRelay{body: []byte(`{"ok":true,"message":"relay alive"}`)}},
		{"empty content", &mockRelay{body: []byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`)}},
		{"prose content", &mockRelay{body: []byte(`{"choices":[{"message":{"role":"assistant","content":"I cannot help with that."}}]}`)}},
		{"array content", &mockRelay{body: []byte(`{"choices":[{"message":{"role":"assistant","content":"[1,2,3]"}}]}`)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := New(tc.relay, "", 0)
			d := g.Generate(context.Background(), "a thought", "")
			assert.Equal(t, Fallback("a thought", ""), d)
		})
	}
}

func TestGenerate_CoercesUnknownType(t *testing.T) {
	for _, raw := range []string{"DRAGON", "gem", ""} {
		t.Run(raw, func(t *testing.T) {
			relay := &mockRelay{body: envelope(t, `{"name":"静默之羽","type":"`+raw+`","description":"d","crowCommentary":"c","colorTheme":"#000000"}`)}
			d := New(relay, "", 0).Generate(context.Background(), "x", "")
			assert.Equal(t, treasure.Artifact, d.Type)
			assert.Equal(t, "静默之羽", d.Name)
		})
	}
}

func TestGenerate_TypeAlwaysInClosedSet(t *testing.T) {
	bodies := [][]byte{
		envelope(t, `{"type":"COIN"}`),
		envelope(t, `{"type":"SPOON"}`),
		envelope(t, `{"type":42}`),
		envelope(t, `not json`),
		nil,
	}
	for _, b := range bodies {
		d := New(&mockRelay{body: b}, "", 0).Generate(context.Background(), "x", "")
		assert.True(t, d.Type.Valid(), "type %q outside closed set", d.Type)
	}
}

func TestGenerate_PartialFieldsTakeDefaults(t *testing.T) {
	relay := &mockRelay{body: envelope(t, `Here you go: {"type":"KEY","name":"微光之钥"} hope it helps`)}
	d := New(relay, "", 0).Generate(context.Background(), "x", "平静")

	assert.Equal(t, treasure.Key, d.Type)
	assert.Equal(t, "微光之钥", d.Name)
	assert.Equal(t, FallbackDescription, d.Description)
	assert.Equal(t, FallbackCommentary, d.CrowCommentary)
	assert.Equal(t, treasure.DefaultColor, d.Color)
}

func TestGenerate_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	ok := New(&mockRelay{body: envelope(t, `{"type":"GEM"}`)}, "", 0).WithMetrics(rec)
	ok.Generate(context.Background(), "x", "")
	bad := New(&mockRelay{err: errors.New("down")}, "", 0).WithMetrics(rec)
	bad.Generate(context.Background(), "x", "")

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "crowtreasure_generations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, got[metrics.OutcomeModel])
	assert.Equal(t, 1.0, got[metrics.OutcomeFallback])
}

func TestAttempt_ReportsCoercion(t *testing.T) {
	relay := &mockRelay{body: envelope(t, `{"type":"SPOON"}`)}
	_, tr, err := New(relay, "", 0).Attempt(context.Background(), "x", "")
	require.NoError(t, err)
	assert.True(t, tr.Coerced)
	assert.Equal(t, "SPOON", tr.Raw)
}

func TestAttempt_EmptyContent(t *testing.T) {
	relay := &mockRelay{body: []byte(`{"choices":[]}`)}
	_, _, err := New(relay, "", 0).Attempt(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestNew_CustomModel(t *testing.T) {
	relay := &mockRelay{body: envelope(t, `{"type":"GEM"}`)}
	New(relay, "other-model", 0.3).Generate(context.Background(), "x", "")
	assert.Equal(t, "other-model", relay.got.Model)
	assert.Equal(t, 0.3, relay.got.Temperature)
}

func TestNew_ZeroTemperatureIsSent(t *testing.T) {
	relay := &mockRelay{body: envelope(t, `{"type":"GEM"}`)}
	New(relay, "", 0).Generate(context.Background(), "x", "")
	assert.Equal(t, 0.0, relay.got.Temperature)

	var sent map[string]any
	b, err := json.Marshal(relay.got)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &sent))
	assert.Equal(t, 0.0, sent["temperature"], "zero temperature must be serialized, not omitted")
}

func TestBuildPrompt_ThoughtVerbatim(t *testing.T) {
	msgs := BuildPrompt("she said \"go\"\nthen left", "")
	assert.Equal(t, "User Thought: \"she said \"go\"\nthen left\"", msgs[1].Content)
	assert.NotContains(t, msgs[1].Content, `\"`)
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt("hello", "")
	require.Len(t, msgs, 2)
	assert.Equal(t, `User Thought: "hello"`, msgs[1].Content)
	assert.NotContains(t, msgs[1].Content, "User Emotion")

	sys := msgs[0].Content
	assert.Contains(t, sys, "Simplified Chinese")
	for _, ty := range treasure.Types() {
		assert.Contains(t, sys, string(ty))
	}
	assert.True(t, strings.Contains(sys, `"colorTheme"`), "system prompt should carry the output schema")
}

func TestBuildPrompt_WithEmotion(t *testing.T) {
	msgs := BuildPrompt("rain", "悲伤")
	assert.Equal(t, "User Thought: \"rain\"\nUser Emotion: \"悲伤\"", msgs[1].Content)
}
