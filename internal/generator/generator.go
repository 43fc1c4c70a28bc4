// Package generator turns a user's thought into treasure fields by asking a
// language model through the relay. Generation never fails from the caller's
// point of view: any problem along the way yields the fixed fallback draft.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/kalambet/crowtreasure/internal/extract"
	"github.com/kalambet/crowtreasure/internal/metrics"
	"github.com/kalambet/crowtreasure/internal/proxy"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

const (
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.8
)

// Fallback field values.
const (
	FallbackName        = "迷雾中的灰烬"
	FallbackDescription = "迷雾遮蔽了宝藏的真容，但你的思绪已被乌鸦以此羽毛铭记。"
	FallbackCommentary  = "迷雾太重，看不清来路，也看不清归途。"
)

// ErrEmptyContent is returned when the relay envelope carries no message content.
var ErrEmptyContent = errors.New("empty content from relay")

// ErrNotObject is returned when the extracted value is not a JSON object.
var ErrNotObject = errors.New("model output is not an object")

// Relay is the boundary to the chat completion relay.
type Relay interface {
	Complete(ctx context.Context, req proxy.ChatRequest) ([]byte, error)
}

// Generator builds treasure drafts from thoughts.
type Generator struct {
	relay       Relay
	model       string
	temperature float64
	metrics     metrics.Recorder
}

// New creates a Generator. An empty model falls back to DefaultModel; the
// temperature is sent as given, zero included.
func New(relay Relay, model string, temperature float64) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		relay:       relay,
		model:       model,
		temperature: temperature,
		metrics:     metrics.Noop(),
	}
}

// WithMetrics makes the generator count its outcomes on m.
func (g *Generator) WithMetrics(m metrics.Recorder) *Generator {
	if m != nil {
		g.metrics = m
	}
	return g
}

// Fallback returns the fixed draft used whenever generation fails.
func Fallback(thought, emotion string) treasure.Draft {
	return treasure.Draft{
		Content:        thought,
		Emotion:        emotion,
		Name:           FallbackName,
		Type:           treasure.Feather,
		Description:    FallbackDescription,
		CrowCommentary: FallbackCommentary,
		Color:          treasure.DefaultColor,
	}
}

// Generate returns a draft for the thought. It always returns a structurally
// valid draft; failures are logged and replaced by Fallback.
func (g *Generator) Generate(ctx context.Context, thought, emotion string) treasure.Draft {
	draft, tr, err := g.Attempt(ctx, thought, emotion)
	if err != nil {
		ev := log.Warn().Err(err)
		var se *proxy.StatusError
		if errors.As(err, &se) {
			ev = ev.Int("status", se.Status).Str("body", se.Body)
		}
		ev.Msg("treasure generation failed, using fallback")
		g.metrics.IncGeneration(metrics.OutcomeFallback)
		return Fallback(thought, emotion)
	}

	if tr.Coerced {
		log.Info().Str("raw_type", tr.Raw).Str("type", string(tr.Type)).Msg("coerced unknown treasure type")
		g.metrics.IncGeneration(metrics.OutcomeCoerced)
	} else {
		g.metrics.IncGeneration(metrics.OutcomeModel)
	}
	return draft
}

// Attempt runs the generation pipeline once without substituting the fallback.
// The returned TypeResult reports whether the model's type tag was coerced.
func (g *Generator) Attempt(ctx context.Context, thought, emotion string) (treasure.Draft, treasure.TypeResult, error) {
	req := proxy.ChatRequest{
		Model:       g.model,
		Stream:      false,
		Temperature: g.temperature,
		Messages:    BuildPrompt(thought, emotion),
	}

	body, err := g.relay.Complete(ctx, req)
	if err != nil {
		return treasure.Draft{}, treasure.TypeResult{}, fmt.Errorf("calling relay: %w", err)
	}

	var env proxy.ChatResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return treasure.Draft{}, treasure.TypeResult{}, fmt.Errorf("decoding relay envelope: %w", err)
	}

	content := env.Content()
	if strings.TrimSpace(content) == "" {
		return treasure.Draft{}, treasure.TypeResult{}, ErrEmptyContent
	}

	v, err := extract.Extract(content)
	if err != nil {
		return treasure.Draft{}, treasure.TypeResult{}, fmt.Errorf("extracting model output: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return treasure.Draft{}, treasure.TypeResult{}, ErrNotObject
	}

	resp := treasure.GenerationResponse{
		Name:           stringField(obj, "name"),
		Type:           stringField(obj, "type"),
		Description:    stringField(obj, "description"),
		CrowCommentary: stringField(obj, "crowCommentary"),
		ColorTheme:     stringField(obj, "colorTheme"),
	}
	tr := treasure.ValidateType(resp.Type)

	return treasure.Draft{
		Content:        thought,
		Emotion:        emotion,
		Name:           orDefault(resp.Name, FallbackName),
		Type:           tr.Type,
		Description:    orDefault(resp.Description, FallbackDescription),
		CrowCommentary: orDefault(resp.CrowCommentary, FallbackCommentary),
		Color:          orDefault(resp.ColorTheme, treasure.DefaultColor),
	}, tr, nil
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
