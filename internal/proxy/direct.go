package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DirectClient talks to an OpenAI-compatible upstream without going through
// the relay. It satisfies the same contract as Client.
type DirectClient struct {
	client openai.Client
}

// NewDirectClient creates a client for the upstream at baseURL.
func NewDirectClient(apiKey, baseURL string, timeout time.Duration) *DirectClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries - 1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &DirectClient{client: openai.NewClient(opts...)}
}

// Complete returns the raw JSON of the completion envelope.
func (d *DirectClient) Complete(ctx context.Context, req ChatRequest) ([]byte, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	completion, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Status: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return nil, err
	}
	return []byte(completion.RawJSON()), nil
}
