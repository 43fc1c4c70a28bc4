package proxy

import (
	"fmt"
	"net/http"
)

// Message is one entry of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completion request sent to the relay.
// Stream is always serialized so the relay sees an explicit streaming-disabled flag.
type ChatRequest struct {
	Model       string    `json:"model"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

// ChatResponse is the subset of the completion envelope the generator reads.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Choice is a single completion alternative.
type Choice struct {
	Message Message `json:"message"`
}

// Content returns the first choice's message content, or "" when there is none.
func (r ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StatusError is returned when the relay answers with a non-success status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay HTTP %d: %s", e.Status, e.Body)
}

func isRateLimit(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Status == http.StatusTooManyRequests
}
