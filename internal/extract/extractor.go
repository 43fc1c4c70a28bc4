// Package extract pulls a JSON value out of free-form model output.
//
// Models frequently wrap the object they were asked for in markdown fences or
// surround it with prose. Extraction runs a short pipeline of strategies and
// returns the first candidate that parses.
package extract

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrNoStructuredData is returned when the text contains no brace-delimited span.
var ErrNoStructuredData = errors.New("no structured data found")

type strategy struct {
	name      string
	candidate func(text string) (string, error)
}

var pipeline = []strategy{
	{name: "direct", candidate: direct},
	{name: "unfenced", candidate: unfenced},
	{name: "braces", candidate: braces},
}

// Extract returns the parsed value of the first strategy that succeeds.
func Extract(text string) (any, error) {
	raw, err := Raw(text)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode extracts the structured value from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Raw(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Raw returns the bytes of the first candidate that is valid JSON. When every
// strategy fails, the error of the last one is returned.
func Raw(text string) (json.RawMessage, error) {
	var lastErr error
	for _, s := range pipeline {
		c, err := s.candidate(text)
		if err != nil {
			lastErr = err
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			continue
		}
		return json.RawMessage(c), nil
	}
	return nil, lastErr
}

func direct(text string) (string, error) {
	return strings.TrimSpace(text), nil
}

// unfenced strips a leading ``` or ```json marker and a trailing ``` marker.
func unfenced(text string) (string, error) {
	return stripFences(text), nil
}

// braces takes the greedy span from the first '{' to the last '}'.
func braces(text string) (string, error) {
	s := stripFences(text)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoStructuredData
	}
	return s[start : end+1], nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimLeft(s, " \t\r\n")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
