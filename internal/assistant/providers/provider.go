package providers

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Options tune a single generation request. Zero values fall back to the
// provider defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

func (o Options) temperature() float64 {
	if o.Temperature <= 0 {
		return defaultTemperature
	}
	return o.Temperature
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return o.MaxTokens
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	bareArray   = regexp.MustCompile(`(?s)\[.*\]`)
	bareObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the JSON payload out of model output. Models may wrap it
// in a markdown code block or surround it with prose.
func ExtractJSON(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
		if inner := strings.TrimSpace(m[1]); json.Valid([]byte(inner)) {
			return inner
		}
	}
	if m := bareArray.FindString(text); m != "" && json.Valid([]byte(m)) {
		return m
	}
	if m := bareObject.FindString(text); m != "" && json.Valid([]byte(m)) {
		return m
	}
	return strings.TrimSpace(text)
}
