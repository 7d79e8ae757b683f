package enrichment

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Answer is the parsed reply of the question-answering stage.
type Answer struct {
	Text       string
	Confidence *float64
}

// ParseAnswer decodes a `{"answer": "...", "confidence": 0.8}` reply.
// It never fails: anything that does not fit becomes the answer with no confidence.
func ParseAnswer(raw string) Answer {
	raw = strings.TrimSpace(raw)
	fallback := Answer{Text: raw}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return fallback
	}
	field, ok := payload["answer"]
	if !ok || string(field) == "null" {
		return fallback
	}
	var text string
	if err := json.Unmarshal(field, &text); err != nil {
		return fallback
	}
	return Answer{Text: text, Confidence: parseConfidence(payload["confidence"])}
}

func parseConfidence(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		value = parsed
	}
	if math.IsNaN(value) || value < 0 || value > 1 {
		return nil
	}
	return &value
}

// stripCodeFence removes a ```json ... ``` wrapper some models add around JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
