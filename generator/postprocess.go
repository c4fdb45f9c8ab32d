package generator

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSONObject is returned when no candidate in the parse chain holds a JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// cleanDraft trims model text; an empty result counts as an empty response.
func cleanDraft(raw string) (string, error) {
	out := strings.TrimSpace(raw)
	if out == "" {
		return "", newLLMError(ErrorKindEmptyResponse, nil, "model returned empty text")
	}
	return out, nil
}

// ExtractJSONObject runs the robustness chain over model output: the text as-is,
// the text with Markdown code fences stripped, then the span from the first '{'
// to the last '}' (inside the fence first, then over the whole text). The first
// candidate that is a valid JSON object wins.
func ExtractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	fenced := stripCodeFence(text)
	for _, candidate := range []string{text, fenced, braceSpan(fenced), braceSpan(text)} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || !gjson.Valid(candidate) {
			continue
		}
		if gjson.Parse(candidate).IsObject() {
			return candidate, nil
		}
	}
	return "", ErrNoJSONObject
}

// stripCodeFence 去掉 ```json ... ``` 包裹。
func stripCodeFence(s string) string {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	return ""
}

func braceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// CompactText collapses whitespace and cuts to at most limit runes.
func CompactText(s string, limit int) string {
	joined := strings.Join(strings.Fields(s), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}

// Preview shortens text for log lines and dialog entries.
func Preview(s string, limit int) string {
	out := CompactText(s, limit)
	if len([]rune(strings.Join(strings.Fields(s), " "))) > limit {
		out += "…"
	}
	return out
}
