package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It approves the first draft and titles it after the opening words of the source.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch prompt.Task {
	case TaskSummarize, TaskRefine:
		return CompactText(prompt.User, 160), nil
	case TaskReview:
		return "The summary is faithful to the source and reads clearly. Approved.", nil
	case TaskApproval:
		return `{"verdict": "approved"}`, nil
	case TaskTitle:
		words := strings.Fields(firstLine(prompt.System, "[Approved summary]"))
		if len(words) > 4 {
			words = words[:4]
		}
		title := strings.Trim(strings.Join(words, " "), ".,;:")
		if title == "" {
			title = "Untitled"
		}
		return fmt.Sprintf(`{"title": %q}`, title), nil
	default:
		return "Hello! The mock model is reachable.", nil
	}
}

// firstLine returns the first non-empty line after marker in s.
func firstLine(s, marker string) string {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return ""
	}
	for _, line := range strings.Split(s[idx+len(marker):], "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
