// Package summarize turns an article into a one-sentence Chinese summary
// using a hosted language model.
//
// Every backend reports failures through outcome.Result instead of
// returning errors: a missing summary is an expected, recoverable state for
// the digest, which falls back to the feed's own snippet.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/dailyletter/internal/normalize"
	"github.com/deusflow/dailyletter/internal/outcome"
)

const (
	Temperature    = 0.3
	MaxTokens      = 50
	DefaultTimeout = 30 * time.Second

	// promptContentRunes bounds how much article text goes into the prompt.
	promptContentRunes = 1000
)

// Summarizer produces a summary of at most maxChars characters.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string, maxChars int) outcome.Result
}

// labels the model sometimes echoes back in front of the summary.
var labels = []string{"摘要：", "总结：", "摘要:", "总结:", "Summary:", "summary:"}

func systemPrompt(maxChars int) string {
	return fmt.Sprintf("你是一名科技新闻编辑，擅长用一句话总结科技新闻。严格控制字数在%d字以内。", maxChars)
}

func userPrompt(title, content string, maxChars int) string {
	return fmt.Sprintf("用一句话（不超过%d个字）总结这篇科技新闻：\n\n标题：%s\n内容：%s\n\n要求：只说核心事实，不要本文文章等词。摘要：",
		maxChars, title, normalize.Prefix(content, promptContentRunes))
}

// Clean strips echoed labels, normalizes whitespace and enforces maxChars.
func Clean(raw string, maxChars int) string {
	s := normalize.Text(raw)
	for stripped := true; stripped; {
		stripped = false
		for _, l := range labels {
			if strings.HasPrefix(s, l) {
				s = strings.TrimSpace(strings.TrimPrefix(s, l))
				stripped = true
			}
		}
	}
	return normalize.Truncate(normalize.Text(s), maxChars, normalize.Ellipsis)
}

func cleanedResult(raw string, maxChars int) outcome.Result {
	text := Clean(raw, maxChars)
	if text == "" {
		return outcome.Fail(outcome.BadResponse, fmt.Errorf("empty summary"))
	}
	return outcome.Success(text)
}
