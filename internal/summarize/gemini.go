package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"

	"github.com/deusflow/dailyletter/internal/outcome"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini summarizes through Google's Generative Language API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *Gemini) Summarize(ctx context.Context, title, content string, maxChars int) outcome.Result {
	if content == "" {
		return outcome.Fail(outcome.Skipped, errors.New("no content"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(Temperature)
	model.SetMaxOutputTokens(MaxTokens)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt(maxChars))}}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt(title, content, maxChars)))
	if err != nil {
		return outcome.Fail(classifyGeminiError(err), fmt.Errorf("failed to generate content: %w", err))
	}
	return cleanedResult(responseText(resp), maxChars)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func classifyGeminiError(err error) outcome.Status {
	if outcome.Classify(err) == outcome.Timeout {
		return outcome.Timeout
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return outcome.BadStatus
	}
	return outcome.Transport
}
