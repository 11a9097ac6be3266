package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/dailyletter/internal/outcome"
)

const (
	// MoonshotBaseURL is the OpenAI-compatible endpoint used by default.
	MoonshotBaseURL = "https://api.moonshot.cn/v1"
	OpenAIBaseURL   = "https://api.openai.com/v1"
)

// StatusError is returned for any chat-completion answer other than 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d", e.Code)
}

// strictStatus rejects every non-200 response before the client decodes it.
type strictStatus struct {
	base http.RoundTripper
}

func (t strictStatus) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}

// OpenAI talks to any OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = MoonshotBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: strictStatus{base: http.DefaultTransport},
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Summarize(ctx context.Context, title, content string, maxChars int) outcome.Result {
	if content == "" {
		return outcome.Fail(outcome.Skipped, errors.New("no content"))
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(maxChars)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(title, content, maxChars)},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return outcome.Fail(classifyOpenAIError(err), err)
	}

	if len(resp.Choices) == 0 {
		return outcome.Fail(outcome.BadResponse, errors.New("no choices in response"))
	}
	return cleanedResult(resp.Choices[0].Message.Content, maxChars)
}

func classifyOpenAIError(err error) outcome.Status {
	if outcome.Classify(err) == outcome.Timeout {
		return outcome.Timeout
	}

	var (
		statusErr *StatusError
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
	)
	if errors.As(err, &statusErr) || errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return outcome.BadStatus
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return outcome.BadResponse
	}
	return outcome.Transport
}
