// Package anthropic implements the completion provider against the
// Anthropic messages endpoint.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/storyforge/storyforge/internal/provider/domain"
)

const defaultBaseURL = "https://api.anthropic.com/v1"

type Adapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (a *Adapter) Name() string { return "anthropic" }

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(messagesRequest{
		Model:       req.ModelID,
		System:      req.SystemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindInvalidRequest, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindInvalidRequest, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "request timed out", err)
		}
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "read response", err)
	}

	var parsed messagesResponse
	if unmarshalErr := json.Unmarshal(payload, &parsed); unmarshalErr != nil && resp.StatusCode == http.StatusOK {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "decode response", unmarshalErr)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.CompletionResponse{}, classify(resp.StatusCode, parsed)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "empty content", nil)
	}

	return domain.CompletionResponse{
		Text:         text.String(),
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}

func classify(status int, parsed messagesResponse) *domain.Error {
	message := http.StatusText(status)
	errType := ""
	if parsed.Error != nil {
		message = parsed.Error.Message
		errType = parsed.Error.Type
	}

	switch {
	case errType == "rate_limit_error" || status == http.StatusTooManyRequests:
		return domain.NewError(domain.ErrKindRateLimited, message, nil)
	case errType == "overloaded_error":
		return domain.NewError(domain.ErrKindTransient, message, nil)
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusNotFound:
		return domain.NewError(domain.ErrKindInvalidRequest, message, nil)
	default:
		return domain.NewError(domain.ErrKindTransient, message, nil)
	}
}
