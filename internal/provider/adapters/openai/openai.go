// Package openai implements the completion provider against an
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storyforge/storyforge/internal/provider/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Adapter struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(name, baseURL, apiKey string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if name == "" {
		name = "openai"
	}
	return &Adapter{name: name, baseURL: baseURL, apiKey: apiKey, client: client}
}

func (a *Adapter) Name() string { return a.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (a *Adapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResponse, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.ModelID,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindInvalidRequest, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindInvalidRequest, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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

	var parsed chatResponse
	if unmarshalErr := json.Unmarshal(payload, &parsed); unmarshalErr != nil && resp.StatusCode == http.StatusOK {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "decode response", unmarshalErr)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.CompletionResponse{}, classifyHTTPError(resp.StatusCode, parsed)
	}
	if len(parsed.Choices) == 0 {
		return domain.CompletionResponse{}, domain.NewError(domain.ErrKindTransient, "empty choices", nil)
	}

	return domain.CompletionResponse{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func classifyHTTPError(status int, parsed chatResponse) *domain.Error {
	message := fmt.Sprintf("status %d", status)
	code := ""
	if parsed.Error != nil {
		message = parsed.Error.Message
		code = parsed.Error.Code
	}

	switch {
	case status == http.StatusTooManyRequests && strings.Contains(code, "insufficient_quota"):
		return domain.NewError(domain.ErrKindQuotaExhausted, message, nil)
	case status == http.StatusTooManyRequests:
		return domain.NewError(domain.ErrKindRateLimited, message, nil)
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusNotFound:
		return domain.NewError(domain.ErrKindInvalidRequest, message, nil)
	default:
		return domain.NewError(domain.ErrKindTransient, message, nil)
	}
}
