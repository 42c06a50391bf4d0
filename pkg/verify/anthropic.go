package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/entrhq/guitest/pkg/types"
)

const (
	AnthropicBaseURL      = "https://api.anthropic.com"
	AnthropicVersion      = "2023-06-01"
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
)

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// AnthropicJudge judges a screenshot through the Anthropic Messages API.
type AnthropicJudge struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Name returns "anthropic".
func (j *AnthropicJudge) Name() string { return ProviderAnthropic }

// Agentic returns false.
func (j *AnthropicJudge) Agentic() bool { return false }

// Verify sends the screenshot and prompt and parses the JSON verdict.
func (j *AnthropicJudge) Verify(ctx context.Context, req Request) (types.Verification, error) {
	if req.ScreenshotPath == "" {
		return missingScreenshot(), nil
	}
	img, err := loadImage(req.ScreenshotPath)
	if err != nil {
		return types.Verification{}, err
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     j.model,
		MaxTokens: judgeMaxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "image", Source: &anthropicSource{Type: "base64", MediaType: img.mime, Data: img.data}},
				{Type: "text", Text: JudgePrompt(req.Instruction, req.Expected)},
			},
		}},
	})
	if err != nil {
		return types.Verification{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(j.baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.Verification{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", j.apiKey)
	httpReq.Header.Set("anthropic-version", AnthropicVersion)

	resp, err := j.httpClient.Do(httpReq)
	if err != nil {
		return types.Verification{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Verification{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Verification{}, &APIError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}

	var out anthropicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return types.Verification{}, fmt.Errorf("%w: anthropic returned malformed message: %v", types.ErrProvider, err)
	}
	reply := "{}"
	if len(out.Content) > 0 && out.Content[0].Type == "text" {
		reply = out.Content[0].Text
	}
	return ParseJudgment(reply), nil
}
