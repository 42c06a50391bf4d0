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
	"github.com/openai/openai-go"
)

// Endpoints and models used when none is configured.
const (
	OpenAIBaseURL          = "https://api.openai.com/v1"
	VolcengineBaseURL      = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultOpenAIModel     = "gpt-4o"
	DefaultVolcengineModel = "doubao-1-5-ui-tars"

	judgeMaxTokens = 1024
	maxErrorBody   = 512
)

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string                                   `json:"model"`
	Messages       []openai.ChatCompletionMessageParamUnion `json:"messages"`
	MaxTokens      int                                      `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat                          `json:"response_format,omitempty"`
}

// chatClient posts non-streaming requests to an OpenAI-compatible
// /chat/completions endpoint.
type chatClient struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func (c *chatClient) complete(ctx context.Context, req chatRequest) (string, error) {
	req.Model = c.model
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: c.name, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(data, &completion); err != nil {
		return "", fmt.Errorf("%w: %s returned malformed completion: %v", types.ErrProvider, c.name, err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

// ChatJudge judges a screenshot through an OpenAI-compatible vision model.
// It backs the openai, volcengine and custom providers.
type ChatJudge struct {
	client   chatClient
	jsonMode bool
}

// Name returns the provider name.
func (j *ChatJudge) Name() string { return j.client.name }

// Agentic returns false.
func (j *ChatJudge) Agentic() bool { return false }

// Verify sends the screenshot and prompt and parses the JSON verdict.
func (j *ChatJudge) Verify(ctx context.Context, req Request) (types.Verification, error) {
	if req.ScreenshotPath == "" {
		return missingScreenshot(), nil
	}
	img, err := loadImage(req.ScreenshotPath)
	if err != nil {
		return types.Verification{}, err
	}

	content := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(JudgePrompt(req.Instruction, req.Expected)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img.dataURL()}),
	}
	chat := chatRequest{
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(content)},
		MaxTokens: judgeMaxTokens,
	}
	if j.jsonMode {
		chat.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	reply, err := j.client.complete(ctx, chat)
	if err != nil {
		return types.Verification{}, err
	}
	if reply == "" {
		reply = "{}"
	}
	return ParseJudgment(reply), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
