package vision_agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Labeler 在生成模型未给出可解析的食物清单时，调用 OpenAI 兼容的视觉模型补全名称列表。
type Labeler struct {
	client  *openai.Client
	modelID string
}

// NewLabeler 返回 nil 表示未配置兜底模型。
func NewLabeler(apiKey, baseURL, modelID string) *Labeler {
	if strings.TrimSpace(modelID) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Labeler{client: openai.NewClientWithConfig(cfg), modelID: modelID}
}

// ListFoods 返回图片中食物名称（toLang 语言）。
func (l *Labeler) ListFoods(ctx context.Context, imageDataURL string, toLang string) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.modelID,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: labelerSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: labelerUserPrompt(toLang),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageDataURL,
						},
					},
				},
			},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	}

	resp, err := callWithRetry(ctx, "LabelerAgent", "list foods", isRetryableOpenAIError, func() (openai.ChatCompletionResponse, error) {
		return l.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("labeler: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("labeler: no content returned")
	}

	names, ok := ExtractJSONArray(resp.Choices[0].Message.Content)
	if !ok {
		return nil, errors.New("labeler: reply is not a JSON array")
	}
	return names, nil
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500
	}
	return false
}
