package vision_agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient 通过 REST generateContent 接口请求 TEXT+IMAGE 双模态输出。
type GeminiClient struct {
	APIKey  string
	BaseURL string
	Model   string
	http    *resty.Client
}

func NewGeminiClient(apiKey, baseURL, model string, timeout time.Duration) *GeminiClient {
	c := resty.New().SetTimeout(timeout)
	return &GeminiClient{APIKey: apiKey, BaseURL: baseURL, Model: model, http: c}
}

func (c *GeminiClient) endpoint() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	return base + "/v1beta/models/" + url.PathEscape(c.Model) + ":generateContent"
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{InlineData: &geminiBlob{MIMEType: req.MIMEType, Data: req.ImageBase64}},
					{Text: req.Prompt},
				},
			},
		},
		GenerationConfig: geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	}

	resp, err := callWithRetry(ctx, "VisionAgent", "generate content", isServerSideFailure, func() (geminiResponse, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return extractResult(resp)
}

func (c *GeminiClient) post(ctx context.Context, body geminiRequest) (geminiResponse, error) {
	var resp geminiResponse
	var errResp geminiErrorResponse
	rr, err := c.http.R().SetContext(ctx).
		SetHeader("x-goog-api-key", c.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		SetError(&errResp).
		Post(c.endpoint())
	if err != nil {
		return geminiResponse{}, fmt.Errorf("call vision api: %w", err)
	}
	if rr.IsError() {
		msg := strings.TrimSpace(errResp.Error.Message)
		if msg == "" {
			msg = abbreviate(strings.TrimSpace(rr.String()), 500)
		}
		if msg == "" {
			msg = http.StatusText(rr.StatusCode())
		}
		return geminiResponse{}, &UpstreamError{
			StatusCode: rr.StatusCode(),
			Status:     errResp.Error.Status,
			Message:    msg,
		}
	}
	return resp, nil
}

// extractResult 取第一个内联图片，按顺序拼接非思考文本。
func extractResult(resp geminiResponse) (GenerateResult, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return GenerateResult{}, fmt.Errorf("%w: prompt blocked (%s)", ErrNoCandidates, resp.PromptFeedback.BlockReason)
		}
		return GenerateResult{}, ErrNoCandidates
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return GenerateResult{}, ErrNoContent
	}

	var result GenerateResult
	var texts []string
	for _, part := range content.Parts {
		if part.Thought {
			continue
		}
		if part.InlineData != nil && part.InlineData.Data != "" {
			if !result.HasImage() {
				result.ImageMIMEType = part.InlineData.MIMEType
				if result.ImageMIMEType == "" {
					result.ImageMIMEType = defaultImageMIMEType
				}
				result.ImageBase64 = part.InlineData.Data
			}
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	result.Text = strings.Join(texts, "")
	return result, nil
}

func isServerSideFailure(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= http.StatusInternalServerError
	}
	return false
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
