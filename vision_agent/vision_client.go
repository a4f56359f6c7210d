// Package vision_agent talks to the image-generation model that translates menus in
// place and labels food, and post-processes its answers.
package vision_agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRateLimited  = errors.New("vision api rate limited")
	ErrUnauthorized = errors.New("vision api rejected credentials")
	ErrNoCandidates = errors.New("vision api returned no candidates")
	ErrNoContent    = errors.New("vision api returned no content parts")
)

// UpstreamError 上游非 2xx 响应。429 与 401/403 分别匹配 ErrRateLimited 与 ErrUnauthorized。
type UpstreamError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("vision api: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("vision api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// GenerateRequest 一次图文生成请求：原图 + 指令。
type GenerateRequest struct {
	ImageBase64 string
	MIMEType    string
	Prompt      string
}

// GenerateResult 首个内联图片与聚合后的文本。ImageBase64 为空表示模型未产出图片。
type GenerateResult struct {
	ImageMIMEType string
	ImageBase64   string
	Text          string
}

func (r GenerateResult) HasImage() bool {
	return r.ImageBase64 != ""
}

// ImageDataURL 将结果图片包装为 data URL；无图片时返回空串。
func (r GenerateResult) ImageDataURL() string {
	if !r.HasImage() {
		return ""
	}
	return ImageDataURL(r.ImageMIMEType, r.ImageBase64)
}

// VisionClient 视觉生成 API 抽象，便于 handler 测试替换。
type VisionClient interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
