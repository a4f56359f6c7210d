// Package client is the Go counterpart of the camera app: it calls the
// menu_translator routes with a bearer token and drives the capture session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"menu_translator/languages"
	"menu_translator/translation_task"

	"github.com/go-resty/resty/v2"
)

// APIError 服务端非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ImageInput 待提交的图片。
type ImageInput struct {
	Filename string
	MIMEType string
	Data     []byte
}

// VisionResult /api/translate 与 /api/recognize 的成功响应。
type VisionResult struct {
	Success      bool     `json:"success"`
	ImageDataURL string   `json:"imageDataUrl"`
	TextResponse string   `json:"textResponse"`
	FoodList     []string `json:"foodList"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type languagesBody struct {
	Languages []languages.Language `json:"languages"`
}

// APIClient 调用服务端四个业务路由；UserID 仅在服务端未启用 JWT 时有意义。
type APIClient struct {
	BaseURL string
	Token   string
	UserID  string
	http    *resty.Client
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    resty.New().SetTimeout(timeout),
	}
}

func (c *APIClient) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetAuthToken(c.Token)
}

// Languages 获取可选目标语言列表。
func (c *APIClient) Languages(ctx context.Context) ([]languages.Language, error) {
	var body languagesBody
	rr, err := c.http.R().SetContext(ctx).SetResult(&body).Get(c.BaseURL + "/api/languages")
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	if !rr.IsSuccess() {
		return nil, newAPIError(rr)
	}
	return body.Languages, nil
}

func (c *APIClient) Translate(ctx context.Context, img ImageInput, toLang, fromLang string) (VisionResult, error) {
	fields := map[string]string{"toLang": toLang}
	if fromLang != "" {
		fields["fromLang"] = fromLang
	}
	return c.vision(ctx, "/api/translate", img, fields)
}

func (c *APIClient) Recognize(ctx context.Context, img ImageInput, toLang string) (VisionResult, error) {
	return c.vision(ctx, "/api/recognize", img, map[string]string{"toLang": toLang})
}

func (c *APIClient) vision(ctx context.Context, path string, img ImageInput, fields map[string]string) (VisionResult, error) {
	var result VisionResult
	rr, err := c.request(ctx).
		SetMultipartField("image", filename(img), img.MIMEType, bytes.NewReader(img.Data)).
		SetMultipartFormData(fields).
		SetResult(&result).
		Post(c.BaseURL + path)
	if err != nil {
		return VisionResult{}, fmt.Errorf("call %s: %w", path, err)
	}
	if !rr.IsSuccess() {
		return VisionResult{}, newAPIError(rr)
	}
	if result.FoodList == nil {
		result.FoodList = []string{}
	}
	return result, nil
}

// Upload 创建异步翻译任务，返回任务 ID 与初始状态。
func (c *APIClient) Upload(ctx context.Context, img ImageInput, toLang, fromLang string) (translation_task.Task, error) {
	fields := map[string]string{"toLang": toLang}
	if fromLang != "" {
		fields["fromLang"] = fromLang
	}
	if c.UserID != "" {
		fields["userId"] = c.UserID
	}

	var task translation_task.Task
	rr, err := c.request(ctx).
		SetMultipartField("image", filename(img), img.MIMEType, bytes.NewReader(img.Data)).
		SetMultipartFormData(fields).
		SetResult(&task).
		Post(c.BaseURL + "/api/upload")
	if err != nil {
		return translation_task.Task{}, fmt.Errorf("upload: %w", err)
	}
	if !rr.IsSuccess() {
		return translation_task.Task{}, newAPIError(rr)
	}
	return task, nil
}

// GetTask 查询一次任务状态，供轮询器调用。
func (c *APIClient) GetTask(ctx context.Context, taskID string) (translation_task.Task, error) {
	var task translation_task.Task
	rr, err := c.request(ctx).
		SetResult(&task).
		Get(c.BaseURL + "/api/task/" + url.PathEscape(taskID))
	if err != nil {
		return translation_task.Task{}, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if !rr.IsSuccess() {
		return translation_task.Task{}, newAPIError(rr)
	}
	return task, nil
}

func filename(img ImageInput) string {
	if img.Filename != "" {
		return img.Filename
	}
	return "capture"
}

func newAPIError(rr *resty.Response) *APIError {
	var body errorBody
	if err := json.Unmarshal(rr.Body(), &body); err == nil && body.Error != "" {
		return &APIError{StatusCode: rr.StatusCode(), Message: body.Error, Details: body.Details}
	}
	msg := strings.TrimSpace(rr.String())
	if msg == "" {
		msg = rr.Status()
	}
	return &APIError{StatusCode: rr.StatusCode(), Message: msg}
}
