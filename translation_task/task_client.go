package translation_task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrMissingTaskID = errors.New("translation api returned no task id")

// UpstreamError 翻译服务的非 2xx 响应，状态码原样透传给调用方。
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("translation api: HTTP %d: %s", e.StatusCode, e.Message)
}

// CreateTaskRequest 创建翻译任务所需的文件与语言代码。
type CreateTaskRequest struct {
	Filename string
	MIMEType string
	Data     []byte
	ToLang   string
	FromLang string
	UserID   string
}

// TaskClient 异步翻译 API 抽象。
type TaskClient interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
}

// HTTPTaskClient 以服务端密钥调用 /api/v1/translations。
type HTTPTaskClient struct {
	BaseURL      string
	APIKey       string
	OCRFullImage bool
	http         *resty.Client
	now          func() time.Time
}

func NewHTTPTaskClient(baseURL, apiKey string, ocrFullImage bool, timeout time.Duration) *HTTPTaskClient {
	return &HTTPTaskClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		OCRFullImage: ocrFullImage,
		http:         resty.New().SetTimeout(timeout),
		now:          time.Now,
	}
}

// ClientTaskID 生成上传关联 ID：menu_<userId>_<毫秒时间戳>。
func ClientTaskID(userID string, at time.Time) string {
	if strings.TrimSpace(userID) == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("menu_%s_%d", userID, at.UnixMilli())
}

func (c *HTTPTaskClient) CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	fields := map[string]string{
		"toLang":       req.ToLang,
		"fastCreation": "true",
		"ocrFullImage": strconv.FormatBool(c.OCRFullImage),
		"clientTaskId": ClientTaskID(req.UserID, c.now()),
	}
	if req.FromLang != "" {
		fields["fromLang"] = req.FromLang
	}
	filename := req.Filename
	if filename == "" {
		filename = "menu"
	}

	var raw rawTask
	rr, err := c.http.R().SetContext(ctx).
		SetAuthToken(c.APIKey).
		SetMultipartField("file", filename, req.MIMEType, bytes.NewReader(req.Data)).
		SetMultipartFormData(fields).
		SetResult(&raw).
		Post(c.BaseURL + "/api/v1/translations")
	if err != nil {
		return Task{}, fmt.Errorf("create translation task: %w", err)
	}
	if !rr.IsSuccess() {
		return Task{}, newUpstreamError(rr.StatusCode(), rr.Body())
	}

	task := raw.normalize()
	if task.TaskID == "" {
		return Task{}, ErrMissingTaskID
	}
	return task, nil
}

func (c *HTTPTaskClient) GetTask(ctx context.Context, taskID string) (Task, error) {
	var raw rawTask
	rr, err := c.http.R().SetContext(ctx).
		SetAuthToken(c.APIKey).
		SetHeader("Content-Type", "application/json").
		SetResult(&raw).
		Get(c.BaseURL + "/api/v1/translations/" + url.PathEscape(taskID))
	if err != nil {
		return Task{}, fmt.Errorf("get translation task: %w", err)
	}
	if !rr.IsSuccess() {
		return Task{}, newUpstreamError(rr.StatusCode(), rr.Body())
	}

	task := raw.normalize()
	if task.TaskID == "" {
		task.TaskID = taskID
	}
	return task, nil
}

// newUpstreamError 依次尝试 JSON message / error 字段、原始响应体、默认提示。
func newUpstreamError(status int, body []byte) *UpstreamError {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return &UpstreamError{StatusCode: status, Message: msg}
		}
		if msg := errorText(payload.Error); msg != "" {
			return &UpstreamError{StatusCode: status, Message: msg}
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 500 {
		text = text[:497] + "..."
	}
	if text != "" {
		return &UpstreamError{StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, text)}
	}
	return &UpstreamError{
		StatusCode: status,
		Message:    fmt.Sprintf("translation service call failed (HTTP %d)", status),
	}
}
