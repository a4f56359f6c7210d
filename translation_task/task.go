// Package translation_task wraps the asynchronous document translation API:
// create a task from an uploaded image, then read its status until it ends.
package translation_task

import (
	"encoding/json"
	"math"
	"strings"
)

// TaskStatus 统一后的任务状态。
type TaskStatus string

const (
	StatusAnalyzing    TaskStatus = "Analyzing"
	StatusWaiting      TaskStatus = "Waiting"
	StatusProcessing   TaskStatus = "Processing"
	StatusCompleted    TaskStatus = "Completed"
	StatusTerminated   TaskStatus = "Terminated"
	StatusNotSupported TaskStatus = "NotSupported"
)

// Terminal 表示任务不会再变化，轮询应当停止。
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusTerminated, StatusNotSupported:
		return true
	}
	return false
}

// ParseStatus 不区分大小写地映射上游状态；无法识别的值按 Processing 处理。
func ParseStatus(raw string) TaskStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)

	switch key {
	case "analyzing", "analysing":
		return StatusAnalyzing
	case "pending", "queued", "waiting":
		return StatusWaiting
	case "processing", "running", "translating":
		return StatusProcessing
	case "completed", "done", "success", "succeeded":
		return StatusCompleted
	case "terminated", "failed", "error", "cancelled", "canceled":
		return StatusTerminated
	case "notsupported", "unsupported":
		return StatusNotSupported
	}
	return StatusProcessing
}

// NormalizeProgress 将 0-1 或 0-100 的进度统一为 0-100 的整数。
func NormalizeProgress(value float64, status TaskStatus) int {
	if status == StatusCompleted {
		return 100
	}
	if math.IsNaN(value) || value <= 0 {
		return 0
	}
	if value < 1 {
		value *= 100
	}
	if value > 100 {
		return 100
	}
	return int(math.Round(value))
}

// Task 统一后的任务视图，也是 /api/task 的响应体。
type Task struct {
	TaskID            string     `json:"taskId"`
	Status            TaskStatus `json:"status"`
	Progress          int        `json:"progress"`
	TranslatedFileURL string     `json:"translatedFileUrl,omitempty"`
	Error             string     `json:"error,omitempty"`
}

// rawTask 上游响应，不同版本的字段名不一致。
type rawTask struct {
	TaskID             string          `json:"taskId"`
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	Progress           *float64        `json:"progress"`
	TranslatedFileURL  string          `json:"translatedFileUrl"`
	TranslatedImageURL string          `json:"translatedImageUrl"`
	ResultURL          string          `json:"resultUrl"`
	Error              json.RawMessage `json:"error"`
}

func (r rawTask) normalize() Task {
	status := ParseStatus(r.Status)
	task := Task{
		TaskID: firstNonEmpty(r.TaskID, r.ID),
		Status: status,
	}
	if r.Progress != nil {
		task.Progress = NormalizeProgress(*r.Progress, status)
	} else if status == StatusCompleted {
		task.Progress = 100
	}
	task.TranslatedFileURL = firstNonEmpty(r.TranslatedFileURL, r.TranslatedImageURL, r.ResultURL)
	task.Error = errorText(r.Error)
	return task
}

// errorText 兼容字符串与 {"message": "..."} 两种 error 字段。
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return strings.TrimSpace(obj.Message)
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
