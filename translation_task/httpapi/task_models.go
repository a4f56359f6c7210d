package httpapi

import "menu_translator/translation_task"

// UploadResponse 创建任务后只返回任务 ID 与初始状态，结果需轮询获取。
type UploadResponse struct {
	TaskID string                      `json:"taskId"`
	Status translation_task.TaskStatus `json:"status"`
}

// TaskStatusResponse 与 translation_task.Task 字段一致。
type TaskStatusResponse = translation_task.Task
