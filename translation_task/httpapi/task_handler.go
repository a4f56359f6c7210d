package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"menu_translator/auth_system/middleware"
	"menu_translator/formutil"
	"menu_translator/languages"
	"menu_translator/translation_task"
	"menu_translator/vision_agent"

	"github.com/gin-gonic/gin"
)

// TaskHandler 承载 /api/upload 与 /api/task/:taskId。client 为 nil 表示翻译服务未配置。
type TaskHandler struct {
	client         translation_task.TaskClient
	maxUploadBytes int64
}

func NewTaskHandler(client translation_task.TaskClient, maxUploadBytes int64) *TaskHandler {
	return &TaskHandler{client: client, maxUploadBytes: maxUploadBytes}
}

// UploadHandle 将图片提交给异步翻译服务，返回任务 ID 与初始状态。
func (h *TaskHandler) UploadHandle(c *gin.Context) {
	if err := formutil.ParseMultipart(c, h.maxUploadBytes); err != nil {
		respondFormError(c, err)
		return
	}

	image, err := formutil.ReadImage(c, "image", h.maxUploadBytes)
	toLang := formutil.Value(c, "toLang", "targetLang")
	if errors.Is(err, formutil.ErrMissingImage) || (err == nil && toLang == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters: image, toLang"})
		return
	}
	if err != nil {
		respondFormError(c, err)
		return
	}

	target, ok := languages.Resolve(toLang)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported language: " + toLang})
		return
	}
	var sourceCode string
	if from := formutil.Value(c, "fromLang", "sourceLang"); from != "" {
		source, ok := languages.Resolve(from)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported language: " + from})
			return
		}
		sourceCode = source.Code
	}

	if !vision_agent.IsImageMIME(image.MIMEType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image type, please upload an image file"})
		return
	}
	if h.client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error: translation service is not configured"})
		return
	}

	userID := middleware.CurrentUserID(c)
	if userID == "" {
		userID = formutil.Value(c, "userId")
	}

	requestID := middleware.RequestID(c)
	log.Printf("[task] request=%s op=upload user=%q from=%q to=%s image=%s size=%d",
		requestID, userID, sourceCode, target.Code, image.MIMEType, len(image.Data))

	task, err := h.client.CreateTask(c.Request.Context(), translation_task.CreateTaskRequest{
		Filename: image.Filename,
		MIMEType: image.MIMEType,
		Data:     image.Data,
		ToLang:   target.Code,
		FromLang: sourceCode,
		UserID:   userID,
	})
	if err != nil {
		log.Printf("[task] request=%s op=upload failed: %v", requestID, err)
		respondTaskError(c, err)
		return
	}

	log.Printf("[task] request=%s task=%s status=%s", requestID, task.TaskID, task.Status)
	c.JSON(http.StatusOK, UploadResponse{TaskID: task.TaskID, Status: task.Status})
}

// TaskStatusHandle 以服务端密钥查询任务状态并返回统一后的字段。
func (h *TaskHandler) TaskStatusHandle(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("taskId"))
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing task ID"})
		return
	}
	if h.client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error: translation service is not configured"})
		return
	}

	task, err := h.client.GetTask(c.Request.Context(), taskID)
	if err != nil {
		log.Printf("[task] request=%s op=status task=%s failed: %v", middleware.RequestID(c), taskID, err)
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, TaskStatusResponse(task))
}

// respondTaskError 上游非 2xx 原样透传状态码；网络等错误返回 502。
func respondTaskError(c *gin.Context, err error) {
	var upstream *translation_task.UpstreamError
	if errors.As(err, &upstream) {
		c.JSON(upstream.StatusCode, gin.H{"error": upstream.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "Translation service unavailable",
		"details": err.Error(),
	})
}

func respondFormError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, formutil.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
	case errors.Is(err, formutil.ErrNotImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image type, please upload an image file"})
	default:
		c.JSON(formutil.StatusFor(err), gin.H{"error": "Invalid form data", "details": err.Error()})
	}
}
