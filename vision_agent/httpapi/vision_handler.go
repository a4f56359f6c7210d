package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"

	"menu_translator/auth_system/middleware"
	"menu_translator/formutil"
	"menu_translator/languages"
	"menu_translator/vision_agent"

	"github.com/gin-gonic/gin"
)

// FoodLister 在模型文本无法解析出名称数组时兜底列出食物。
type FoodLister interface {
	ListFoods(ctx context.Context, imageDataURL string, toLang string) ([]string, error)
}

// VisionHandler 承载 /api/translate 与 /api/recognize。
// client 为 nil 表示服务端未配置视觉 API Key；labeler 可为 nil。
type VisionHandler struct {
	client         vision_agent.VisionClient
	labeler        FoodLister
	maxUploadBytes int64
}

func NewVisionHandler(client vision_agent.VisionClient, labeler FoodLister, maxUploadBytes int64) *VisionHandler {
	return &VisionHandler{client: client, labeler: labeler, maxUploadBytes: maxUploadBytes}
}

// visionInput 校验通过后的请求参数。
type visionInput struct {
	image    *formutil.Image
	toLang   languages.Language
	fromLang string
}

// TranslateHandle 将菜单图片中的文字原位翻译为目标语言。
func (h *VisionHandler) TranslateHandle(c *gin.Context) {
	in, ok := h.bindInput(c, true)
	if !ok {
		return
	}

	requestID := middleware.RequestID(c)
	log.Printf("[vision] request=%s op=translate from=%q to=%s image=%s size=%d",
		requestID, in.fromLang, in.toLang.Code, in.image.MIMEType, len(in.image.Data))

	result, err := h.client.Generate(c.Request.Context(), vision_agent.GenerateRequest{
		ImageBase64: in.image.Base64(),
		MIMEType:    in.image.MIMEType,
		Prompt:      vision_agent.TranslatePrompt(in.fromLang, in.toLang.Name),
	})
	if err != nil {
		log.Printf("[vision] request=%s op=translate failed: %v", requestID, err)
		respondUpstreamError(c, "Translation", err)
		return
	}
	if !result.HasImage() {
		respondNoImage(c, "translated", result.Text)
		return
	}

	c.JSON(http.StatusOK, TranslateResponse{
		Success:      true,
		ImageDataURL: result.ImageDataURL(),
		TextResponse: result.Text,
	})
}

// RecognizeHandle 标注图片中的食物并返回目标语言的名称列表。
func (h *VisionHandler) RecognizeHandle(c *gin.Context) {
	in, ok := h.bindInput(c, false)
	if !ok {
		return
	}

	requestID := middleware.RequestID(c)
	log.Printf("[vision] request=%s op=recognize to=%s image=%s size=%d",
		requestID, in.toLang.Code, in.image.MIMEType, len(in.image.Data))

	result, err := h.client.Generate(c.Request.Context(), vision_agent.GenerateRequest{
		ImageBase64: in.image.Base64(),
		MIMEType:    in.image.MIMEType,
		Prompt:      vision_agent.RecognizePrompt(in.toLang.Name),
	})
	if err != nil {
		log.Printf("[vision] request=%s op=recognize failed: %v", requestID, err)
		respondUpstreamError(c, "Recognition", err)
		return
	}
	if !result.HasImage() {
		respondNoImage(c, "labeled", result.Text)
		return
	}

	c.JSON(http.StatusOK, RecognizeResponse{
		Success:      true,
		ImageDataURL: result.ImageDataURL(),
		TextResponse: result.Text,
		FoodList:     h.foodList(c.Request.Context(), requestID, in, result.Text),
	})
}

func (h *VisionHandler) foodList(ctx context.Context, requestID string, in visionInput, text string) []string {
	if names, ok := vision_agent.ExtractJSONArray(text); ok {
		return names
	}
	if h.labeler == nil {
		return []string{}
	}

	names, err := h.labeler.ListFoods(ctx, in.image.DataURL(), in.toLang.Name)
	if err != nil {
		log.Printf("[vision] request=%s labeler fallback failed: %v", requestID, err)
		return []string{}
	}
	if names == nil {
		return []string{}
	}
	return names
}

// bindInput 解析并校验表单；失败时已写出响应。
func (h *VisionHandler) bindInput(c *gin.Context, withSource bool) (visionInput, bool) {
	var in visionInput

	if err := formutil.ParseMultipart(c, h.maxUploadBytes); err != nil {
		respondFormError(c, err)
		return in, false
	}

	image, err := formutil.ReadImage(c, "image", h.maxUploadBytes)
	toLang := formutil.Value(c, "toLang", "targetLang")
	if errors.Is(err, formutil.ErrMissingImage) || (err == nil && toLang == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required parameters: image, toLang"})
		return in, false
	}
	if err != nil {
		respondFormError(c, err)
		return in, false
	}

	lang, ok := languages.Resolve(toLang)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unsupported language: " + toLang})
		return in, false
	}

	if withSource {
		if from := formutil.Value(c, "fromLang", "sourceLang"); from != "" {
			source, ok := languages.Resolve(from)
			if !ok {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unsupported language: " + from})
				return in, false
			}
			in.fromLang = source.Name
		}
	}

	if !vision_agent.IsImageMIME(image.MIMEType) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image type, please upload an image file"})
		return in, false
	}

	if h.client == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Server configuration error: vision API key is not set"})
		return in, false
	}

	in.image = image
	in.toLang = lang
	return in, true
}

func respondFormError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, formutil.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Image is too large"})
	case errors.Is(err, formutil.ErrNotImage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image type, please upload an image file"})
	default:
		c.JSON(formutil.StatusFor(err), ErrorResponse{Error: "Invalid form data", Details: err.Error()})
	}
}

func respondNoImage(c *gin.Context, what string, text string) {
	message := "Failed to generate " + what + " image"
	if text != "" {
		message += ". Model response: " + text
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: message, TextResponse: text})
}

// respondUpstreamError 按错误类型映射状态码：限流 429，鉴权 401，其余 500。
func respondUpstreamError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, vision_agent.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "API request rate limit exceeded, please try again later",
			Details: err.Error(),
		})
	case errors.Is(err, vision_agent.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "API authentication failed, please check the server configuration",
			Details: err.Error(),
		})
	case errors.Is(err, vision_agent.ErrNoCandidates), errors.Is(err, vision_agent.ErrNoContent):
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Invalid response from the vision model",
			Details: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   op + " processing failed",
			Details: err.Error(),
		})
	}
}
