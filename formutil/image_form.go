// Package formutil reads the multipart image uploads shared by every POST route.
package formutil

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"menu_translator/vision_agent"

	"github.com/gin-gonic/gin"
)

// multipartMemory 解析表单时驻留内存的上限，超出部分落临时文件。
const multipartMemory = 8 << 20

// formOverhead 为文本字段与 multipart 边界预留的额外字节。
const formOverhead = 64 << 10

var (
	ErrNotMultipart = errors.New("request body must be multipart/form-data")
	ErrMissingImage = errors.New("missing image")
	ErrTooLarge     = errors.New("image exceeds upload limit")
	ErrNotImage     = errors.New("invalid image type")
)

// Image 上传图片：原始字节与判定后的 MIME 类型。
type Image struct {
	Filename string
	MIMEType string
	Data     []byte
}

func (img *Image) Base64() string {
	return vision_agent.EncodeImage(img.Data)
}

func (img *Image) DataURL() string {
	return vision_agent.ImageDataURL(img.MIMEType, img.Base64())
}

// ParseMultipart 限制请求体大小后解析表单。
func ParseMultipart(c *gin.Context, maxBytes int64) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrTooLarge
		}
		return ErrNotMultipart
	}
	return nil
}

// Value 依次读取多个候选字段名，返回第一个非空值。
func Value(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Request.FormValue(name)); v != "" {
			return v
		}
	}
	return ""
}

// ReadImage 读取文件字段；没有文件时兼容以 data URL 文本提交的图片。
// 返回的 MIME 类型可能不是 image/*，由调用方决定是否拒绝。
func ReadImage(c *gin.Context, field string, maxBytes int64) (*Image, error) {
	form := c.Request.MultipartForm
	if form != nil {
		if headers := form.File[field]; len(headers) > 0 {
			fh := headers[0]
			if fh.Size > maxBytes {
				return nil, ErrTooLarge
			}
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()

			raw, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
			if err != nil {
				return nil, err
			}
			if int64(len(raw)) > maxBytes {
				return nil, ErrTooLarge
			}
			if len(raw) == 0 {
				return nil, ErrMissingImage
			}
			return &Image{
				Filename: fh.Filename,
				MIMEType: vision_agent.DetectImageMIME(fh.Header.Get("Content-Type"), raw),
				Data:     raw,
			}, nil
		}
	}

	text := strings.TrimSpace(c.Request.FormValue(field))
	if text == "" {
		return nil, ErrMissingImage
	}
	mimeType, raw, err := vision_agent.DecodeDataURL(text)
	if err != nil {
		return nil, ErrNotImage
	}
	if int64(len(raw)) > maxBytes {
		return nil, ErrTooLarge
	}
	return &Image{
		Filename: "capture",
		MIMEType: vision_agent.DetectImageMIME(mimeType, raw),
		Data:     raw,
	}, nil
}

// StatusFor 将表单错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	if errors.Is(err, ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
