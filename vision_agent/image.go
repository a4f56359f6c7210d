package vision_agent

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const defaultImageMIMEType = "image/png"

// ImageDataURL builds data:<mime>;base64,<data>.
func ImageDataURL(mimeType, data string) string {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = defaultImageMIMEType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, data)
}

// DetectImageMIME 优先使用声明的类型；缺失或为 application/octet-stream 时按内容嗅探。
func DetectImageMIME(declared string, raw []byte) string {
	mimeType := strings.TrimSpace(strings.ToLower(declared))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(raw)
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = mimeType[:i]
		}
	}
	return mimeType
}

func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// EncodeImage 原始字节转标准 base64。
func EncodeImage(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeDataURL 拆解 data URL，返回 MIME 类型与原始字节。
func DecodeDataURL(dataURL string) (string, []byte, error) {
	trimmed := strings.TrimSpace(dataURL)
	rest, ok := strings.CutPrefix(trimmed, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("invalid image data url")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid image base64: %w", err)
	}
	if meta == "" {
		meta = http.DetectContentType(raw)
	}
	return meta, raw, nil
}
