package httpapi

// TranslateResponse 菜单翻译成功响应。
type TranslateResponse struct {
	Success      bool   `json:"success"`
	ImageDataURL string `json:"imageDataUrl"`
	TextResponse string `json:"textResponse,omitempty"`
}

// RecognizeResponse 食物识别成功响应，foodList 始终为数组。
type RecognizeResponse struct {
	Success      bool     `json:"success"`
	ImageDataURL string   `json:"imageDataUrl"`
	TextResponse string   `json:"textResponse,omitempty"`
	FoodList     []string `json:"foodList"`
}

// ErrorResponse 失败响应；模型只回文本时附带 textResponse 便于排查。
type ErrorResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	TextResponse string `json:"textResponse,omitempty"`
}
