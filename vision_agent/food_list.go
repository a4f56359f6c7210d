package vision_agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?i)```(?:json)?")

// ExtractJSONArray 从模型文本中解析字符串数组：先去掉 ``` / ```json 包裹，
// 整体解析失败时退而截取首个 '[' 到最后一个 ']' 之间的内容。
// 只保留去除首尾空白后非空的字符串元素；无法解析出数组时返回 false。
func ExtractJSONArray(text string) ([]string, bool) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil, false
	}

	items, ok := decodeArray(cleaned)
	if !ok {
		start := strings.Index(cleaned, "[")
		end := strings.LastIndex(cleaned, "]")
		if start < 0 || end <= start {
			return nil, false
		}
		items, ok = decodeArray(cleaned[start : end+1])
		if !ok {
			return nil, false
		}
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			continue
		}
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names, true
}

func decodeArray(s string) ([]interface{}, bool) {
	var items []interface{}
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	return items, items != nil
}
