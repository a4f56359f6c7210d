package vision_agent

import (
	"fmt"
	"strings"
)

const translatePromptTemplate = `You are a professional menu translation assistant.

Task: translate the %s text in this menu image into %s.

Requirements:
1. Recognize every dish name, price and description in the image.
2. Translate the recognized text into %s.
3. Render the translated text directly onto the original image, replacing or covering the original text.
4. Keep the original layout, relative font sizes and overall visual style.
5. Make the translation accurate and natural for a native %s reader.
6. Keep price numbers unchanged; translate only the words.

Generate a new image containing the translation.`

const recognizePromptTemplate = `You are a food recognition assistant.

## Task
Identify all food items in this image and add %s labels.

## Labeling Style
- Add a colored label near the top-right corner of each food item
- Use different background colors for different items (red, blue, green, orange, purple, etc.)
- Labels should have rounded corners, white text on colored background
- Labels should be clear and readable, not too large
- Each food item gets ONE label with its name in %s

## Requirements
- Only label food items (fruits, vegetables, dishes, ingredients, snacks, drinks, etc.)
- Keep labels concise
- Do not label non-food items (plates, utensils, tables, etc.)
- Do not overlap labels with each other
- If the same type of food appears multiple times, label it only once

## Output
- Generate the labeled image.
- Also return ONLY a JSON array (no markdown, no extra text) of food names in %s.`

// TranslatePrompt 生成菜单原位翻译指令；fromLang 为空时让模型自行识别源语言。
func TranslatePrompt(fromLang, toLang string) string {
	source := strings.TrimSpace(fromLang)
	if source == "" {
		source = "original-language (detect it automatically)"
	}
	return fmt.Sprintf(translatePromptTemplate, source, toLang, toLang, toLang)
}

// RecognizePrompt 生成食物标注指令，要求同时返回名称 JSON 数组。
func RecognizePrompt(toLang string) string {
	return fmt.Sprintf(recognizePromptTemplate, toLang, toLang, toLang)
}

const labelerSystemPrompt = `You identify food in photos. Reply with ONLY a JSON array of strings, one entry per distinct food item, no markdown and no extra text.`

func labelerUserPrompt(toLang string) string {
	return fmt.Sprintf("List every distinct food item visible in this image, with names written in %s.", toLang)
}
