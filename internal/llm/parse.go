package llm

import (
	"fmt"
	"strings"
)

// StripMarkdownJSON extracts a JSON object from an LLM response that may
// be wrapped in markdown code fences or preceded by explanatory text.
// The memorize/retrieve steps that parse structured LLM output lean on
// this tolerance: a parse failure drops just that memory type or recall
// section rather than aborting the pipeline.
func StripMarkdownJSON(text string) (string, error) {
	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			if i+1 < len(content) && content[i+1] == '{' {
				i++
				continue
			}
			start = i
			break
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object found in text")
	}

	return content[start:], nil
}

// StripMarkdownJSONArray is StripMarkdownJSON's counterpart for LLM
// responses expected to be a JSON array (e.g. a ranked list of ids)
// rather than an object.
func StripMarkdownJSONArray(text string) (string, error) {
	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON array found in text")
	}
	return content[start:], nil
}
