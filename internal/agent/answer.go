package agent

import (
	"bytes"
	"encoding/json"
	"strings"
)

// formatAnswer pretty prints an answer that is a JSON object or array into a json fence.
// Anything else is returned unchanged.
func formatAnswer(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return content
	}
	if !json.Valid([]byte(trimmed)) {
		return content
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(trimmed), "", "  "); err != nil {
		return content
	}
	return "```json\n" + out.String() + "\n```"
}
