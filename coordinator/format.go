package coordinator

import (
	"fmt"
	"html"
	"strings"
)

// toolIcons maps a tool name to its one-liner icon; unknown tools fall
// back to the wrench icon.
var toolIcons = map[string]string{
	"Read":      "📂",
	"Edit":      "✏️",
	"Write":     "📝",
	"Bash":      "▶️",
	"Grep":      "🔍",
	"Glob":      "🔍",
	"Task":      "🤖",
	"WebSearch": "🌐",
	"WebFetch":  "🌐",
}

// formatToolCall renders a tool invocation as a compact one-liner.
func formatToolCall(name string, input map[string]any) string {
	icon, ok := toolIcons[name]
	if !ok {
		icon = "🔧"
	}

	switch name {
	case "Read", "Edit", "Write":
		path, _ := input["file_path"].(string)
		return fmt.Sprintf("%s %s: %s", icon, name, lastTwoPathComponents(path))
	case "Bash":
		cmd, _ := input["command"].(string)
		return fmt.Sprintf("%s Bash: %s", icon, truncateWithEllipsis(cmd, 60))
	case "Grep", "Glob":
		pattern, _ := input["pattern"].(string)
		return fmt.Sprintf("%s %s: %s", icon, name, pattern)
	default:
		return fmt.Sprintf("%s %s", icon, name)
	}
}

// formatToolResult renders a tool's output as an expandable HTML quote,
// truncated and escaped.
func formatToolResult(result string) string {
	const maxLen = 1000
	r := []rune(result)
	text := result
	if len(r) > maxLen {
		text = string(r[:maxLen]) + fmt.Sprintf("\n... (%d chars total)", len(r))
	}
	return fmt.Sprintf("<blockquote expandable>%s</blockquote>", html.EscapeString(text))
}

// truncateWithEllipsis truncates to n runes and appends "…".
func truncateWithEllipsis(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func lastTwoPathComponents(path string) string {
	if !strings.Contains(path, "/") {
		return path
	}
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
