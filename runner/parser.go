package runner

import (
	"encoding/json"
	"strings"
)

// record is the flattened decode target for one stream-JSON line. Every
// field a variant might need lives here; encoding/json leaves the rest at
// their zero value, which is exactly the "missing fields default to empty"
// rule the parser must honor.
type record struct {
	Type         string       `json:"type"`
	Subtype      string       `json:"subtype"`
	SessionID    string       `json:"session_id"`
	Event        *wireEvent   `json:"event"`
	Message      *wireMessage `json:"message"`
	DurationMS   int          `json:"duration_ms"`
	NumTurns     int          `json:"num_turns"`
	TotalCostUSD float64      `json:"total_cost_usd"`
	Result       string       `json:"result"`
}

type wireEvent struct {
	Type         string            `json:"type"`
	Delta        *wireDelta        `json:"delta"`
	ContentBlock *wireContentBlock `json:"content_block"`
}

type wireDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireContentBlock struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Input   map[string]any  `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

type wireMessage struct {
	Content []wireContentBlock `json:"content"`
}

// toolResultText extracts the text of a tool_result content block, which
// the wire protocol may represent as a bare string or as an array of
// {type, text} blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// parse maps one decoded record to zero or one RunnerEvent. It never
// fails: any field it needs that is missing or mistyped in the record
// simply decodes to its Go zero value upstream.
func parse(rec record) (RunnerEvent, bool) {
	switch rec.Type {
	case "system":
		if rec.Subtype == "init" {
			return RunnerEvent{Type: EventInit, SessionID: rec.SessionID}, true
		}
		return RunnerEvent{}, false

	case "stream_event":
		if rec.Event == nil {
			return RunnerEvent{}, false
		}
		switch rec.Event.Type {
		case "content_block_delta":
			if rec.Event.Delta != nil && rec.Event.Delta.Type == "text_delta" {
				return RunnerEvent{Type: EventTextDelta, Text: rec.Event.Delta.Text}, true
			}
		case "content_block_start":
			if rec.Event.ContentBlock != nil && rec.Event.ContentBlock.Type == "tool_use" {
				return RunnerEvent{Type: EventToolStart, ToolName: rec.Event.ContentBlock.Name}, true
			}
		}
		return RunnerEvent{}, false

	case "assistant":
		if rec.Message == nil {
			return RunnerEvent{}, false
		}
		for _, block := range rec.Message.Content {
			if block.Type == "tool_use" {
				input := block.Input
				if input == nil {
					input = map[string]any{}
				}
				return RunnerEvent{Type: EventToolUse, ToolName: block.Name, ToolInput: input}, true
			}
		}
		return RunnerEvent{}, false

	case "user":
		if rec.Message == nil {
			return RunnerEvent{}, false
		}
		for _, block := range rec.Message.Content {
			if block.Type == "tool_result" {
				return RunnerEvent{
					Type:    EventToolResult,
					Text:    toolResultText(block.Content),
					IsError: block.IsError,
				}, true
			}
		}
		return RunnerEvent{}, false

	case "result":
		return RunnerEvent{
			Type:       EventResult,
			SessionID:  rec.SessionID,
			DurationMS: rec.DurationMS,
			NumTurns:   rec.NumTurns,
			CostUSD:    rec.TotalCostUSD,
			Text:       rec.Result,
		}, true

	default:
		return RunnerEvent{}, false
	}
}
