// Package runner owns the agent child process: it launches the coding
// agent as a stream-JSON subprocess, pumps its stdout into a queue that
// survives mid-turn injection, and exposes a cancellable per-turn event
// sequence to callers.
package runner

// EventType tags the variant of a RunnerEvent.
type EventType int

const (
	// EventInit carries a freshly assigned or resumed session id.
	EventInit EventType = iota
	// EventTextDelta carries a non-empty fragment of assistant prose.
	EventTextDelta
	// EventToolStart announces a tool invocation has begun.
	EventToolStart
	// EventToolUse carries the tool name and its input mapping.
	EventToolUse
	// EventToolResult carries a tool's output text and error flag.
	EventToolResult
	// EventResult terminates a turn with totals and the final text.
	EventResult
)

// RunnerEvent is the single flattened type for everything a turn can
// yield. Only the fields relevant to Type are populated; the rest are
// zero values. This mirrors the wire protocol's own flattened records
// (one decode target per line, never a polymorphic hierarchy).
type RunnerEvent struct {
	Type       EventType
	SessionID  string
	Text       string
	ToolName   string
	ToolInput  map[string]any
	IsError    bool
	DurationMS int
	NumTurns   int
	CostUSD    float64
}

// sentinelKind distinguishes the two internal, never-surfaced queue items
// from real RunnerEvents sharing the same queue.
type sentinelKind int

const (
	sentinelEOF sentinelKind = iota
	sentinelReaderError
)

// sentinel is a queue item that signals the pump's own termination rather
// than agent output. EOF carries captured stderr and the exit code;
// ReaderError carries a crash message. Sentinels are never handed to
// Coordinator code — the turn iterator translates them into a synthetic
// TEXT_DELTA and ends the sequence.
type sentinel struct {
	kind     sentinelKind
	stderr   string
	exitCode int
	message  string
}

// queueItem is either a RunnerEvent or a sentinel; exactly one of the two
// pointers is non-nil.
type queueItem struct {
	event *RunnerEvent
	sent  *sentinel
}
