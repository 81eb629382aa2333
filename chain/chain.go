// Package chain implements the Message Chain: an append-only text buffer
// that knows how to split itself across chat messages without exceeding a
// per-message size cap, preferring to split at a line boundary.
package chain

import "strings"

// DefaultMaxLength is the default per-message cap, kept below Telegram's
// 4096-char hard limit to leave margin for HTML entity expansion.
const DefaultMaxLength = 3800

// MessageChain buffers text for the active tail message of a turn and
// freezes completed chunks as the buffer grows past MaxLength.
type MessageChain struct {
	MaxLength int

	current   string
	completed []string
	footer    string
}

// New returns a MessageChain with the default max length.
func New() *MessageChain {
	return &MessageChain{MaxLength: DefaultMaxLength}
}

// Current returns the text of the tail message being edited.
func (c *MessageChain) Current() string { return c.current }

// Completed returns the frozen predecessor chunks, in order.
func (c *MessageChain) Completed() []string { return c.completed }

// AppendText concatenates s onto the current buffer.
func (c *MessageChain) AppendText(s string) {
	c.current += s
}

// AppendTextAtFront prepends s to the current buffer. Used only to splice
// the "🛑 Cancelled" marker onto an in-progress turn at finalize time.
func (c *MessageChain) AppendTextAtFront(s string) {
	c.current = s + c.current
}

// AppendToolCall ensures current ends with a newline, then appends
// line + "\n".
func (c *MessageChain) AppendToolCall(line string) {
	if c.current != "" && !strings.HasSuffix(c.current, "\n") {
		c.current += "\n"
	}
	c.current += line + "\n"
}

// NeedsNewMessage reports whether the current buffer has outgrown
// MaxLength and must be split.
func (c *MessageChain) NeedsNewMessage() bool {
	return len([]rune(c.current)) > c.MaxLength
}

// maxLength returns the effective cap, defaulting if unset.
func (c *MessageChain) maxLength() int {
	if c.MaxLength > 0 {
		return c.MaxLength
	}
	return DefaultMaxLength
}

// CompleteCurrent freezes the current buffer (or a max-length-bounded
// prefix of it) into Completed, resets current to any remainder, and
// returns the frozen text. Splitting prefers the last newline within the
// first MaxLength runes; if that split point falls below half the cap
// (meaning a hard cut is less wasteful than an overly short line-bounded
// chunk), it splits at MaxLength instead.
func (c *MessageChain) CompleteCurrent() string {
	max := c.maxLength()
	runes := []rune(c.current)

	if len(runes) <= max {
		completed := c.current
		c.current = ""
		c.completed = append(c.completed, completed)
		return completed
	}

	head := string(runes[:max])
	splitAt := strings.LastIndex(head, "\n")
	if splitAt < 0 || len([]rune(head[:splitAt])) < max/2 {
		splitAt = len(head)
	} else {
		splitAt++ // keep the newline in the completed chunk
	}

	// splitAt is a byte offset into head; head is itself the first `max`
	// runes re-encoded to UTF-8, so recompute the matching offset in the
	// original string by rune count rather than byte count, since the
	// rune and byte lengths of head can differ.
	prefixRuneLen := len([]rune(head[:splitAt]))
	completed := string(runes[:prefixRuneLen])
	c.current = strings.TrimLeft(string(runes[prefixRuneLen:]), "\n")
	c.completed = append(c.completed, completed)
	return completed
}

// SetFooter sets the footer shown by Render but never stored in Current.
func (c *MessageChain) SetFooter(footer string) {
	c.footer = footer
}

// Render returns the current buffer with the footer appended after a
// blank line, if the footer is non-empty.
func (c *MessageChain) Render() string {
	if c.footer == "" {
		return c.current
	}
	return strings.TrimRight(c.current, " \t\n") + "\n\n" + c.footer
}
