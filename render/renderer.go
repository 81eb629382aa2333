// Package render implements the Chat Stream Renderer: it buffers event
// fragments into a chain.MessageChain and turns them into edits of a chat
// message chain, obeying a minimum edit interval and a single
// finalization.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/nevindra/chatbridge"
	"github.com/nevindra/chatbridge/chain"
)

// DefaultUpdateInterval is the minimum spacing between edits absent
// configuration.
const DefaultUpdateInterval = 2 * time.Second

// Renderer is owned exclusively by the turn that created it and is
// discarded on Finalize.
type Renderer struct {
	fe             chatbridge.Frontend
	chatID         string
	updateInterval time.Duration

	mu             sync.Mutex
	chain          *chain.MessageChain
	firstMessageID string
	currentMsgID   string
	lastUpdate     time.Time
	dirty          bool
	finalized      bool
}

// New constructs a Renderer for one turn. updateInterval <= 0 uses
// DefaultUpdateInterval.
func New(fe chatbridge.Frontend, chatID string, updateInterval time.Duration) *Renderer {
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	return &Renderer{
		fe:             fe,
		chatID:         chatID,
		updateInterval: updateInterval,
		chain:          chain.New(),
	}
}

// Start posts the initial placeholder message bearing the cancel keyboard
// and remembers it as both the first and current message.
func (r *Renderer) Start(ctx context.Context) error {
	id, err := r.fe.Send(ctx, r.chatID, "⏳ Thinking…", chatbridge.CancelKeyboard())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.firstMessageID = id
	r.currentMsgID = id
	r.mu.Unlock()
	return nil
}

// PushText appends text to the chain and attempts an update.
func (r *Renderer) PushText(ctx context.Context, s string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	r.chain.AppendText(s)
	r.dirty = true
	r.mu.Unlock()
	r.maybeUpdate(ctx)
}

// PushToolCall appends a formatted tool-call line to the chain.
func (r *Renderer) PushToolCall(ctx context.Context, line string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	r.chain.AppendToolCall(line)
	r.dirty = true
	r.mu.Unlock()
	r.maybeUpdate(ctx)
}

// PushToolResult appends a pre-formatted (HTML) tool result to the chain.
func (r *Renderer) PushToolResult(ctx context.Context, html string) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	r.chain.AppendText(html)
	r.dirty = true
	r.mu.Unlock()
	r.maybeUpdate(ctx)
}

// maybeUpdate calls flush only if at least updateInterval has elapsed
// since the last update.
func (r *Renderer) maybeUpdate(ctx context.Context) {
	r.mu.Lock()
	elapsed := time.Since(r.lastUpdate)
	r.mu.Unlock()
	if elapsed < r.updateInterval {
		return
	}
	r.flush(ctx)
}

// flush is the Renderer's single serialization point: a push that arrives
// mid-flush waits for the mutex, so there is no interleaving that could
// reorder or skip rendered text.
func (r *Renderer) flush(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty || r.currentMsgID == "" || r.finalized {
		return
	}

	if r.chain.NeedsNewMessage() {
		completed := r.chain.CompleteCurrent()
		_ = r.fe.EditFormatted(ctx, r.chatID, r.currentMsgID, completed, nil)
		// Any further full chunks are posted as their own messages, so a
		// single flush never leaves a tail longer than MaxLength.
		for r.chain.NeedsNewMessage() {
			_, _ = r.fe.Send(ctx, r.chatID, r.chain.CompleteCurrent(), nil)
		}

		newID, err := r.fe.Send(ctx, r.chatID, "⏳ …", chatbridge.CancelKeyboard())
		if err == nil {
			r.currentMsgID = newID
		}
	}

	display := r.chain.Render()
	_ = r.fe.EditFormatted(ctx, r.chatID, r.currentMsgID, display, chatbridge.CancelKeyboard())

	r.lastUpdate = time.Now()
	r.dirty = false
}

// Finalize is the only completion path. If cancelled, it prepends
// "🛑 Cancelled" to the chain's current text. It sets the footer, renders,
// and performs one final edit with the keyboard removed. All pushes after
// Finalize are ignored.
func (r *Renderer) Finalize(ctx context.Context, footer string, cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return
	}
	r.finalized = true

	if cancelled {
		r.chain.AppendTextAtFront("🛑 Cancelled\n\n")
	}
	if footer != "" {
		r.chain.SetFooter(footer)
	}

	if r.currentMsgID == "" {
		return
	}
	display := r.chain.Render()
	_ = r.fe.EditFormatted(ctx, r.chatID, r.currentMsgID, display, nil)
}
