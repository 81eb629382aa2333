// Package coordinator implements the Turn Coordinator: it debounces chat
// input into a single prompt, enforces a single-active-turn invariant,
// drives the Runner, and routes events to a per-turn Renderer.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nevindra/chatbridge"
	"github.com/nevindra/chatbridge/internal/media"
	"github.com/nevindra/chatbridge/render"
	"github.com/nevindra/chatbridge/runner"
)

const debounceDelay = 500 * time.Millisecond

// DefaultSessionTimeout is the idle window after which a remembered
// session is auto-cleared.
const DefaultSessionTimeout = time.Hour

// Runner is the subset of *runner.Runner the Coordinator depends on,
// named here so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, prompt string) (*runner.Turn, error)
	IsRunning() bool
	SessionID() string
	ClearSession()
	SetModel(model string)
	Model() string
	Cancel()
}

// Coordinator ties the Frontend, Runner, Renderer, and media tracker
// together for one authorized chat.
type Coordinator struct {
	fe      chatbridge.Frontend
	rn      Runner
	media   *media.Tracker
	chatID  string
	userID  string
	verbose bool

	updateInterval time.Duration
	sessionTimeout time.Duration

	mu           sync.Mutex
	texts        []string
	photoPaths   []string
	docPaths     []string
	debounce     *time.Timer
	lastActivity time.Time
	sessionCost  float64
	renderer     *render.Renderer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVerbose enables rendering of tool results to chat.
func WithVerbose() Option {
	return func(c *Coordinator) { c.verbose = true }
}

// WithUpdateInterval overrides the Renderer's minimum edit spacing.
func WithUpdateInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.updateInterval = d }
}

// WithSessionTimeout overrides the idle auto-clear window.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.sessionTimeout = d }
}

// New constructs a Coordinator for the single authorized chat/user pair.
func New(fe chatbridge.Frontend, rn Runner, mediaTracker *media.Tracker, chatID, userID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		fe:             fe,
		rn:             rn,
		media:          mediaTracker,
		chatID:         chatID,
		userID:         userID,
		sessionTimeout: DefaultSessionTimeout,
		lastActivity:   time.Now(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Authorized reports whether a message's user id matches the single
// configured identity; unauthorized messages are dropped silently by the
// caller.
func (c *Coordinator) Authorized(userID string) bool {
	return userID == c.userID
}

// HandleText appends text to the buffer and arms the debounce timer.
func (c *Coordinator) HandleText(ctx context.Context, text string) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	c.armDebounce(ctx)
}

// HandlePhoto downloads the given attachment, appends its local path, and
// arms the debounce timer. caption, if non-empty, is appended as text too.
func (c *Coordinator) HandlePhoto(ctx context.Context, file chatbridge.FileInfo, caption string) error {
	path, err := c.downloadAndTrack(ctx, file, "photo")
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.photoPaths = append(c.photoPaths, path)
	if caption != "" {
		c.texts = append(c.texts, caption)
	}
	c.mu.Unlock()
	c.armDebounce(ctx)
	return nil
}

// HandleDocument downloads the given attachment, appends its local path,
// and arms the debounce timer. caption, if non-empty, is appended as text.
func (c *Coordinator) HandleDocument(ctx context.Context, file chatbridge.FileInfo, caption string) error {
	path, err := c.downloadAndTrack(ctx, file, "doc")
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.docPaths = append(c.docPaths, path)
	if caption != "" {
		c.texts = append(c.texts, caption)
	}
	c.mu.Unlock()
	c.armDebounce(ctx)
	return nil
}

func (c *Coordinator) downloadAndTrack(ctx context.Context, file chatbridge.FileInfo, kind string) (string, error) {
	data, name, err := c.fe.DownloadFile(ctx, file.FileID)
	if err != nil {
		return "", fmt.Errorf("coordinator: download %s: %w", kind, err)
	}
	if name == "" {
		name = file.FileName
	}
	return c.media.Save(data, name)
}

// HandleVoice replies that voice input is not supported; there is no
// voice transcription in the core.
func (c *Coordinator) HandleVoice(ctx context.Context) {
	_, _ = c.fe.Send(ctx, c.chatID, "🎤 Voice messages not supported yet.", nil)
}

// HandleCancel cancels any in-progress turn, idempotent whether or not
// one exists.
func (c *Coordinator) HandleCancel(ctx context.Context) {
	if !c.rn.IsRunning() {
		_, _ = c.fe.Send(ctx, c.chatID, "Nothing running.", nil)
		return
	}
	c.rn.Cancel()
	c.mu.Lock()
	r := c.renderer
	c.mu.Unlock()
	if r != nil {
		r.Finalize(ctx, "", true)
	}
}

// HandleClear forgets the remembered session, purges tracked media, and
// resets the cost accumulator.
func (c *Coordinator) HandleClear(ctx context.Context) {
	c.rn.ClearSession()
	c.media.Cleanup()
	c.mu.Lock()
	c.sessionCost = 0
	c.mu.Unlock()
	_, _ = c.fe.Send(ctx, c.chatID, "🆕 Session cleared.", nil)
}

// HandleCost replies with the accumulated session cost to 4 decimals.
func (c *Coordinator) HandleCost(ctx context.Context) {
	c.mu.Lock()
	cost := c.sessionCost
	c.mu.Unlock()
	_, _ = c.fe.Send(ctx, c.chatID, fmt.Sprintf("💰 Session cost: $%.4f", cost), nil)
}

// HandleModel updates the Runner's model for the next spawned child. An
// empty name reports the current model instead.
func (c *Coordinator) HandleModel(ctx context.Context, name string) {
	if name == "" {
		current := c.rn.Model()
		if current == "" {
			current = "default"
		}
		_, _ = c.fe.Send(ctx, c.chatID, fmt.Sprintf("Current model: %s\nUsage: /model <name>", current), nil)
		return
	}
	c.rn.SetModel(name)
	_, _ = c.fe.Send(ctx, c.chatID, fmt.Sprintf("Model set to: %s", name), nil)
}

// HandleCompact pushes the literal string "/compact" into the buffer and
// flushes immediately, rejected if a turn is already active.
func (c *Coordinator) HandleCompact(ctx context.Context) {
	if c.rn.IsRunning() {
		_, _ = c.fe.Send(ctx, c.chatID, "⚠️ Claude is busy. Use /cancel first.", nil)
		return
	}
	c.mu.Lock()
	c.texts = append(c.texts, "/compact")
	c.mu.Unlock()
	c.flush(ctx)
}

// HandleCancelCallback is equivalent to HandleCancel, for the inline
// cancel button.
func (c *Coordinator) HandleCancelCallback(ctx context.Context) {
	c.HandleCancel(ctx)
}

// armDebounce cancels any pending timer and schedules a flush
// debounceDelay in the future. Any new input within that window replaces
// the timer, so concurrent arrivals accumulate into the next turn.
func (c *Coordinator) armDebounce(ctx context.Context) {
	c.mu.Lock()
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(debounceDelay, func() { c.flush(ctx) })
	c.mu.Unlock()
}

// flush snapshots and clears the buffer, then (subject to the single-turn
// gate) drives a turn to completion.
func (c *Coordinator) flush(ctx context.Context) {
	c.mu.Lock()
	texts := c.texts
	photos := c.photoPaths
	docs := c.docPaths
	c.texts = nil
	c.photoPaths = nil
	c.docPaths = nil
	c.mu.Unlock()

	if len(texts) == 0 && len(photos) == 0 && len(docs) == 0 {
		return
	}

	if c.rn.IsRunning() {
		_, _ = c.fe.Send(ctx, c.chatID, "⚠️ Claude is busy. Use /cancel first.", nil)
		return
	}

	c.checkSessionTimeout()
	c.touchActivity()

	prompt := c.media.BuildPrompt(strings.Join(texts, "\n"), photos, docs)
	if prompt == "" {
		return
	}

	c.runTurn(ctx, prompt)
}

// checkSessionTimeout clears the session, purges media, and resets cost
// if the remembered session has been idle past sessionTimeout.
func (c *Coordinator) checkSessionTimeout() {
	if c.rn.SessionID() == "" {
		return
	}
	c.mu.Lock()
	idle := time.Since(c.lastActivity)
	c.mu.Unlock()
	if idle >= c.sessionTimeout {
		log.Printf("coordinator: session idle %s, resetting", idle)
		c.rn.ClearSession()
		c.media.Cleanup()
		c.mu.Lock()
		c.sessionCost = 0
		c.mu.Unlock()
	}
}

func (c *Coordinator) touchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// runTurn starts a Renderer, drives the Runner's event sequence, and
// routes each event to the Renderer or cost accumulator.
func (c *Coordinator) runTurn(ctx context.Context, prompt string) {
	r := render.New(c.fe, c.chatID, c.updateInterval)
	c.mu.Lock()
	c.renderer = r
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.renderer = nil
		c.mu.Unlock()
	}()

	if err := r.Start(ctx); err != nil {
		log.Printf("coordinator: renderer start: %v", err)
		return
	}

	turn, err := c.rn.Run(ctx, prompt)
	if err != nil {
		r.Finalize(ctx, fmt.Sprintf("❌ Error: %s", truncate(err.Error(), 200)), false)
		return
	}

	for {
		ev, ok := turn.Next(ctx)
		if !ok {
			r.Finalize(ctx, "", false)
			return
		}
		c.routeEvent(ctx, r, ev)
		if ev.Type == runner.EventResult {
			return
		}
	}
}

// routeEvent dispatches one RunnerEvent to the Renderer or the cost
// accumulator. INIT and TOOL_START are ignored here; they exist for
// telemetry only.
func (c *Coordinator) routeEvent(ctx context.Context, r *render.Renderer, ev runner.RunnerEvent) {
	switch ev.Type {
	case runner.EventTextDelta:
		r.PushText(ctx, ev.Text)
	case runner.EventToolUse:
		r.PushToolCall(ctx, formatToolCall(ev.ToolName, ev.ToolInput))
	case runner.EventToolResult:
		if c.verbose {
			r.PushToolResult(ctx, formatToolResult(ev.Text))
		}
	case runner.EventResult:
		c.mu.Lock()
		c.sessionCost = ev.CostUSD // reported cumulative for the session, not incremental
		c.mu.Unlock()
		footer := fmt.Sprintf("⏱ %ds · %d turns", ev.DurationMS/1000, ev.NumTurns)
		r.Finalize(ctx, footer, false)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
