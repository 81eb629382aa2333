package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nevindra/chatbridge"
	"github.com/nevindra/chatbridge/internal/media"
	"github.com/nevindra/chatbridge/runner"
)

type sentMessage struct {
	text string
	kb   bool
}

type fakeFrontend struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	edits    int
	lastText string
}

func (f *fakeFrontend) Poll(ctx context.Context) (<-chan chatbridge.IncomingMessage, error) {
	ch := make(chan chatbridge.IncomingMessage)
	close(ch)
	return ch, nil
}

func (f *fakeFrontend) Send(ctx context.Context, chatID, text string, kb *chatbridge.Keyboard) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{text: text, kb: kb != nil})
	return strconv.Itoa(f.nextID), nil
}

func (f *fakeFrontend) Edit(ctx context.Context, chatID, msgID, text string, kb *chatbridge.Keyboard) error {
	return f.EditFormatted(ctx, chatID, msgID, text, kb)
}

func (f *fakeFrontend) EditFormatted(ctx context.Context, chatID, msgID, text string, kb *chatbridge.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	f.lastText = text
	return nil
}

func (f *fakeFrontend) SendTyping(ctx context.Context, chatID string) error { return nil }

func (f *fakeFrontend) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	return []byte("data"), "file.bin", nil
}

func (f *fakeFrontend) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.text
	}
	return out
}

// fakeRunner embeds a real *runner.Runner driving a scripted stand-in agent
// binary, recording the prompts it was asked to run.
type fakeRunner struct {
	*runner.Runner
	mu        sync.Mutex
	lastCalls []string
}

func (f *fakeRunner) Run(ctx context.Context, prompt string) (*runner.Turn, error) {
	f.mu.Lock()
	f.lastCalls = append(f.lastCalls, prompt)
	f.mu.Unlock()
	return f.Runner.Run(ctx, prompt)
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lastCalls))
	copy(out, f.lastCalls)
	return out
}

// writeAgentScript writes an executable shell script standing in for the
// agent CLI: it reads one stdin line then runs body.
func writeAgentScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.sh")
	script := "#!/bin/sh\nread _line\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func quickResultAgent(t *testing.T) string {
	return writeAgentScript(t, `cat <<'EOF'
{"type":"result","session_id":"s1","duration_ms":1,"num_turns":1,"total_cost_usd":0,"result":"ok"}
EOF
`)
}

func blockingAgent(t *testing.T) string {
	return writeAgentScript(t, "sleep 2\n")
}

func newTestCoordinator(t *testing.T, agentBin string) (*Coordinator, *fakeFrontend, *fakeRunner) {
	t.Helper()
	fe := &fakeFrontend{}
	rn := &fakeRunner{Runner: runner.New(runner.WithAgentBinary(agentBin), runner.WithItemTimeout(2*time.Second))}
	mt, err := media.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := New(fe, rn, mt, "chat1", "user1", WithUpdateInterval(time.Millisecond))
	return c, fe, rn
}

func TestAuthorizedRejectsOtherUsers(t *testing.T) {
	c, _, _ := newTestCoordinator(t, quickResultAgent(t))
	if c.Authorized("someone-else") {
		t.Error("Authorized(someone-else) = true, want false")
	}
	if !c.Authorized("user1") {
		t.Error("Authorized(user1) = false, want true")
	}
}

func TestHandleTextDebouncesIntoOneTurn(t *testing.T) {
	c, _, rn := newTestCoordinator(t, quickResultAgent(t))
	ctx := context.Background()

	c.HandleText(ctx, "first")
	c.HandleText(ctx, "second")

	deadline := time.Now().Add(2 * time.Second)
	for len(rn.calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	calls := rn.calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want exactly 1 debounced call", calls)
	}
	if calls[0] != "first\nsecond" {
		t.Errorf("prompt = %q, want %q", calls[0], "first\nsecond")
	}
}

func TestBusyGateRejectsNewTurn(t *testing.T) {
	c, fe, rn := newTestCoordinator(t, blockingAgent(t))
	ctx := context.Background()

	if _, err := rn.Run(ctx, "already-in-flight"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rn.IsRunning() {
		t.Fatal("IsRunning() = false right after Run")
	}

	c.HandleText(ctx, "hello")
	time.Sleep(700 * time.Millisecond)

	texts := fe.sentTexts()
	found := false
	for _, s := range texts {
		if s == "⚠️ Claude is busy. Use /cancel first." {
			found = true
		}
	}
	if !found {
		t.Errorf("sent = %v, want a busy-gate reply", texts)
	}
}

func TestHandleCancelWhenNothingRunning(t *testing.T) {
	c, fe, _ := newTestCoordinator(t, quickResultAgent(t))
	c.HandleCancel(context.Background())

	texts := fe.sentTexts()
	if len(texts) != 1 || texts[0] != "Nothing running." {
		t.Errorf("sent = %v, want a single 'Nothing running.' reply", texts)
	}
}

func TestHandleClearResetsSessionAndCost(t *testing.T) {
	c, fe, rn := newTestCoordinator(t, quickResultAgent(t))
	ctx := context.Background()

	turn, err := rn.Run(ctx, "seed")
	if err != nil {
		t.Fatal(err)
	}
	for {
		ev, ok := turn.Next(ctx)
		if !ok || ev.Type == runner.EventResult {
			break
		}
	}
	if rn.SessionID() == "" {
		t.Fatal("expected a remembered session id before clearing")
	}
	c.sessionCost = 1.23

	c.HandleClear(ctx)

	if rn.SessionID() != "" {
		t.Error("SessionID() not cleared")
	}
	if c.sessionCost != 0 {
		t.Errorf("sessionCost = %v, want 0", c.sessionCost)
	}
	texts := fe.sentTexts()
	if len(texts) != 1 || texts[0] != "🆕 Session cleared." {
		t.Errorf("sent = %v", texts)
	}
}

func TestHandleCostReportsFourDecimals(t *testing.T) {
	c, fe, _ := newTestCoordinator(t, quickResultAgent(t))
	c.sessionCost = 0.5
	c.HandleCost(context.Background())

	texts := fe.sentTexts()
	if len(texts) != 1 || texts[0] != "💰 Session cost: $0.5000" {
		t.Errorf("sent = %v", texts)
	}
}

func TestHandleModelReportsAndSets(t *testing.T) {
	c, fe, rn := newTestCoordinator(t, quickResultAgent(t))
	ctx := context.Background()

	c.HandleModel(ctx, "")
	if len(fe.sentTexts()) != 1 {
		t.Fatalf("sent = %v", fe.sentTexts())
	}

	c.HandleModel(ctx, "opus")
	if rn.Model() != "opus" {
		t.Errorf("Model() = %q, want opus", rn.Model())
	}
}
