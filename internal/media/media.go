// Package media downloads, tracks, and cleans up chat attachments, and
// composes the text preamble the Turn Coordinator prepends to a prompt
// when photos or documents were sent alongside it.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nevindra/chatbridge/internal/id"
)

// Tracker owns one upload directory and the list of files downloaded into
// it since the last Cleanup.
type Tracker struct {
	uploadDir string

	mu    sync.Mutex
	files []string
}

// New creates a Tracker rooted at dir, creating it if necessary.
func New(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &Tracker{uploadDir: dir}, nil
}

// Save writes data under the upload directory using a collision-resistant
// name derived from name, tracks the resulting path, and returns it.
func (t *Tracker) Save(data []byte, name string) (string, error) {
	if name == "" {
		name = "file"
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	local := filepath.Join(t.uploadDir, fmt.Sprintf("%s_%s%s", base, id.NewID(), ext))

	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write %s: %w", local, err)
	}

	t.mu.Lock()
	t.files = append(t.files, local)
	t.mu.Unlock()
	return local, nil
}

// BuildPrompt composes a single prompt from user text plus a preamble
// line per photo and document path.
func (t *Tracker) BuildPrompt(text string, photoPaths, docPaths []string) string {
	var lines []string
	for _, p := range photoPaths {
		lines = append(lines, fmt.Sprintf("[User sent a photo: %s]", p))
	}
	for _, p := range docPaths {
		lines = append(lines, fmt.Sprintf("[User sent a file: %s]", p))
	}
	if text != "" {
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// Cleanup removes every file tracked since the last Cleanup call.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	files := t.files
	t.files = nil
	t.mu.Unlock()

	for _, f := range files {
		_ = os.Remove(f)
	}
}

// CleanupAll removes the entire upload directory's contents, tracked or
// not. Called once at process start as a best-effort recovery from a
// prior crash.
func (t *Tracker) CleanupAll() {
	t.Cleanup()
	entries, err := os.ReadDir(t.uploadDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(t.uploadDir, e.Name()))
	}
}
