package chatbridge

import "context"

// Frontend abstracts the messaging channel the bridge talks to. The only
// implementation in this repo is frontend/telegram.Bot, but the Coordinator
// and Renderer depend on this interface, not on Telegram directly.
type Frontend interface {
	// Poll returns a channel of incoming messages. It must close the
	// channel when ctx is cancelled.
	Poll(ctx context.Context) (<-chan IncomingMessage, error)

	// Send posts a new message with HTML formatting and an optional
	// keyboard, returning the new message's id for later editing.
	Send(ctx context.Context, chatID string, text string, kb *Keyboard) (string, error)

	// Edit replaces a message's text with plain text (no parse mode).
	// A nil keyboard removes any keyboard the message currently has.
	Edit(ctx context.Context, chatID, msgID, text string, kb *Keyboard) error

	// EditFormatted replaces a message's text, rendering Markdown to the
	// platform's HTML dialect first. Falls back to a plain-text Edit if
	// the platform rejects the HTML.
	EditFormatted(ctx context.Context, chatID, msgID, text string, kb *Keyboard) error

	// SendTyping shows a typing/working indicator in the chat.
	SendTyping(ctx context.Context, chatID string) error

	// DownloadFile fetches a previously-referenced file's bytes and name.
	DownloadFile(ctx context.Context, fileID string) (data []byte, filename string, err error)
}

// IncomingMessage is a single inbound event from the Frontend: a text
// message, a media message, a command, or a cancel-button press.
type IncomingMessage struct {
	ID             string
	ChatID         string
	UserID         string
	Text           string
	Caption        string
	Document       *FileInfo
	Photos         []FileInfo
	Voice          *FileInfo
	CallbackData   string
	CallbackMsgID  string
	ReplyToMessage string
}

// FileInfo describes a downloadable attachment referenced by a message.
type FileInfo struct {
	FileID   string
	FileName string
	MimeType string
	FileSize int64
}

// Keyboard is a minimal inline-keyboard descriptor: one row of buttons.
type Keyboard struct {
	Buttons []Button
}

// Button is a single inline-keyboard button with an opaque callback
// payload delivered back as IncomingMessage.CallbackData.
type Button struct {
	Label    string
	Callback string
}

// CancelCallbackData is the payload carried by the Renderer's cancel
// button; the Coordinator treats a callback with this payload exactly like
// the /cancel command.
const CancelCallbackData = "claude_cancel"

// CancelKeyboard returns the single-button keyboard the Renderer attaches
// to the active tail message of a turn.
func CancelKeyboard() *Keyboard {
	return &Keyboard{Buttons: []Button{{Label: "🛑 Cancel", Callback: CancelCallbackData}}}
}
