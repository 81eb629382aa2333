// Package telegram implements chatbridge.Frontend against the Telegram Bot
// API: long-polling for updates, HTML-formatted sends and edits with an
// inline cancel keyboard, and two-step file download.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nevindra/chatbridge"
)

const (
	maxMessageLength = 4096
	apiBaseURL       = "https://api.telegram.org/bot"
)

// Bot implements chatbridge.Frontend for Telegram.
type Bot struct {
	token      string
	httpClient *http.Client
}

var _ chatbridge.Frontend = (*Bot)(nil)

// NewBot creates a Bot with the given bot token.
func NewBot(token string) *Bot {
	return &Bot{
		token:      token,
		httpClient: &http.Client{Timeout: 35 * time.Second},
	}
}

// Poll starts long-polling for updates and returns a channel of incoming
// messages. The channel closes when ctx is cancelled.
func (b *Bot) Poll(ctx context.Context) (<-chan chatbridge.IncomingMessage, error) {
	ch := make(chan chatbridge.IncomingMessage)
	go b.pollLoop(ctx, ch)
	return ch, nil
}

func (b *Bot) pollLoop(ctx context.Context, ch chan<- chatbridge.IncomingMessage) {
	defer close(ch)
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("telegram: poll error: %v", err)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}

			var msg chatbridge.IncomingMessage
			switch {
			case u.CallbackQuery != nil:
				msg = mapCallbackToIncoming(u.CallbackQuery)
			case u.Message != nil:
				msg = mapToIncoming(u.Message)
			default:
				continue
			}

			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         30,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var result []Update
	if err := b.callAPIWithCtx(ctx, "getUpdates", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Send posts text as HTML, splitting across Telegram's 4096-char limit if
// necessary, and returns the last chunk's message id.
func (b *Bot) Send(ctx context.Context, chatID, text string, kb *chatbridge.Keyboard) (string, error) {
	chunks := splitMessage(text)

	var lastMsgID string
	for i, chunk := range chunks {
		body := map[string]any{
			"chat_id":    chatID,
			"text":       MarkdownToHTML(chunk),
			"parse_mode": "HTML",
		}
		if i == len(chunks)-1 {
			addKeyboard(body, kb)
		}
		var result Message
		if err := b.callAPIWithCtx(ctx, "sendMessage", body, &result); err != nil {
			return "", err
		}
		lastMsgID = strconv.FormatInt(result.MessageID, 10)
	}

	return lastMsgID, nil
}

// Edit replaces a message's text as plain text. A nil keyboard removes any
// keyboard the message currently has. "message is not modified" is
// swallowed rather than surfaced as an error.
func (b *Bot) Edit(ctx context.Context, chatID, msgID, text string, kb *chatbridge.Keyboard) error {
	msgIDInt, err := strconv.ParseInt(msgID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid message ID %q: %w", msgID, err)
	}
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": msgIDInt,
		"text":       text,
	}
	addKeyboard(body, kb)

	err = b.callAPIWithCtx(ctx, "editMessageText", body, nil)
	if err != nil && isNotModifiedError(err) {
		return nil
	}
	return err
}

// EditFormatted replaces a message's text, rendering Markdown to HTML
// first. Falls back to a plain-text Edit if Telegram rejects the HTML.
func (b *Bot) EditFormatted(ctx context.Context, chatID, msgID, text string, kb *chatbridge.Keyboard) error {
	msgIDInt, err := strconv.ParseInt(msgID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid message ID %q: %w", msgID, err)
	}

	body := map[string]any{
		"chat_id":    chatID,
		"message_id": msgIDInt,
		"text":       MarkdownToHTML(text),
		"parse_mode": "HTML",
	}
	addKeyboard(body, kb)

	err = b.callAPIWithCtx(ctx, "editMessageText", body, nil)
	if err == nil || isNotModifiedError(err) {
		return nil
	}

	return b.Edit(ctx, chatID, msgID, text, kb)
}

// SendTyping shows a typing indicator in the chat.
func (b *Bot) SendTyping(ctx context.Context, chatID string) error {
	body := map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	}
	return b.callAPIWithCtx(ctx, "sendChatAction", body, nil)
}

// DownloadFile fetches a file's bytes and its Telegram-assigned name via
// the two-step getFile-then-GET dance.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	var file File
	if err := b.callAPIWithCtx(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return nil, "", err
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("telegram: empty file_path for file_id %s", fileID)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: create download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("telegram: download file HTTP %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: read file body: %w", err)
	}

	parts := strings.Split(file.FilePath, "/")
	return data, parts[len(parts)-1], nil
}

// AnswerCallback acknowledges a callback query so Telegram stops showing
// the button's loading spinner. Not part of chatbridge.Frontend since
// only the Telegram callback-button flow needs it.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID string) error {
	return b.callAPIWithCtx(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	}, nil)
}

func addKeyboard(body map[string]any, kb *chatbridge.Keyboard) {
	if kb == nil {
		body["reply_markup"] = map[string]any{"inline_keyboard": [][]any{}}
		return
	}
	row := make([]map[string]string, len(kb.Buttons))
	for i, btn := range kb.Buttons {
		row[i] = map[string]string{"text": btn.Label, "callback_data": btn.Callback}
	}
	body["reply_markup"] = map[string]any{"inline_keyboard": [][]map[string]string{row}}
}

func (b *Bot) callAPIWithCtx(ctx context.Context, method string, reqBody, result any) error {
	url := apiBaseURL + b.token + "/" + method

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("telegram: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description,omitempty"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("telegram: decode response: %w (body: %s)", err, string(respBody))
	}

	if !envelope.OK {
		return &apiError{Code: envelope.ErrorCode, Description: envelope.Description}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram: decode result: %w", err)
		}
	}

	return nil
}

type apiError struct {
	Code        int
	Description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

func isNotModifiedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func mapToIncoming(m *Message) chatbridge.IncomingMessage {
	msg := chatbridge.IncomingMessage{
		ID:     strconv.FormatInt(m.MessageID, 10),
		ChatID: strconv.FormatInt(m.Chat.ID, 10),
		Text:   m.Text,
	}

	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
	}

	if m.Caption != "" {
		msg.Caption = m.Caption
		if msg.Text == "" {
			msg.Text = m.Caption
		}
	}

	if m.Document != nil {
		msg.Document = &chatbridge.FileInfo{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
			FileSize: m.Document.FileSize,
		}
	}

	if len(m.Photo) > 0 {
		msg.Photos = make([]chatbridge.FileInfo, len(m.Photo))
		for i, p := range m.Photo {
			msg.Photos[i] = chatbridge.FileInfo{FileID: p.FileID, FileSize: p.FileSize}
		}
	}

	if m.Voice != nil {
		msg.Voice = &chatbridge.FileInfo{
			FileID:   m.Voice.FileID,
			MimeType: m.Voice.MimeType,
			FileSize: m.Voice.FileSize,
		}
	}

	if m.ReplyToMessage != nil {
		msg.ReplyToMessage = strconv.FormatInt(m.ReplyToMessage.MessageID, 10)
	}

	return msg
}

func mapCallbackToIncoming(cb *CallbackQuery) chatbridge.IncomingMessage {
	msg := chatbridge.IncomingMessage{
		ID:           cb.ID,
		UserID:       strconv.FormatInt(cb.From.ID, 10),
		CallbackData: cb.Data,
	}
	if cb.Message != nil {
		msg.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
		msg.CallbackMsgID = strconv.FormatInt(cb.Message.MessageID, 10)
	}
	return msg
}

// splitMessage splits text into chunks that fit within Telegram's
// 4096-char limit, preferring to break at the last newline.
func splitMessage(text string) []string {
	if len(text) <= maxMessageLength {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxMessageLength {
			chunks = append(chunks, remaining)
			break
		}

		head := remaining[:maxMessageLength]
		splitPos := strings.LastIndex(head, "\n")
		if splitPos == -1 {
			splitPos = maxMessageLength
		} else {
			splitPos++
		}

		chunks = append(chunks, remaining[:splitPos])
		remaining = remaining[splitPos:]
	}

	return chunks
}
