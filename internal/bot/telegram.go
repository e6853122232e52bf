package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

// Telegram talks to the Bot API over plain HTTPS: long polling for
// updates, sendMessage for replies and getFile for photos.
type Telegram struct {
	base        string
	token       string
	pollTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger
}

func NewTelegram(cfg config.BotConfig, logger *slog.Logger) *Telegram {
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 30 * time.Second
	}
	return &Telegram{
		base:        strings.TrimRight(cfg.APIBase, "/"),
		token:       cfg.Token,
		pollTimeout: poll,
		// long polls hold the connection for pollTimeout
		client: &http.Client{Timeout: poll + 10*time.Second},
		logger: logger.With("component", "telegram"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	Text    string        `json:"text"`
	Caption string        `json:"caption"`
	Photo   []tgPhotoSize `json:"photo"`
}

type tgPhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
}

type tgFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// call posts params as JSON to method and decodes the result into out.
func (t *Telegram) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.base, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: new request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// never log endpoint: it carries the token
		return fmt.Errorf("telegram %s: %w", method, redact(err, t.token))
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("telegram %s: decode (status %d): %w", method, resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: %d %s", method, api.ErrorCode, api.Description)
	}
	if out != nil {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for updates after offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64) ([]Update, int64, error) {
	var raw []tgUpdate
	err := t.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(t.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}, &raw)
	if err != nil {
		return nil, offset, err
	}

	updates := make([]Update, 0, len(raw))
	next := offset
	for _, r := range raw {
		if r.UpdateID >= next {
			next = r.UpdateID + 1
		}
		if u, ok := convertUpdate(r); ok {
			updates = append(updates, u)
		}
	}
	return updates, next, nil
}

func convertUpdate(r tgUpdate) (Update, bool) {
	m := r.Message
	if m == nil || m.From == nil {
		return Update{}, false
	}
	u := Update{
		UpdateID: r.UpdateID,
		UserID:   m.From.ID,
		ChatID:   m.Chat.ID,
		Handle:   m.From.Username,
		Text:     m.Text,
	}
	if len(m.Photo) > 0 {
		// sizes are ordered smallest first
		largest := m.Photo[len(m.Photo)-1]
		u.Photo = &PhotoRef{FileID: largest.FileID, Size: largest.FileSize}
		if u.Text == "" {
			u.Text = m.Caption
		}
	}
	return u, true
}

// Send delivers one reply.
func (t *Telegram) Send(ctx context.Context, r Reply) error {
	params := map[string]any{
		"chat_id": r.ChatID,
		"text":    r.Text,
	}
	if len(r.Buttons) > 0 {
		rows := make([][]map[string]string, 0, len(r.Buttons))
		for _, b := range r.Buttons {
			rows = append(rows, []map[string]string{{"text": b}})
		}
		params["reply_markup"] = map[string]any{
			"keyboard":          rows,
			"one_time_keyboard": true,
			"resize_keyboard":   true,
		}
	} else {
		params["reply_markup"] = map[string]any{"remove_keyboard": true}
	}
	return t.call(ctx, "sendMessage", params, nil)
}

// DownloadPhoto resolves fileID with getFile and opens the file.
func (t *Telegram) DownloadPhoto(ctx context.Context, fileID string) (*Download, error) {
	var f tgFile
	if err := t.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: no file_path for %s", fileID)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", t.base, t.token, strings.TrimLeft(f.FilePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram file: new request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file: %w", redact(err, t.token))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram file: status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size <= 0 {
		size = f.FileSize
	}
	return &Download{
		Body:        resp.Body,
		Name:        path.Base(f.FilePath),
		Size:        size,
		ContentType: photoContentType(resp.Header.Get("Content-Type"), f.FilePath),
	}, nil
}

// Telegram serves files as application/octet-stream.
func photoContentType(header, filePath string) string {
	if strings.HasPrefix(header, "image/") {
		return header
	}
	switch strings.ToLower(path.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func redact(err error, token string) error {
	var ue *url.Error
	if token == "" || !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: strings.ReplaceAll(ue.URL, token, "<token>"), Err: ue.Err}
}

// Bot feeds Telegram updates through a Conversation.
type Bot struct {
	api    *Telegram
	conv   *Conversation
	logger *slog.Logger
}

func NewBot(api *Telegram, conv *Conversation, logger *slog.Logger) *Bot {
	return &Bot{api: api, conv: conv, logger: logger.With("component", "bot_runner")}
}

// Run polls until ctx is done. Each update is handled to completion
// before the next poll.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot polling started")
	var offset int64
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			b.logger.Info("bot polling stopped")
			return nil
		}

		updates, next, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Warn("getUpdates failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		backoff = time.Second
		offset = next

		for _, u := range updates {
			b.handle(ctx, u)
		}
	}
}

func (b *Bot) handle(ctx context.Context, u Update) {
	replies, err := b.conv.Handle(ctx, u)
	if err != nil {
		b.logger.Error("update failed", "update", u.UpdateID, "user", u.UserID, "error", err)
	}
	for _, r := range replies {
		if err := b.api.Send(ctx, r); err != nil {
			b.logger.Warn("send failed", "chat", strconv.FormatInt(r.ChatID, 10), "error", err)
		}
	}
}
