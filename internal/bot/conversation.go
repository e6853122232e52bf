// Package bot runs the messenger submission flow: a per-user state
// machine that collects a title, content, an optional category and photo,
// and hands the result to intake once the user confirms.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/media"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Commands understood in any state.
const (
	CmdStart  = "/start"
	CmdNew    = "/new"
	CmdCancel = "/cancel"
	CmdSkip   = "/skip"
)

const (
	buttonSend   = "send"
	buttonCancel = "cancel"
)

// Update is one incoming message.
type Update struct {
	UpdateID int64
	UserID   int64
	ChatID   int64
	Handle   string
	Text     string
	Photo    *PhotoRef
}

// PhotoRef points at a photo held by the messenger.
type PhotoRef struct {
	FileID string
	Size   int64
}

// Reply is one outgoing message. Buttons are offered as a one-time
// keyboard.
type Reply struct {
	ChatID  int64
	Text    string
	Buttons []string
}

// Download is an opened photo.
type Download struct {
	Body        io.ReadCloser
	Name        string
	Size        int64
	ContentType string
}

type Submitter interface {
	Submit(ctx context.Context, in intake.SubmissionInput) (string, error)
}

type CategoryLister interface {
	Categories(ctx context.Context) ([]types.Category, error)
}

type PhotoDownloader interface {
	DownloadPhoto(ctx context.Context, fileID string) (*Download, error)
}

// Conversation drives the state machine. It keeps no state of its own:
// every transition is written to the SessionStore.
type Conversation struct {
	sessions   SessionStore
	submitter  Submitter
	categories CategoryLister
	photos     media.PhotoStore
	downloader PhotoDownloader
	now        func() time.Time
	logger     *slog.Logger
}

// NewConversation wires the flow. photos and downloader may be nil, in
// which case only /skip is accepted at the photo step.
func NewConversation(
	sessions SessionStore,
	submitter Submitter,
	categories CategoryLister,
	photos media.PhotoStore,
	downloader PhotoDownloader,
	logger *slog.Logger,
) *Conversation {
	return &Conversation{
		sessions:   sessions,
		submitter:  submitter,
		categories: categories,
		photos:     photos,
		downloader: downloader,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "bot"),
	}
}

// Handle applies u to the sender's session and returns the replies. On
// error the returned replies are still meant to be sent.
func (c *Conversation) Handle(ctx context.Context, u Update) ([]Reply, error) {
	text := strings.TrimSpace(u.Text)
	cmd := command(text)

	switch cmd {
	case CmdStart:
		return c.reply(u, "Hi! I collect news for the portal.\nSend /new to suggest a story."), nil
	case CmdNew:
		sess := &Session{UserID: u.UserID, ChatID: u.ChatID, Handle: u.Handle}
		return c.transition(ctx, u, sess, StateAwaitingTitle, "Send the headline of your story.")
	case CmdCancel:
		return c.cancel(ctx, u)
	}

	sess, found, err := c.sessions.Load(ctx, u.UserID)
	if err != nil {
		return c.reply(u, "Something went wrong, please try again later."), err
	}
	if !found || sess.State == StateTerminal {
		return c.reply(u, "Send /new to suggest a story."), nil
	}
	sess.ChatID = u.ChatID
	if u.Handle != "" {
		sess.Handle = u.Handle
	}

	switch sess.State {
	case StateAwaitingTitle:
		return c.onTitle(ctx, u, sess, text)
	case StateAwaitingContent:
		return c.onContent(ctx, u, sess, text)
	case StateAwaitingCategory:
		return c.onCategory(ctx, u, sess, text, cmd == CmdSkip)
	case StateAwaitingPhoto:
		return c.onPhoto(ctx, u, sess, cmd == CmdSkip)
	case StateAwaitingConfirmation:
		return c.onConfirm(ctx, u, sess, text)
	default:
		c.logger.Warn("unknown session state, restarting", "user", u.UserID, "state", sess.State)
		return c.transition(ctx, u, &Session{UserID: u.UserID, ChatID: u.ChatID, Handle: sess.Handle}, StateAwaitingTitle,
			"Let's start over. Send the headline of your story.")
	}
}

func (c *Conversation) onTitle(ctx context.Context, u Update, sess *Session, text string) ([]Reply, error) {
	switch {
	case text == "" || strings.HasPrefix(text, "/"):
		return c.reply(u, "Send the headline as text."), nil
	case utf8.RuneCountInString(text) > types.MaxTitleLength:
		return c.reply(u, fmt.Sprintf("The headline is too long, keep it under %d characters.", types.MaxTitleLength)), nil
	}
	sess.Title = text
	return c.transition(ctx, u, sess, StateAwaitingContent, "Headline saved. Now send the text of the story.")
}

func (c *Conversation) onContent(ctx context.Context, u Update, sess *Session, text string) ([]Reply, error) {
	if text == "" || strings.HasPrefix(text, "/") {
		return c.reply(u, "Send the text of the story."), nil
	}
	sess.Content = text

	cats, err := c.categories.Categories(ctx)
	if err != nil {
		return c.reply(u, "Something went wrong, please try again later."), err
	}
	buttons := make([]string, 0, len(cats)+1)
	for _, cat := range cats {
		buttons = append(buttons, cat.Name)
	}
	buttons = append(buttons, CmdSkip)

	replies, err := c.transition(ctx, u, sess, StateAwaitingCategory, "Text saved. Pick a category or send /skip.")
	if len(replies) == 1 && err == nil {
		replies[0].Buttons = buttons
	}
	return replies, err
}

func (c *Conversation) onCategory(ctx context.Context, u Update, sess *Session, text string, skip bool) ([]Reply, error) {
	if !skip {
		cats, err := c.categories.Categories(ctx)
		if err != nil {
			return c.reply(u, "Something went wrong, please try again later."), err
		}
		cat, ok := matchCategory(cats, text)
		if !ok {
			return c.reply(u, "Unknown category. Pick one from the list or send /skip."), nil
		}
		sess.CategoryID = &cat.ID
	} else {
		sess.CategoryID = nil
	}
	return c.transition(ctx, u, sess, StateAwaitingPhoto, "Send a photo for the story or /skip.")
}

func (c *Conversation) onPhoto(ctx context.Context, u Update, sess *Session, skip bool) ([]Reply, error) {
	if !skip {
		if u.Photo == nil {
			return c.reply(u, "Send a photo or /skip."), nil
		}
		if c.photos == nil || c.downloader == nil {
			return c.reply(u, "Photos are not accepted right now, send /skip."), nil
		}
		photoURL, err := c.savePhoto(ctx, u.Photo)
		if err != nil {
			c.logger.Warn("photo upload failed", "user", u.UserID, "error", err)
			if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrNotImage) {
				return c.reply(u, "This photo can't be used. Send another one or /skip."), nil
			}
			return c.reply(u, "Could not save the photo. Send it again or /skip."), err
		}
		sess.PhotoURL = photoURL
	} else {
		sess.PhotoURL = ""
	}

	replies, err := c.transition(ctx, u, sess, StateAwaitingConfirmation, preview(sess))
	if len(replies) == 1 && err == nil {
		replies[0].Buttons = []string{buttonSend, buttonCancel}
	}
	return replies, err
}

func (c *Conversation) onConfirm(ctx context.Context, u Update, sess *Session, text string) ([]Reply, error) {
	switch strings.ToLower(strings.TrimPrefix(text, "/")) {
	case buttonCancel:
		return c.cancel(ctx, u)
	case buttonSend, "yes":
	default:
		return []Reply{{ChatID: u.ChatID, Text: "Send the story to moderation?", Buttons: []string{buttonSend, buttonCancel}}}, nil
	}

	author := ""
	if sess.Handle != "" {
		author = "telegram: @" + sess.Handle
	}
	id, err := c.submitter.Submit(ctx, intake.SubmissionInput{
		Title:          sess.Title,
		Content:        sess.Content,
		ImageURL:       sess.PhotoURL,
		CategoryID:     sess.CategoryID,
		ExternalID:     sess.UserID,
		ExternalHandle: sess.Handle,
		Author:         author,
	})

	var verrs intake.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		if verrs["title"] == intake.CodeDuplicate {
			sess.Title = ""
			return c.transition(ctx, u, sess, StateAwaitingTitle,
				"A story with this headline already exists. Send a different headline.")
		}
		if verrs["image_url"] != "" {
			sess.PhotoURL = ""
			return c.transition(ctx, u, sess, StateAwaitingPhoto, "The photo was rejected. Send another one or /skip.")
		}
		c.logger.Info("submission rejected", "user", u.UserID, "error", err)
		return c.finish(ctx, u, "The story could not be accepted: "+verrs.Error()+"\nSend /new to start again.")
	case err != nil:
		return c.reply(u, "Could not send the story right now. Press send to try again."), err
	}

	c.logger.Info("submission received", "user", u.UserID, "news_id", id)
	return c.finish(ctx, u, fmt.Sprintf("Thanks! Story #%s was sent to moderation.\nSend /new to suggest another one.", id))
}

func (c *Conversation) cancel(ctx context.Context, u Update) ([]Reply, error) {
	return c.finish(ctx, u, "Cancelled. Send /new to start again.")
}

// finish moves the session to Terminal, which is not stored.
func (c *Conversation) finish(ctx context.Context, u Update, text string) ([]Reply, error) {
	if err := c.sessions.Delete(ctx, u.UserID); err != nil {
		return c.reply(u, text), fmt.Errorf("delete session %d: %w", u.UserID, err)
	}
	c.logger.Debug("session finished", "user", u.UserID, "state", StateTerminal)
	return c.reply(u, text), nil
}

func (c *Conversation) transition(ctx context.Context, u Update, sess *Session, to State, text string) ([]Reply, error) {
	from := sess.State
	sess.State = to
	sess.UpdatedAt = c.now()
	if err := c.sessions.Save(ctx, sess); err != nil {
		sess.State = from
		return c.reply(u, "Something went wrong, please try again later."), err
	}
	c.logger.Debug("session transition", "user", u.UserID, "from", from, "to", to)
	return c.reply(u, text), nil
}

func (c *Conversation) savePhoto(ctx context.Context, ref *PhotoRef) (string, error) {
	dl, err := c.downloader.DownloadPhoto(ctx, ref.FileID)
	if err != nil {
		return "", err
	}
	defer dl.Body.Close()

	size := dl.Size
	if size <= 0 {
		size = ref.Size
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return c.photos.Save(ctx, dl.Name, dl.Body, size, contentType)
}

func (c *Conversation) reply(u Update, text string) []Reply {
	return []Reply{{ChatID: u.ChatID, Text: text}}
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	// "/new@portal_bot" in group chats
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func matchCategory(cats []types.Category, text string) (types.Category, bool) {
	text = strings.TrimSpace(text)
	if id, err := strconv.Atoi(text); err == nil {
		for _, cat := range cats {
			if cat.ID == id {
				return cat, true
			}
		}
		return types.Category{}, false
	}
	for _, cat := range cats {
		if strings.EqualFold(cat.Name, text) {
			return cat, true
		}
	}
	return types.Category{}, false
}

func preview(s *Session) string {
	var b strings.Builder
	b.WriteString("Preview:\n\n")
	b.WriteString(s.Title)
	b.WriteString("\n\n")
	content := s.Content
	if utf8.RuneCountInString(content) > 100 {
		content = types.TruncateRunes(content, 100) + "..."
	}
	b.WriteString(content)
	if s.PhotoURL != "" {
		b.WriteString("\n\nPhoto attached.")
	}
	b.WriteString("\n\nSend the story to moderation?")
	return b.String()
}
