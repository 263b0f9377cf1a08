// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/session"
)

// MaxMessageRunes is the longest text Telegram accepts in one message.
const MaxMessageRunes = 4096

// ErrBatchTooLarge is returned when a media batch exceeds the per-send limit.
var ErrBatchTooLarge = fmt.Errorf("media batch exceeds %d items", aggregate.MaxBatchSize)

// API is the part of *tgbotapi.BotAPI the transport uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetFile(c tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Transport sends messages through the Bot API.
type Transport struct {
	api    API
	logger *slog.Logger
}

// NewTransport wraps api.
func NewTransport(api API) *Transport {
	return &Transport{api: api, logger: slog.Default()}
}

// Connect logs in with token and returns the bot handle.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return bot, nil
}

// SendText sends text as plain messages, split when it is too long.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitText(text, MaxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

// SendMarkdown sends text with Markdown formatting. Generated text often has
// unbalanced markup, so a part Telegram refuses to parse is resent as plain
// text.
func (t *Transport) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitText(text, MaxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		_, err := t.api.Send(msg)
		if err == nil {
			continue
		}
		if !isParseError(err) {
			return fmt.Errorf("sending message: %w", err)
		}
		t.logger.Debug("markdown rejected, resending as plain text", "chat_id", chatID, "error", err)
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

// SendMediaBatch sends items as one media group. Callers chunk beforehand.
func (t *Transport) SendMediaBatch(ctx context.Context, chatID int64, items []aggregate.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	if len(items) > aggregate.MaxBatchSize {
		return ErrBatchTooLarge
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	media := make([]interface{}, 0, len(items))
	for _, it := range items {
		p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(it.Ref))
		p.Caption = it.Caption
		media = append(media, p)
	}
	if _, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return fmt.Errorf("sending media group: %w", err)
	}
	return nil
}

// ResolveAttachment confirms a photo handle with Telegram and returns the
// file id to store.
func (t *Transport) ResolveAttachment(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := t.api.GetFile(tgbotapi.FileConfig{FileID: ref})
	if err != nil {
		return "", fmt.Errorf("resolving file %s: %w", ref, err)
	}
	if f.FileID == "" {
		return ref, nil
	}
	return f.FileID, nil
}

// RegisterCommands publishes the command menu.
func (t *Transport) RegisterCommands(ctx context.Context, cmds []session.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	botCmds := make([]tgbotapi.BotCommand, len(cmds))
	for i, c := range cmds {
		botCmds[i] = tgbotapi.BotCommand{Command: c.Name, Description: c.Description}
	}
	if _, err := t.api.Request(tgbotapi.NewSetMyCommands(botCmds...)); err != nil {
		return fmt.Errorf("setting bot commands: %w", err)
	}
	return nil
}

func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "parse")
	}
	var valErr tgbotapi.Error
	if errors.As(err, &valErr) {
		return valErr.Code == 400 && strings.Contains(valErr.Message, "parse")
	}
	return false
}

// SplitText breaks s into parts of at most n runes, preferring to cut after
// a newline.
func SplitText(s string, n int) []string {
	if utf8.RuneCountInString(s) <= n {
		return []string{s}
	}
	var parts []string
	for utf8.RuneCountInString(s) > n {
		cut := byteOffset(s, n)
		if nl := strings.LastIndexByte(s[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// byteOffset returns the byte index of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
