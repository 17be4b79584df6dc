package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Bot talks to the Telegram bot API. It is both the delivery channel for
// curated tweets and the inbound surface for feedback callbacks.
type Bot struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ports.Messenger = (*Bot)(nil)

// NewBot wires the bot from configuration. The limiter spaces outbound
// messages so digests never trip Telegram's per-chat flood control.
func NewBot(cfg config.TelegramConfig, logger *slog.Logger) *Bot {
	delay := cfg.MessageDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Bot{
		apiBase: defaultAPIBase,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: 65 * time.Second},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  logger,
	}
}

// SendTweet delivers one curated tweet with its vote keyboard and returns
// the chat message id used to correlate later feedback.
func (b *Bot) SendTweet(ctx context.Context, tweet domain.ScoredTweet) (int64, error) {
	msg, err := b.sendMessage(ctx, formatTweet(tweet), voteKeyboard(tweet))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendDigestHeader announces the size of the incoming digest.
func (b *Bot) SendDigestHeader(ctx context.Context, count int) error {
	_, err := b.sendMessage(ctx, formatDigestHeader(count), nil)
	return err
}

// SendErrorNotification reports a failed run to the chat.
func (b *Bot) SendErrorNotification(ctx context.Context, message string) error {
	_, err := b.sendMessage(ctx, "⚠️ Curation run failed: "+escapeHTML(message), nil)
	return err
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

func (b *Bot) sendMessage(ctx context.Context, text string, keyboard *inlineKeyboard) (*apiMessage, error) {
	if b.token == "" || b.chatID == "" {
		return nil, fmt.Errorf("telegram bot misconfigured")
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"chat_id":                  b.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	var msg apiMessage
	if err := b.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// editReplyMarkup swaps a sent message's inline keyboard in place.
func (b *Bot) editReplyMarkup(ctx context.Context, messageID int64, keyboard *inlineKeyboard) error {
	payload := map[string]any{
		"chat_id":    b.chatID,
		"message_id": messageID,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	return b.call(ctx, "editMessageReplyMarkup", payload, nil)
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return b.call(ctx, "answerCallbackQuery", payload, nil)
}

func (b *Bot) call(ctx context.Context, method string, payload map[string]any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s failed: %s", method, strings.TrimSpace(envelope.Description))
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
