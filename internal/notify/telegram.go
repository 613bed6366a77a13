// Package notify sends pipeline run notifications via the Telegram Bot API.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a stage failure notification.
func (c *Client) SendError(stage string, stageErr error) error {
	text := fmt.Sprintf("⚠️ *Pipeline stage %s failed*\n`%s`",
		escapeMarkdownV2(stage), escapeMarkdownV2(stageErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendSummary sends a dataset run completion notification.
func (c *Client) SendSummary(runID string, emitted, skipped, chunks int, duration time.Duration) error {
	text := fmt.Sprintf("✅ *Dataset run complete*\n"+
		"🆔 `%s`\n"+
		"📦 %s chunks\n"+
		"📈 %s records emitted\n"+
		"🚫 %s skipped\n"+
		"⏱ %s",
		escapeMarkdownV2(runID),
		escapeMarkdownV2(strconv.Itoa(chunks)),
		escapeMarkdownV2(strconv.Itoa(emitted)),
		escapeMarkdownV2(strconv.Itoa(skipped)),
		escapeMarkdownV2(duration.Round(time.Second).String()),
	)
	return c.sendMarkdownV2(text)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
