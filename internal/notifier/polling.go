package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// PollInterval is the wait after a failed getUpdates call.
var PollInterval = 5 * time.Second

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
// Only messages from the configured chat are handled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := int64(0)
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(PollInterval):
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		body, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				t.log.Info().Msg("telegram polling stopped")
				return
			}
			t.log.Warn().Err(err).Msg("polling request failed")
			if !wait() {
				return
			}
			continue
		}

		var next int64
		next, err = t.dispatch(ctx, body, offset, handler)
		if err != nil {
			t.log.Warn().Err(err).Msg("decode polling response")
		}
		offset = next
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int64) ([]byte, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=30", t.endpoint("getUpdates"), offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// dispatch runs handler for every text message in a getUpdates response and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, body []byte, offset int64, handler CommandHandler) (int64, error) {
	if !gjson.ValidBytes(body) || !gjson.GetBytes(body, "ok").Bool() {
		return offset, fmt.Errorf("unexpected getUpdates response: %.200s", string(body))
	}
	for _, update := range gjson.GetBytes(body, "result").Array() {
		offset = update.Get("update_id").Int() + 1
		text := strings.TrimSpace(update.Get("message.text").String())
		if text == "" {
			continue
		}
		if chat := update.Get("message.chat.id").String(); t.ChatID != "" && chat != "" && chat != t.ChatID {
			t.log.Warn().Str("chat_id", chat).Msg("ignoring command from unknown chat")
			continue
		}
		t.log.Info().Str("command", text).Msg("received command")
		reply := handler(ctx, text)
		if reply == "" {
			continue
		}
		if err := t.SendChunks(ctx, reply, 1); err != nil {
			t.log.Error().Err(err).Msg("send reply")
		}
	}
	return offset, nil
}
