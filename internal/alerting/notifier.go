package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification wraps a trigger with dispatch context.
type Notification struct {
	Event    TriggerEvent
	At       time.Time
	Channels []string
}

// Notifier delivers triggered alerts somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int64("alert_id", note.Event.AlertID).
		Str("kind", string(note.Event.Kind)).
		Msg("alert delivered (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	ev := note.Event
	builder := strings.Builder{}
	builder.WriteString("[Alert Harga Emas]\n")
	builder.WriteString(ev.Message)
	builder.WriteString("\n")
	if !note.At.IsZero() {
		builder.WriteString(fmt.Sprintf("Waktu: %s\n", note.At.Format("2006-01-02 15:04:05 MST")))
	}
	builder.WriteString(fmt.Sprintf("Tipe: %s | Target: %s | Harga: %s\n", ev.Kind, FormatRupiah(ev.Threshold), FormatRupiah(ev.Price)))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

// MultiNotifier fans a notification out to every wrapped notifier.
// All notifiers are attempted; their errors are joined.
type MultiNotifier []Notifier

// Notify delivers to every notifier in order.
func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes triggers to the log only.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the trigger message.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Int64("alert_id", note.Event.AlertID).
		Str("owner", note.Event.Owner).
		Str("kind", string(note.Event.Kind)).
		Str("price", note.Event.Price.String()).
		Msg(note.Event.Message)
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = MultiNotifier(nil)
	_ Notifier = (*LogNotifier)(nil)
)
