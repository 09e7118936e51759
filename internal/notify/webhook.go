package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/alert"
)

// Notifier posts triggered alerts to a webhook URL as JSON. Delivery
// is at-most-once: a failed post is reported to the caller and
// dropped, never retried, so a dead endpoint cannot back up the
// alert path.
type Notifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

type alertPayload struct {
	AlertID     string  `json:"alert_id"`
	Character   string  `json:"character"`
	RuleKey     string  `json:"rule_key"`
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	PipelineKey string  `json:"pipeline_key"`
	TriggeredAt string  `json:"triggered_at"`
}

// NewNotifier creates a notifier for the given webhook URL. An empty
// URL produces a notifier that silently does nothing.
func NewNotifier(url string, timeout time.Duration, logger zerolog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		log: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Notify posts one alert event to the webhook.
func (n *Notifier) Notify(ctx context.Context, ev alert.Event) error {
	if !n.Enabled() {
		return nil
	}

	body, err := sonic.Marshal(alertPayload{
		AlertID:     ev.ID,
		Character:   ev.Character,
		RuleKey:     ev.RuleKey,
		Label:       ev.Label,
		Score:       ev.Score,
		PipelineKey: ev.PipelineKey,
		TriggeredAt: ev.At.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.log.Debug().
		Str("alert_id", ev.ID).
		Str("character", ev.Character).
		Msg("Alert webhook delivered")
	return nil
}
