package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Posts events to a Slack "incoming webhook", which must already be configured in the workspace.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
	// Only these kinds are sent. Empty means all kinds.
	Kinds []Kind
}

// Kinds worth a human's attention; badge awards and routine approvals are left out.
var DefaultSlackKinds = []Kind{
	KindContentModerated,
	KindContentReported,
	KindPenaltyApplied,
	KindAccountFlagged,
}

func (n *SlackNotifier) Notify(ctx context.Context, evt Event) error {
	if len(n.Kinds) > 0 && !slices.Contains(n.Kinds, evt.Kind) {
		return nil
	}
	if evt.Kind == KindContentModerated && evt.Status == "APPROVED" {
		return nil
	}
	return n.send(ctx, "⚠️ Moderation: "+evt.Text())
}

func (n *SlackNotifier) send(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
