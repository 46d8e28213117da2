// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notify delivers transition notifications to a Discord channel
// through an incoming webhook. Delivery is best-effort: a notification that
// cannot be sent after retries is logged and dropped, never allowed to
// stall the reconciliation loop behind it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/track"
)

const (
	sendTimeout  = 15 * time.Second
	sendAttempts = 3
)

// DiscordNotifier posts webhook messages for item transitions and new
// releases.
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

// NewDiscordNotifier creates a notifier posting to the given webhook URL.
// A nil logger falls back to slog.Default().
func NewDiscordNotifier(webhookURL string, logger *slog.Logger) *DiscordNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: sendTimeout},
		log:        logger,
	}
}

// webhookPayload is the subset of the Discord webhook body the notifier
// uses.
type webhookPayload struct {
	Content string `json:"content"`
}

// TransitionMessage renders the channel message for one transition:
//
//	**Manta** **PR merged**: Bump runtime version https://github.com/...
func TransitionMessage(event track.TransitionEvent) string {
	kind := "issue"
	if event.Category == github.CategoryPull {
		kind = "PR"
	}
	return fmt.Sprintf("**%s** **%s %s**: %s %s",
		event.Repo, kind, event.To, event.Item.Title, event.Item.URL)
}

// ReleaseMessage renders the channel message for a new release.
func ReleaseMessage(repo string, rel *github.Release) string {
	name := rel.Name
	if name == "" {
		name = rel.TagName
	}
	return fmt.Sprintf("**%s** **new release**: %s %s", repo, name, rel.URL)
}

// NotifyTransition posts one transition to the webhook.
func (n *DiscordNotifier) NotifyTransition(ctx context.Context, event track.TransitionEvent) error {
	return n.post(ctx, TransitionMessage(event))
}

// NotifyRelease posts a new-release announcement to the webhook.
func (n *DiscordNotifier) NotifyRelease(ctx context.Context, repo string, rel *github.Release) error {
	return n.post(ctx, ReleaseMessage(repo, rel))
}

// Run consumes transition events from a channel until it is closed or the
// context is canceled. Failed deliveries are logged and dropped.
func (n *DiscordNotifier) Run(ctx context.Context, events <-chan track.TransitionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := n.NotifyTransition(ctx, event); err != nil {
				n.log.Error("dropping undeliverable notification",
					"repo", event.Repo, "category", event.Category,
					"number", event.Number, "error", err)
			}
		}
	}
}

// post sends one webhook message, retrying transient failures with
// exponential backoff.
func (n *DiscordNotifier) post(ctx context.Context, content string) error {
	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return retry.Do(
		func() error { return n.send(ctx, body) },
		retry.Context(ctx),
		retry.Attempts(sendAttempts),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			n.log.Warn("retrying webhook delivery", "attempt", attempt+1, "error", err)
		}),
	)
}

func (n *DiscordNotifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	// Discord answers 204 on success; anything else warrants a retry
	// except client errors, which will not improve.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Unrecoverable(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
	}
	return fmt.Errorf("webhook returned status %d", resp.StatusCode)
}
