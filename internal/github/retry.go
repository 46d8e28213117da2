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

package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirseerhq/sirseer-pulse/internal/giterror"
)

// RetryConfig configures the retry behavior for API calls.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts uint
	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts:     4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// RetryClient wraps a Client with automatic retry for rate limits and
// transient network errors, using exponential backoff with jitter. Auth and
// not-found errors are never retried.
type RetryClient struct {
	client    Client
	config    *RetryConfig
	inspector giterror.Inspector
}

// NewRetryClient creates a new RetryClient with the given configuration.
func NewRetryClient(client Client, config *RetryConfig) Client {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryClient{
		client:    client,
		config:    config,
		inspector: giterror.NewInspector(),
	}
}

// ListItems implements the Client interface with retry logic.
func (r *RetryClient) ListItems(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error) {
	var page *ItemPage
	err := r.do(ctx, "list items", func() error {
		var err error
		page, err = r.client.ListItems(ctx, org, repo, opts)
		return err
	})
	return page, err
}

// GetItem implements the Client interface with retry logic.
func (r *RetryClient) GetItem(ctx context.Context, org, repo string, category Category, number int) (*Item, error) {
	var item *Item
	err := r.do(ctx, "get item", func() error {
		var err error
		item, err = r.client.GetItem(ctx, org, repo, category, number)
		return err
	})
	return item, err
}

// LatestRelease implements the Client interface with retry logic.
func (r *RetryClient) LatestRelease(ctx context.Context, org, repo string) (*Release, error) {
	var rel *Release
	err := r.do(ctx, "latest release", func() error {
		var err error
		rel, err = r.client.LatestRelease(ctx, org, repo)
		return err
	})
	return rel, err
}

// do runs fn with backoff, retrying only errors the inspector deems transient.
func (r *RetryClient) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(r.config.Attempts),
		retry.Delay(r.config.InitialDelay),
		retry.MaxDelay(r.config.MaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(r.shouldRetry),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("retrying github call", "op", op, "attempt", n+1, "error", err)
		}),
	)
}

// shouldRetry determines if an error is retryable.
func (r *RetryClient) shouldRetry(err error) bool {
	return r.inspector.IsRateLimitError(err) || r.inspector.IsNetworkError(err)
}
