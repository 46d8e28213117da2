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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sirseerhq/sirseer-pulse/internal/config"
	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/notify"
	"github.com/sirseerhq/sirseer-pulse/internal/store"
	"github.com/sirseerhq/sirseer-pulse/internal/track"
)

// maxConcurrentRepos bounds how many repositories one polling pass
// reconciles in parallel, keeping the process inside GitHub's secondary
// rate limits.
const maxConcurrentRepos = 4

// watchCmd represents the watch command
func newWatchCommand() *cobra.Command {
	var (
		configPath string
		token      string
		stateDir   string
		interval   time.Duration
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "watch [<org>/<repo>...]",
		Short: "Poll repositories and announce issue, PR and release transitions",
		Long: `Watch polls the configured repositories on a fixed interval. Each pass
records the open issues and pull requests, compares them against the
previous pass, and reports every item that was merged or closed in
between. Repositories configured with releases: true additionally
announce new releases.

Repositories come from the configuration file; any <org>/<repo>
arguments are watched in addition to the configured set.

Authentication is required via GitHub token:
  - Use --token flag to provide token directly
  - Or set GITHUB_TOKEN environment variable`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			for _, arg := range args {
				org, repo, err := parseRepository(arg)
				if err != nil {
					return err
				}
				cfg.Repositories = append(cfg.Repositories, config.RepoConfig{Org: org, Repo: repo})
			}
			if stateDir != "" {
				cfg.Defaults.StateDir = stateDir
			}
			if interval > 0 {
				cfg.Watch.PollInterval = interval
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if len(cfg.Repositories) == 0 {
				return fmt.Errorf("no repositories to watch; configure them or pass <org>/<repo> arguments")
			}

			resolved, err := resolveToken(token, cfg.Token)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cfg, resolved, once)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: standard locations)")
	cmd.Flags().StringVar(&token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN env var)")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "Directory for the local state database")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (e.g. 90s, 5m)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single polling pass and exit")

	return cmd
}

// runWatch owns the store, the notifier and the polling loop.
func runWatch(ctx context.Context, cfg *config.Config, token string, once bool) error {
	st, err := store.Open(store.DefaultConfig(cfg.Defaults.StateDir))
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer st.Close()

	client := github.NewRetryClient(
		github.NewGraphQLClient(token, cfg.GitHub.GraphQLEndpoint),
		github.DefaultRetryConfig(),
	)

	// Transitions flow through a channel so webhook latency never blocks
	// reconciliation.
	events := make(track.ChannelSink, 256)
	engine := track.NewEngine(client, st, track.Options{
		Sink:     events,
		PageSize: cfg.Defaults.PageSize,
	})

	var notifier *notify.DiscordNotifier
	var consumerDone sync.WaitGroup
	if cfg.Notify.DiscordWebhookURL != "" {
		notifier = notify.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL, slog.Default())
		consumerDone.Add(1)
		go func() {
			defer consumerDone.Done()
			notifier.Run(ctx, events)
		}()
	} else {
		slog.Info("no webhook configured, transitions are logged only")
		consumerDone.Add(1)
		go func() {
			defer consumerDone.Done()
			for event := range events {
				slog.Info("transition",
					"repo", event.Repo, "category", event.Category,
					"number", event.Number, "to", event.To)
			}
		}()
	}

	err = pollLoop(ctx, cfg, engine, notifier, once)

	close(events)
	consumerDone.Wait()
	return err
}

func pollLoop(ctx context.Context, cfg *config.Config, engine *track.Engine, notifier *notify.DiscordNotifier, once bool) error {
	slog.Info("watching repositories",
		"count", len(cfg.Repositories),
		"interval", cfg.Watch.PollInterval)

	// First pass runs immediately; the ticker covers the rest.
	if err := pollOnce(ctx, cfg, engine, notifier); err != nil {
		return err
	}
	if once {
		return nil
	}

	ticker := time.NewTicker(cfg.Watch.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := pollOnce(ctx, cfg, engine, notifier); err != nil {
				return err
			}
		}
	}
}

// pollOnce reconciles every configured repository. Repositories are
// isolated from each other: one failing only logs, it does not take the
// loop down. Context cancellation is the exception and ends the pass.
func pollOnce(ctx context.Context, cfg *config.Config, engine *track.Engine, notifier *notify.DiscordNotifier) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentRepos)

	for _, repo := range cfg.Repositories {
		group.Go(func() error {
			if err := pollRepository(ctx, engine, notifier, repo); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("repository pass failed",
					"repo", repo.Name(), "error", err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func pollRepository(ctx context.Context, engine *track.Engine, notifier *notify.DiscordNotifier, repo config.RepoConfig) error {
	for _, category := range []github.Category{github.CategoryIssue, github.CategoryPull} {
		if _, err := engine.Reconcile(ctx, repo.Org, repo.Repo, category); err != nil {
			return err
		}
	}

	if !repo.Releases {
		return nil
	}
	rel, fresh, err := engine.CheckRelease(ctx, repo.Org, repo.Repo)
	if err != nil {
		// Repositories without releases are not an error worth surfacing
		// every pass.
		slog.Debug("release check failed", "repo", repo.Name(), "error", err)
		return nil
	}
	if fresh {
		slog.Info("new release", "repo", repo.Name(), "tag", rel.TagName)
		if notifier != nil {
			if err := notifier.NotifyRelease(ctx, repo.Repo, rel); err != nil {
				slog.Error("dropping release notification", "repo", repo.Name(), "error", err)
			}
		}
	}
	return nil
}
