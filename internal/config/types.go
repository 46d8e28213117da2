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

// Package config types define the configuration structures used throughout
// sirseer-pulse. These types represent settings that can be loaded from
// YAML configuration files, environment variables, or command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete configuration for sirseer-pulse.
// It consolidates settings from various sources and provides a unified
// interface for accessing configuration values throughout the application.
type Config struct {
	GitHub       GitHubConfig   `yaml:"github"`
	Watch        WatchConfig    `yaml:"watch"`
	Notify       NotifyConfig   `yaml:"notify"`
	Repositories []RepoConfig   `yaml:"repositories"`
	Defaults     DefaultsConfig `yaml:"defaults"`
}

// GitHubConfig contains GitHub-specific settings including API endpoints
// and authentication configuration. This allows easy configuration for
// GitHub Enterprise deployments by specifying custom endpoints.
type GitHubConfig struct {
	GraphQLEndpoint string `yaml:"graphql_endpoint"`
	TokenEnv        string `yaml:"token_env"`
}

// WatchConfig controls the polling loop of the watch command.
type WatchConfig struct {
	// PollInterval is the time between reconciliation passes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NotifyConfig controls where transition notifications are delivered.
// An empty webhook URL disables notification delivery; transitions are
// still persisted and logged.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// RepoConfig identifies one repository to track and which of its feeds
// to watch.
type RepoConfig struct {
	Org  string `yaml:"org"`
	Repo string `yaml:"repo"`

	// Releases enables polling the latest release alongside issues and
	// pull requests.
	Releases bool `yaml:"releases"`
}

// Name returns the repository in "org/repo" form.
func (r RepoConfig) Name() string {
	return r.Org + "/" + r.Repo
}

// DefaultsConfig contains default settings that apply to all repositories
// unless overridden by command-line flags.
type DefaultsConfig struct {
	PageSize int    `yaml:"page_size"`
	StateDir string `yaml:"state_dir"`
}

// DefaultConfig returns a Config with sensible defaults suitable for most
// use cases. These defaults are optimized for public GitHub.com usage but
// can be overridden for GitHub Enterprise or special requirements.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			GraphQLEndpoint: "https://api.github.com/graphql",
			TokenEnv:        "GITHUB_TOKEN",
		},
		Watch: WatchConfig{
			PollInterval: 2 * time.Minute,
		},
		Defaults: DefaultsConfig{
			PageSize: 50,
			StateDir: "~/.sirseer/pulse",
		},
	}
}

// Validate checks if the configuration contains valid values. It ensures
// page sizes are within GitHub's limits, the poll interval is sane, and
// every tracked repository is fully addressed. This should be called after
// loading configuration to catch invalid settings early.
func (c *Config) Validate() error {
	if c.Defaults.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got: %d", c.Defaults.PageSize)
	}
	if c.Defaults.PageSize > 100 {
		return fmt.Errorf("page size %d exceeds GitHub API limit of 100", c.Defaults.PageSize)
	}
	if c.Watch.PollInterval < time.Second {
		return fmt.Errorf("poll interval %s is below the 1s minimum", c.Watch.PollInterval)
	}
	if c.GitHub.GraphQLEndpoint == "" {
		return fmt.Errorf("GitHub GraphQL endpoint cannot be empty")
	}
	for i, repo := range c.Repositories {
		if repo.Org == "" || repo.Repo == "" {
			return fmt.Errorf("repository entry %d is missing org or repo", i)
		}
		if strings.ContainsAny(repo.Org, "#/") || strings.ContainsAny(repo.Repo, "#/") {
			return fmt.Errorf("repository %q contains characters reserved by the state store", repo.Name())
		}
	}
	return nil
}
