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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "Track issue, pull request and release activity across GitHub repositories",
		Long: `SirSeer Pulse watches a set of GitHub repositories and keeps a local
record of every open issue and pull request. Each polling pass compares
the live state against the last known state, detects items that were
merged or closed since the previous pass, and announces the transitions.
It can also produce CSV activity reports for an arbitrary date window.`,
		Version:       version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
	}

	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newReportCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, pulseerrors.ErrInvalidToken) ||
		errors.Is(err, pulseerrors.ErrRepoNotFound) ||
		errors.Is(err, pulseerrors.ErrRateLimit) {
		return 2 // Authentication/authorization errors
	}

	if errors.Is(err, pulseerrors.ErrNetworkFailure) {
		return 3 // Network errors
	}

	if errors.Is(err, pulseerrors.ErrStateCorrupt) {
		return 4 // Persisted state damage, needs operator attention
	}

	return 1 // General error
}

// parseRepository parses an org/repo string into owner and repo components
func parseRepository(repoArg string) (org, repo string, err error) {
	parts := strings.Split(repoArg, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format. Expected: <org>/<repo>, got: %s", repoArg)
	}

	org = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if org == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository format. Expected: <org>/<repo>, got: %s", repoArg)
	}

	return org, repo, nil
}

// resolveToken returns the GitHub token from the flag or the configured
// environment variable.
func resolveToken(flagToken string, fromEnv func() (string, error)) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	token, err := fromEnv()
	if err != nil {
		return "", fmt.Errorf("GitHub token not found (%v). Set GITHUB_TOKEN or use --token", err)
	}
	return token, nil
}
