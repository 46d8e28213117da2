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

// Package report renders windowed activity reports as CSV files. Each
// report run produces a directory named after the repository and window,
// holding one file per category:
//
//	Manta/2022-11-01 => 2022-11-25/issue.csv
//	Manta/2022-11-01 => 2022-11-25/pr.csv
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/track"
)

// File names inside a report directory.
const (
	IssueFile = "issue.csv"
	PullFile  = "pr.csv"
)

// Dir returns the report directory for a repository and window, rooted at
// baseDir. The window renders with its original day bounds, so the
// directory name matches what the user asked for.
func Dir(baseDir, repo string, w track.Window) string {
	span := fmt.Sprintf("%s => %s",
		w.From.UTC().Format("2006-01-02"),
		// To was rolled forward to the end of the requested day; roll it
		// back for display.
		w.To.UTC().Add(-1).Format("2006-01-02"))
	return filepath.Join(baseDir, repo, span)
}

// WriteIssues writes the issue report for a window into dir, creating the
// directory as needed, and returns the file path.
func WriteIssues(dir string, items []github.Item) (string, error) {
	return writeFile(dir, IssueFile, items, func(w *Writer, item *github.Item) error {
		return w.WriteIssue(item)
	})
}

// WritePulls writes the merged pull request report for a window into dir,
// creating the directory as needed, and returns the file path.
func WritePulls(dir string, items []github.Item) (string, error) {
	return writeFile(dir, PullFile, items, func(w *Writer, item *github.Item) error {
		return w.WritePull(item)
	})
}

func writeFile(dir, name string, items []github.Item, write func(*Writer, *github.Item) error) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, name)
	w, err := NewFileWriter(path)
	if err != nil {
		return "", err
	}

	for i := range items {
		if err := write(w, &items[i]); err != nil {
			w.Close() //nolint:errcheck
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize report %s: %w", path, err)
	}
	return path, nil
}
