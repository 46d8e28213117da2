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

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirseerhq/sirseer-pulse/internal/github"
)

// Writer streams report rows as CSV to a file or io.Writer. Rows are
// flushed on Close, and the writer is safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	csv       *csv.Writer
	count     int
	closeFunc func() error
}

// NewWriter creates a CSV report writer over an io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// NewFileWriter creates a CSV report writer backed by a file. The caller
// must call Close() when done to flush rows and close the file.
func NewFileWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &Writer{
		csv:       csv.NewWriter(file),
		closeFunc: file.Close,
	}, nil
}

// WriteIssue appends one issue row: creation date, bolded title, link.
// The bold markers survive into spreadsheet tools that render Markdown and
// are harmless elsewhere.
func (w *Writer) WriteIssue(item *github.Item) error {
	return w.writeRow(item.CreatedAt, item)
}

// WritePull appends one merged pull request row: merge date, bolded title,
// link. Pull requests without a merge timestamp are rejected; the report
// only covers merged ones.
func (w *Writer) WritePull(item *github.Item) error {
	if item.MergedAt == nil {
		return fmt.Errorf("pull request #%d has no merge timestamp", item.Number)
	}
	return w.writeRow(*item.MergedAt, item)
}

func (w *Writer) writeRow(date time.Time, item *github.Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row := []string{
		date.UTC().Format("2006-01-02"),
		fmt.Sprintf("**%s**", item.Title),
		item.URL,
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write report row for #%d: %w", item.Number, err)
	}

	w.count++
	return nil
}

// Count returns the number of rows written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered rows and closes the underlying file if there is
// one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	flushErr := w.csv.Error()

	if w.closeFunc != nil {
		if err := w.closeFunc(); err != nil {
			return err
		}
	}
	return flushErr
}
