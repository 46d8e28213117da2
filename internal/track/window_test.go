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

package track

import (
	"testing"
	"time"
)

func mustWindow(t *testing.T, from, to string) Window {
	t.Helper()
	// now is far in the future so no clamping applies unless a test wants it.
	w, err := ParseWindow(from, to, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ParseWindow(%s, %s) failed: %v", from, to, err)
	}
	return w
}

func TestParseWindow(t *testing.T) {
	w := mustWindow(t, "2022-11-01", "2022-11-25")

	if want := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC); !w.From.Equal(want) {
		t.Errorf("From = %v, want %v", w.From, want)
	}
	// The to bound covers the whole requested day.
	if want := time.Date(2022, 11, 26, 0, 0, 0, 0, time.UTC); !w.To.Equal(want) {
		t.Errorf("To = %v, want %v", w.To, want)
	}
}

func TestParseWindowClampsFutureToNow(t *testing.T) {
	now := time.Date(2022, 11, 20, 15, 30, 0, 0, time.UTC)
	w, err := ParseWindow("2022-11-01", "2022-12-31", now)
	if err != nil {
		t.Fatalf("ParseWindow failed: %v", err)
	}
	if !w.To.Equal(now) {
		t.Errorf("To = %v, want clamped to now %v", w.To, now)
	}
}

func TestParseWindowRejectsBadInput(t *testing.T) {
	now := time.Date(2022, 11, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to string
	}{
		{"garbage from", "yesterday", "2022-11-20"},
		{"garbage to", "2022-11-01", "soon"},
		{"inverted bounds", "2022-11-20", "2022-11-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWindow(tt.from, tt.to, now); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAdmitCreated(t *testing.T) {
	w := mustWindow(t, "2022-11-10", "2022-11-20")

	tests := []struct {
		name    string
		created time.Time
		want    Decision
	}{
		{"inside window", time.Date(2022, 11, 15, 12, 0, 0, 0, time.UTC), Keep},
		{"on from boundary", time.Date(2022, 11, 10, 0, 0, 0, 0, time.UTC), Keep},
		{"late on the to day", time.Date(2022, 11, 20, 23, 59, 0, 0, time.UTC), Keep},
		{"newer than window", time.Date(2022, 11, 22, 0, 0, 0, 0, time.UTC), Skip},
		{"older than window ends the scan", time.Date(2022, 11, 9, 23, 0, 0, 0, time.UTC), Stop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.AdmitCreated(tt.created); got != tt.want {
				t.Errorf("AdmitCreated(%v) = %v, want %v", tt.created, got, tt.want)
			}
		})
	}
}

// TestAdmitMerged walks the five merge/update cases against a day-10..day-20
// window, with one pull request per case.
func TestAdmitMerged(t *testing.T) {
	w := mustWindow(t, "2022-11-10", "2022-11-20")
	day := func(d, h int) time.Time {
		return time.Date(2022, 11, d, h, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		merged  *time.Time
		updated time.Time
		want    Decision
	}{
		{"merged and updated in window", timePtr(day(15, 10)), day(15, 10), Keep},
		{"merged in window then touched later", timePtr(day(18, 9)), day(25, 14), Keep},
		{"stale merge touched inside window", timePtr(day(5, 8)), day(12, 11), Skip},
		{"merged and updated before window", timePtr(day(1, 7)), day(1, 7), Stop},
		{"merged and updated after window", timePtr(day(24, 16)), day(24, 16), Skip},
		{"closed but never merged", nil, day(15, 10), Skip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.AdmitMerged(tt.merged, tt.updated); got != tt.want {
				t.Errorf("AdmitMerged = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestAdmitMergedFeedScenario replays a descending-by-update feed of three
// merged pulls against a day-8..day-15 window: one merged long before, one
// merged inside, one merged after. Only the in-window merge survives, and
// the oldest item ends the scan.
func TestAdmitMergedFeedScenario(t *testing.T) {
	w := mustWindow(t, "2022-11-08", "2022-11-15")
	day := func(d int) time.Time {
		return time.Date(2022, 11, d, 12, 0, 0, 0, time.UTC)
	}

	feed := []struct {
		merged  time.Time
		updated time.Time
		want    Decision
	}{
		{day(20), day(25), Skip},
		{day(10), day(10), Keep},
		{day(1), day(5), Stop},
	}

	for i, item := range feed {
		if got := w.AdmitMerged(&item.merged, item.updated); got != item.want {
			t.Errorf("feed item %d (merged %v, updated %v) = %v, want %v",
				i, item.merged, item.updated, got, item.want)
		}
	}
}

func TestDecisionString(t *testing.T) {
	if Keep.String() != "keep" || Skip.String() != "skip" || Stop.String() != "stop" {
		t.Errorf("unexpected decision names: %v %v %v", Keep, Skip, Stop)
	}
}
