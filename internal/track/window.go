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
	"fmt"
	"time"
)

// dateLayout is the accepted format for report date arguments.
const dateLayout = "2006-01-02"

// Window is an inclusive UTC date range bounding which items a report
// considers. To is already rolled forward to the end of the requested day
// (see ParseWindow), so both bounds compare inclusively.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow builds a window from "YYYY-MM-DD" bounds. Both dates are
// interpreted as whole UTC days: from means 00:00 of that day, to means the
// end of that day, implemented by rolling to forward 24 hours. A to bound
// that would land in the future is clamped to now so reports never claim to
// cover time that has not happened yet.
func ParseWindow(from, to string, now time.Time) (Window, error) {
	fromDay, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid from date %q (expected YYYY-MM-DD): %w", from, err)
	}

	toDay, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid to date %q (expected YYYY-MM-DD): %w", to, err)
	}

	// to = 2022-11-25 actually means "through 2022-11-25", i.e. 2022-11-26 00:00:00.
	toEnd := toDay.AddDate(0, 0, 1)
	now = now.UTC()
	if toEnd.After(now) {
		toEnd = now
	}

	if toEnd.Before(fromDay) {
		return Window{}, fmt.Errorf("window is empty: from %s is after to %s", from, to)
	}

	return Window{From: fromDay, To: toEnd}, nil
}

// Decision is the outcome of evaluating one item against a window while
// paging through a feed.
type Decision int

// Window decisions. Stop means descending sort order guarantees no further
// item can qualify, so pagination can terminate early.
const (
	Keep Decision = iota
	Skip
	Stop
)

// String returns the decision name for logs and test output.
func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Skip:
		return "skip"
	default:
		return "stop"
	}
}

// AdmitCreated evaluates an item from a feed sorted descending by creation
// date. Items newer than the window may be followed by in-window items, so
// they are skipped; the first item older than the window ends the scan.
func (w Window) AdmitCreated(created time.Time) Decision {
	if created.After(w.To) {
		return Skip
	}
	if created.Before(w.From) {
		return Stop
	}
	return Keep
}

// AdmitMerged evaluates a pull request from a feed sorted descending by
// update date against a merge-date window. GitHub cannot sort by merge
// date, and merge time <= update time always, which leaves five cases:
//
//  1. merge and update both in window: keep.
//  2. merge in window, update newer than window (touched after merge): keep.
//  3. merge older than window, update in window (stale merge touched again): skip.
//  4. merge and update both older than window: stop, the descending update
//     order guarantees nothing further can qualify.
//  5. merge and update both newer than window: skip, the window has not
//     been reached yet.
//
// Unmerged pull requests are skipped outright.
func (w Window) AdmitMerged(mergedAt *time.Time, updatedAt time.Time) Decision {
	if mergedAt == nil {
		return Skip
	}
	merged := *mergedAt

	// Case 4.
	if merged.Before(w.From) && updatedAt.Before(w.From) {
		return Stop
	}
	// Cases 1 and 2.
	if !merged.Before(w.From) && !merged.After(w.To) {
		return Keep
	}
	// Cases 3 and 5.
	return Skip
}
