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
	"context"
	"errors"
	"testing"
	"time"

	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/store"
)

func openEngineStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openPull(number int) github.Item {
	created := time.Date(2022, 11, 10, 0, 0, 0, 0, time.UTC)
	return github.Item{
		Number:    number,
		Title:     "pull request",
		URL:       "https://github.com/o/r/pull/" + itoa(number),
		Kind:      github.CategoryPull,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func drainEvents(sink ChannelSink) []TransitionEvent {
	var events []TransitionEvent
	for {
		select {
		case ev := <-sink:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// TestReconcileDetectsMerge runs the canonical two-pass scenario: a first
// pass sees #1, #2 and #3 open; before the second pass #2 is merged. The
// second pass must report exactly one transition, for #2, open to merged.
func TestReconcileDetectsMerge(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	sink := make(ChannelSink, 16)
	engine := NewEngine(client, st, Options{Sink: sink})

	pr1, pr2, pr3 := openPull(1), openPull(2), openPull(3)
	client.PullPages = []github.ItemPage{{Items: []github.Item{pr1, pr2, pr3}}}

	first, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if len(first.New) != 3 {
		t.Fatalf("first pass New = %d, want 3", len(first.New))
	}
	if events := drainEvents(sink); len(events) != 0 {
		t.Fatalf("first pass emitted %d events, want 0 (new items are not transitions)", len(events))
	}

	// #2 is merged remotely: it drops out of the open listing and its
	// detail now carries close and merge timestamps.
	mergedAt := time.Date(2022, 11, 24, 12, 0, 0, 0, time.UTC)
	merged2 := pr2
	merged2.ClosedAt = timePtr(mergedAt)
	merged2.MergedAt = timePtr(mergedAt)
	merged2.UpdatedAt = mergedAt
	client.PullPages = []github.ItemPage{{Items: []github.Item{pr1, pr3}}}
	client.SetDetail(github.CategoryPull, &merged2)

	second, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(second.New) != 0 || len(second.Closed) != 0 {
		t.Errorf("second pass New=%d Closed=%d, want 0/0", len(second.New), len(second.Closed))
	}
	if len(second.Merged) != 1 || second.Merged[0].Number != 2 {
		t.Fatalf("second pass Merged = %+v, want exactly #2", second.Merged)
	}

	events := drainEvents(sink)
	if len(events) != 1 {
		t.Fatalf("second pass emitted %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Number != 2 || ev.From != StatusOpen || ev.To != StatusMerged {
		t.Errorf("event = #%d %s->%s, want #2 open->merged", ev.Number, ev.From, ev.To)
	}
	if ev.Org != "o" || ev.Repo != "r" || ev.Category != github.CategoryPull {
		t.Errorf("event addressing = %s/%s %s", ev.Org, ev.Repo, ev.Category)
	}

	// Single-bucket invariant: #2 lives in merged, not in open.
	openKey := store.Key{Org: "o", Repo: "r", Category: "prs", Bucket: "open", Number: 2}.Bytes()
	mergedKey := store.Key{Org: "o", Repo: "r", Category: "prs", Bucket: "merged", Number: 2}.Bytes()
	if _, ok, _ := st.Get(openKey); ok {
		t.Error("#2 still present in open bucket after merge")
	}
	if _, ok, _ := st.Get(mergedKey); !ok {
		t.Error("#2 absent from merged bucket after merge")
	}
}

// TestReconcileIsIdempotent runs the same pass twice with no remote change
// in between; the second run must detect nothing.
func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	sink := make(ChannelSink, 16)
	engine := NewEngine(client, st, Options{Sink: sink})

	client.IssuePages = []github.ItemPage{{Items: []github.Item{
		{Number: 10, URL: "https://github.com/o/r/issues/10", Kind: github.CategoryIssue},
		{Number: 11, URL: "https://github.com/o/r/issues/11", Kind: github.CategoryIssue},
	}}}

	if _, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	drainEvents(sink)

	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(res.New)+len(res.Merged)+len(res.Closed)+res.Reopened != 0 {
		t.Errorf("repeat pass detected changes: %+v", res)
	}
	if events := drainEvents(sink); len(events) != 0 {
		t.Errorf("repeat pass emitted %d events, want 0", len(events))
	}
	if client.GetCalls != 0 {
		t.Errorf("repeat pass fetched %d item details, want 0", client.GetCalls)
	}
}

// TestReconcileInconsistentItemIsIsolated injects one item whose detail
// violates the merged-implies-closed invariant; its failure must not stop
// the other transition from being processed.
func TestReconcileInconsistentItemIsIsolated(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	pr1, pr2 := openPull(1), openPull(2)
	client.PullPages = []github.ItemPage{{Items: []github.Item{pr1, pr2}}}
	if _, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull); err != nil {
		t.Fatalf("seed pass failed: %v", err)
	}

	closedAt := time.Date(2022, 11, 24, 12, 0, 0, 0, time.UTC)
	bad := pr1
	bad.MergedAt = timePtr(closedAt) // merged but never closed: inconsistent
	good := pr2
	good.ClosedAt = timePtr(closedAt)
	client.PullPages = []github.ItemPage{{}}
	client.SetDetail(github.CategoryPull, &bad)
	client.SetDetail(github.CategoryPull, &good)

	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull)
	if err != nil {
		t.Fatalf("pass failed outright, want per-item isolation: %v", err)
	}
	if len(res.ItemErrors) != 1 {
		t.Fatalf("ItemErrors = %d, want 1", len(res.ItemErrors))
	}
	if !errors.Is(res.ItemErrors[0], pulseerrors.ErrInconsistentItem) {
		t.Errorf("item error %v does not wrap ErrInconsistentItem", res.ItemErrors[0])
	}
	if len(res.Closed) != 1 || res.Closed[0].Number != 2 {
		t.Errorf("Closed = %+v, want exactly #2", res.Closed)
	}

	// The inconsistent item stays where it was.
	openKey := store.Key{Org: "o", Repo: "r", Category: "prs", Bucket: "open", Number: 1}.Bytes()
	if _, ok, _ := st.Get(openKey); !ok {
		t.Error("inconsistent item was moved out of the open bucket")
	}
}

// TestReconcileReopenedItem closes an issue, reopens it, and verifies the
// terminal entry is cleared without an event and without counting it new.
func TestReconcileReopenedItem(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	sink := make(ChannelSink, 16)
	engine := NewEngine(client, st, Options{Sink: sink})

	issue := github.Item{Number: 5, URL: "https://github.com/o/r/issues/5", Kind: github.CategoryIssue}
	client.IssuePages = []github.ItemPage{{Items: []github.Item{issue}}}
	if _, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue); err != nil {
		t.Fatal(err)
	}

	closedAt := time.Date(2022, 11, 24, 12, 0, 0, 0, time.UTC)
	closed := issue
	closed.ClosedAt = timePtr(closedAt)
	client.IssuePages = []github.ItemPage{{}}
	client.SetDetail(github.CategoryIssue, &closed)
	if _, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue); err != nil {
		t.Fatal(err)
	}
	drainEvents(sink)

	// Reopened: the issue is back in the live open listing.
	client.IssuePages = []github.ItemPage{{Items: []github.Item{issue}}}
	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reopened != 1 {
		t.Errorf("Reopened = %d, want 1", res.Reopened)
	}
	if len(res.New) != 0 {
		t.Errorf("reopened item also reported new: %+v", res.New)
	}
	if events := drainEvents(sink); len(events) != 0 {
		t.Errorf("reopening emitted %d events, want 0", len(events))
	}

	closedKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "closed", Number: 5}.Bytes()
	openKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "open", Number: 5}.Bytes()
	if _, ok, _ := st.Get(closedKey); ok {
		t.Error("stale closed-bucket entry survived the reopen")
	}
	if _, ok, _ := st.Get(openKey); !ok {
		t.Error("reopened item missing from open bucket")
	}
}

// TestReconcileRepairsInterruptedReopen seeds the state a pass interrupted
// between its writes could leave behind: the same issue present in both
// the open and closed buckets. The next pass must remove the stale
// terminal entry even though the item is already known as open.
func TestReconcileRepairsInterruptedReopen(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	sink := make(ChannelSink, 16)
	engine := NewEngine(client, st, Options{Sink: sink})

	issue := github.Item{Number: 5, URL: "https://github.com/o/r/issues/5", Kind: github.CategoryIssue}
	value, err := encodeItem(&issue)
	if err != nil {
		t.Fatal(err)
	}
	openKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "open", Number: 5}.Bytes()
	closedKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "closed", Number: 5}.Bytes()
	if err := st.Put(openKey, value); err != nil {
		t.Fatal(err)
	}
	if err := st.Put(closedKey, value); err != nil {
		t.Fatal(err)
	}

	client.IssuePages = []github.ItemPage{{Items: []github.Item{issue}}}
	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if _, ok, _ := st.Get(closedKey); ok {
		t.Error("stale closed-bucket entry survived the pass")
	}
	if _, ok, _ := st.Get(openKey); !ok {
		t.Error("item missing from open bucket")
	}
	if res.Reopened != 1 {
		t.Errorf("Reopened = %d, want 1", res.Reopened)
	}
	if len(res.New)+len(res.Merged)+len(res.Closed) != 0 {
		t.Errorf("repair pass detected changes: %+v", res)
	}
	if events := drainEvents(sink); len(events) != 0 {
		t.Errorf("repair pass emitted %d events, want 0", len(events))
	}
}

// TestReconcileIssueFeedExcludesPullRecords feeds an issue-category page
// containing a record whose URL marks it as a pull request. The record
// must be excluded from the issue results and never persisted under the
// issues key space.
func TestReconcileIssueFeedExcludesPullRecords(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	stray := github.Item{Number: 99, URL: "https://github.com/o/r/pull/99"}
	issue := github.Item{Number: 10, URL: "https://github.com/o/r/issues/10"}
	client.IssuePages = []github.ItemPage{{Items: []github.Item{stray, issue}}}

	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryIssue)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(res.New) != 1 || res.New[0].Number != 10 {
		t.Fatalf("New = %+v, want exactly issue #10", res.New)
	}

	strayKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "open", Number: 99}.Bytes()
	if _, ok, _ := st.Get(strayKey); ok {
		t.Error("pull request record persisted under the issues key space")
	}
	issueKey := store.Key{Org: "o", Repo: "r", Category: "issues", Bucket: "open", Number: 10}.Bytes()
	if _, ok, _ := st.Get(issueKey); !ok {
		t.Error("issue record missing from the issues open bucket")
	}
}

// TestReconcilePaginates spreads the open set over three pages and checks
// the engine walks all of them.
func TestReconcilePaginates(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{PageSize: 2})

	client.PullPages = []github.ItemPage{
		{Items: []github.Item{openPull(1), openPull(2)}},
		{Items: []github.Item{openPull(3), openPull(4)}},
		{Items: []github.Item{openPull(5)}},
	}

	res, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(res.New) != 5 {
		t.Errorf("New = %d, want 5", len(res.New))
	}
	if client.PagesFetched != 3 {
		t.Errorf("fetched %d pages, want 3", client.PagesFetched)
	}
}

// TestMergedPullsBetweenStopsEarly puts the only qualifying pull on the
// first page followed by a page of pre-window activity; the descending
// update order must let the scan stop without touching the third page.
func TestMergedPullsBetweenStopsEarly(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	w := mustWindow(t, "2022-11-10", "2022-11-20")
	day := func(d int) time.Time { return time.Date(2022, 11, d, 12, 0, 0, 0, time.UTC) }

	inWindow := openPull(3)
	inWindow.MergedAt = timePtr(day(15))
	inWindow.ClosedAt = timePtr(day(15))
	inWindow.UpdatedAt = day(15)

	ancient := openPull(1)
	ancient.MergedAt = timePtr(day(2))
	ancient.ClosedAt = timePtr(day(2))
	ancient.UpdatedAt = day(2)

	client.PullPages = []github.ItemPage{
		{Items: []github.Item{inWindow}},
		{Items: []github.Item{ancient}},
		{Items: []github.Item{openPull(99)}}, // must never be fetched
	}

	got, err := engine.MergedPullsBetween(ctx, "o", "r", w)
	if err != nil {
		t.Fatalf("MergedPullsBetween failed: %v", err)
	}
	if len(got) != 1 || got[0].Number != 3 {
		t.Errorf("result = %+v, want exactly #3", got)
	}
	if client.PagesFetched != 2 {
		t.Errorf("fetched %d pages, want 2 (early termination)", client.PagesFetched)
	}
}

func TestOpenIssuesBetween(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	w := mustWindow(t, "2022-11-10", "2022-11-20")
	issueAt := func(number, day int) github.Item {
		return github.Item{
			Number:    number,
			URL:       "https://github.com/o/r/issues/" + itoa(number),
			Kind:      github.CategoryIssue,
			CreatedAt: time.Date(2022, 11, day, 12, 0, 0, 0, time.UTC),
		}
	}

	client.IssuePages = []github.ItemPage{
		{Items: []github.Item{issueAt(30, 25), issueAt(20, 15)}},
		{Items: []github.Item{issueAt(10, 5), issueAt(9, 4)}},
	}

	got, err := engine.OpenIssuesBetween(ctx, "o", "r", w)
	if err != nil {
		t.Fatalf("OpenIssuesBetween failed: %v", err)
	}
	if len(got) != 1 || got[0].Number != 20 {
		t.Errorf("result = %+v, want exactly #20", got)
	}
}

func TestCheckRelease(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	client.Release = &github.Release{
		Name:        "v4.0.5",
		TagName:     "v4.0.5",
		URL:         "https://github.com/o/r/releases/tag/v4.0.5",
		PublishedAt: time.Date(2022, 11, 20, 0, 0, 0, 0, time.UTC),
	}

	rel, fresh, err := engine.CheckRelease(ctx, "o", "r")
	if err != nil {
		t.Fatalf("CheckRelease failed: %v", err)
	}
	if !fresh {
		t.Error("first sighting not reported fresh")
	}
	if rel.TagName != "v4.0.5" {
		t.Errorf("TagName = %q", rel.TagName)
	}

	// Unchanged tag on the next poll.
	_, fresh, err = engine.CheckRelease(ctx, "o", "r")
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("unchanged release reported fresh")
	}

	// A new tag is fresh again.
	client.Release.TagName = "v4.0.6"
	_, fresh, err = engine.CheckRelease(ctx, "o", "r")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("new tag not reported fresh")
	}
}

func TestReconcileFetchFailureAbortsPass(t *testing.T) {
	ctx := context.Background()
	st := openEngineStore(t)
	client := github.NewMockClient()
	engine := NewEngine(client, st, Options{})

	client.ListErr = pulseerrors.ErrNetworkFailure
	if _, err := engine.Reconcile(ctx, "o", "r", github.CategoryPull); !errors.Is(err, pulseerrors.ErrNetworkFailure) {
		t.Errorf("err = %v, want wrapped ErrNetworkFailure", err)
	}
}
