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
	"fmt"
	"log/slog"

	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/store"
)

// Engine reconciles the live state of a repository's issues and pull
// requests against the persisted last-known state, deriving transition
// events. The store handle is passed in explicitly and may be shared by
// engines reconciling different repositories concurrently: their key
// spaces are disjoint.
type Engine struct {
	client   github.Client
	store    store.Store
	sink     EventSink
	log      *slog.Logger
	pageSize int
}

// Options configures an Engine.
type Options struct {
	// Sink receives transition events as they are detected. Optional;
	// events are always also collected in the Result.
	Sink EventSink

	// Logger for reconciliation progress. Defaults to slog.Default().
	Logger *slog.Logger

	// PageSize for list queries. Defaults to the client's default.
	PageSize int
}

// NewEngine creates an engine over the given fetch client and store.
func NewEngine(client github.Client, st store.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:   client,
		store:    st,
		sink:     opts.Sink,
		log:      logger,
		pageSize: opts.PageSize,
	}
}

// Result summarizes one reconciliation pass over one repository and
// category.
type Result struct {
	Org      string
	Repo     string
	Category github.Category

	// New items observed open for the first time. Not transitions.
	New []github.Item

	// Merged and Closed items that left the open set since the last run.
	Merged []github.Item
	Closed []github.Item

	// Reopened counts terminal items observed open again. Decided policy:
	// the store moves them back to the open bucket without emitting an
	// event.
	Reopened int

	// ItemErrors holds per-item classification failures that did not
	// abort the pass.
	ItemErrors []error
}

// Reconcile runs one incremental pass for a repository and category:
//
//  1. Fetch the full live open set (unbounded window).
//  2. Read the previously persisted open set.
//  3. Upsert the live set into the open bucket and delete any stale
//     terminal-bucket entries of reopened items, as one atomic batch.
//  4. For each previously-open item no longer live, fetch its detail,
//     classify it, move it to the bucket matching its new status, and emit
//     a transition event. Each move is atomic; classification failures are
//     collected per item and do not abort the pass.
//  5. Live items absent from the previous set are reported as new.
//
// Running the same pass twice with no remote changes in between produces
// an empty result: the open bucket already matches the live set and no
// item moves.
func (e *Engine) Reconcile(ctx context.Context, org, repo string, category github.Category) (*Result, error) {
	res := &Result{Org: org, Repo: repo, Category: category}

	live, err := e.collectOpen(ctx, org, repo, category)
	if err != nil {
		return nil, fmt.Errorf("fetching live open set for %s/%s: %w", org, repo, err)
	}

	liveByNumber := make(map[int]*github.Item, len(live))
	for i := range live {
		liveByNumber[live[i].Number] = &live[i]
	}

	// The previous open set must be read before the upsert below writes
	// the live items into the same bucket, or first-seen items would be
	// indistinguishable from known ones.
	prevOpen, err := e.previousOpen(org, repo, category)
	if err != nil {
		return nil, err
	}

	// Reopened-item policy: a live item with a terminal-bucket entry gets
	// that stale entry removed. Every live item is checked, not just
	// first-seen ones, so a pass interrupted mid-write is repaired on
	// retry instead of leaving the duplicate behind.
	reopened, staleTerminal, err := e.findReopened(org, repo, category, live)
	if err != nil {
		return nil, err
	}
	res.Reopened = len(reopened)

	// The open-set upsert and the stale terminal deletes commit in one
	// transaction, so no crash point can leave an item in two buckets.
	entries := make([]store.Entry, 0, len(live))
	for i := range live {
		value, err := encodeItem(&live[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, store.Entry{
			Key:   e.key(org, repo, category, StatusOpen, live[i].Number).Bytes(),
			Value: value,
		})
	}
	if err := e.store.BatchWrite(entries, staleTerminal); err != nil {
		return nil, fmt.Errorf("upserting open set for %s/%s: %w", org, repo, err)
	}

	// Transition detection: previously open, no longer live.
	for _, prev := range prevOpen {
		if _, stillOpen := liveByNumber[prev.Number]; stillOpen {
			continue
		}
		if err := e.transition(ctx, org, repo, category, prev, res); err != nil {
			return nil, err
		}
	}

	// First-seen detection.
	prevNumbers := make(map[int]struct{}, len(prevOpen))
	for _, prev := range prevOpen {
		prevNumbers[prev.Number] = struct{}{}
	}
	for i := range live {
		if _, known := prevNumbers[live[i].Number]; known {
			continue
		}
		if _, wasTerminal := reopened[live[i].Number]; wasTerminal {
			continue
		}
		res.New = append(res.New, live[i])
	}

	e.log.Info("reconciled repository",
		"org", org, "repo", repo, "category", category,
		"live_open", len(live), "new", len(res.New),
		"merged", len(res.Merged), "closed", len(res.Closed),
		"reopened", res.Reopened, "item_errors", len(res.ItemErrors))

	return res, nil
}

// transition handles one previously-open item that left the live set:
// fetch detail, classify, move buckets, emit the event.
func (e *Engine) transition(ctx context.Context, org, repo string, category github.Category, prev *github.Item, res *Result) error {
	detail, err := e.client.GetItem(ctx, org, repo, category, prev.Number)
	if err != nil {
		return fmt.Errorf("fetching detail for %s #%d: %w", category, prev.Number, err)
	}

	status, err := Classify(detail)
	if err != nil {
		// Invariant violation on one item; the rest of the pass proceeds.
		res.ItemErrors = append(res.ItemErrors, err)
		e.log.Warn("skipping item with inconsistent state",
			"org", org, "repo", repo, "category", category,
			"number", prev.Number, "error", err)
		return nil
	}

	if status == StatusOpen {
		// The item fell out of the live listing but its detail still
		// reports open; likely a race with the remote. Leave it in the
		// open bucket and let the next pass settle it.
		return nil
	}

	oldKey := e.key(org, repo, category, StatusOpen, prev.Number).Bytes()
	newKey := e.key(org, repo, category, status, prev.Number).Bytes()
	value, err := encodeItem(detail)
	if err != nil {
		return err
	}
	if err := e.store.Move(oldKey, newKey, value); err != nil {
		return fmt.Errorf("moving %s #%d to %s bucket: %w", category, prev.Number, status, err)
	}

	event := TransitionEvent{
		Org:      org,
		Repo:     repo,
		Category: category,
		Number:   prev.Number,
		From:     StatusOpen,
		To:       status,
		Item:     *detail,
	}
	if e.sink != nil {
		e.sink.Publish(event)
	}

	switch status {
	case StatusMerged:
		res.Merged = append(res.Merged, *detail)
	case StatusClosed:
		res.Closed = append(res.Closed, *detail)
	}
	return nil
}

// previousOpen reads the persisted open bucket for a repository/category.
func (e *Engine) previousOpen(org, repo string, category github.Category) ([]*github.Item, error) {
	var items []*github.Item
	prefix := store.BucketPrefix(org, repo, string(category), string(StatusOpen))
	err := e.store.ScanPrefix(prefix, func(_, value []byte) error {
		item, err := decodeItem(value)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning open bucket for %s/%s: %w", org, repo, err)
	}
	return items, nil
}

// findReopened locates terminal-bucket entries for items that are live
// again, returning the affected numbers and the stale keys to delete.
func (e *Engine) findReopened(org, repo string, category github.Category, live []github.Item) (map[int]struct{}, [][]byte, error) {
	reopened := make(map[int]struct{})
	var stale [][]byte
	for i := range live {
		for _, bucket := range []Status{StatusMerged, StatusClosed} {
			key := e.key(org, repo, category, bucket, live[i].Number).Bytes()
			_, ok, err := e.store.Get(key)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			stale = append(stale, key)
			reopened[live[i].Number] = struct{}{}
			e.log.Info("terminal item reopened",
				"org", org, "repo", repo, "category", category,
				"number", live[i].Number, "was", bucket)
		}
	}
	return reopened, stale, nil
}

// collectOpen pages through the full live open set for a category. The
// category disambiguation guard drops records the upstream feed returns
// under the wrong kind.
func (e *Engine) collectOpen(ctx context.Context, org, repo string, category github.Category) ([]github.Item, error) {
	opts := github.ListOptions{
		Category: category,
		State:    github.StateOpen,
		PageSize: e.pageSize,
	}

	var items []github.Item
	for {
		page, err := e.client.ListItems(ctx, org, repo, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			if Categorize(&page.Items[i]) != category {
				continue
			}
			items = append(items, page.Items[i])
		}
		if !page.HasNextPage {
			return items, nil
		}
		opts.After = page.EndCursor
	}
}

// OpenIssuesBetween collects issues opened inside the window, paging a
// feed sorted descending by creation date and stopping at the first issue
// older than the window.
func (e *Engine) OpenIssuesBetween(ctx context.Context, org, repo string, w Window) ([]github.Item, error) {
	opts := github.ListOptions{
		Category: github.CategoryIssue,
		State:    github.StateOpen,
		Sort:     github.SortCreated,
		PageSize: e.pageSize,
	}

	var items []github.Item
	for {
		page, err := e.client.ListItems(ctx, org, repo, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			item := &page.Items[i]
			if Categorize(item) != github.CategoryIssue {
				continue
			}
			switch w.AdmitCreated(item.CreatedAt) {
			case Keep:
				items = append(items, *item)
			case Skip:
				continue
			case Stop:
				return items, nil
			}
		}
		if !page.HasNextPage {
			return items, nil
		}
		opts.After = page.EndCursor
	}
}

// MergedPullsBetween collects pull requests merged inside the window. The
// feed is sorted descending by update time because merge time is not a
// supported sort key; AdmitMerged reconstructs merge-date windowing from
// that order.
func (e *Engine) MergedPullsBetween(ctx context.Context, org, repo string, w Window) ([]github.Item, error) {
	opts := github.ListOptions{
		Category: github.CategoryPull,
		State:    github.StateClosed,
		Sort:     github.SortUpdated,
		PageSize: e.pageSize,
	}

	var items []github.Item
	for {
		page, err := e.client.ListItems(ctx, org, repo, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			item := &page.Items[i]
			if Categorize(item) != github.CategoryPull {
				continue
			}
			switch w.AdmitMerged(item.MergedAt, item.UpdatedAt) {
			case Keep:
				items = append(items, *item)
			case Skip:
				continue
			case Stop:
				return items, nil
			}
		}
		if !page.HasNextPage {
			return items, nil
		}
		opts.After = page.EndCursor
	}
}

// CheckRelease fetches the latest release and reports whether its tag
// differs from the last one seen. Releases carry no lifecycle; the stored
// record is simply overwritten.
func (e *Engine) CheckRelease(ctx context.Context, org, repo string) (*github.Release, bool, error) {
	rel, err := e.client.LatestRelease(ctx, org, repo)
	if err != nil {
		return nil, false, err
	}

	key := store.ReleaseKey(org, repo)
	prev, ok, err := e.store.Get(key)
	if err != nil {
		return nil, false, err
	}
	if ok && string(prev) == rel.TagName {
		return rel, false, nil
	}

	if err := e.store.Put(key, []byte(rel.TagName)); err != nil {
		return nil, false, fmt.Errorf("recording release %s for %s/%s: %w", rel.TagName, org, repo, err)
	}
	return rel, true, nil
}

func (e *Engine) key(org, repo string, category github.Category, bucket Status, number int) store.Key {
	return store.Key{
		Org:      org,
		Repo:     repo,
		Category: string(category),
		Bucket:   string(bucket),
		Number:   number,
	}
}
