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

import "time"

// Category identifies the two kinds of trackable item. The string values
// double as store key segments, so they must stay stable across releases.
type Category string

// Trackable item categories.
const (
	CategoryIssue Category = "issues"
	CategoryPull  Category = "prs"
)

// Item is the unified record for an issue or a pull request. It carries the
// full field set the tracker persists; a record written by one run must be
// exactly reconstructible by a later run, so the JSON tags are part of the
// storage format and must not change.
type Item struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	URL       string     `json:"url"`
	Kind      Category   `json:"kind,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	Author    string     `json:"author,omitempty"`
}

// ItemPage is one page of items from a list query, with the pagination
// information needed to fetch the next page.
type ItemPage struct {
	Items       []Item
	HasNextPage bool
	EndCursor   string
}

// ItemState filters list queries by lifecycle state on the server side.
type ItemState string

// Server-side state filters.
const (
	StateOpen   ItemState = "open"
	StateClosed ItemState = "closed"
	StateAll    ItemState = "all"
)

// SortField selects the timestamp a list query is ordered by. GitHub cannot
// sort by merge date, so callers that window on merge time sort by update
// time and filter client-side.
type SortField string

// Supported sort fields.
const (
	SortCreated SortField = "created"
	SortUpdated SortField = "updated"
)

// ListOptions configures a paged list query.
type ListOptions struct {
	// Category selects issues or pull requests.
	Category Category

	// State filters by lifecycle state. Defaults to StateOpen.
	State ItemState

	// Sort selects the ordering timestamp. Defaults to SortCreated for
	// issues and SortUpdated for pull requests. Results are always
	// descending; the window filter depends on that.
	Sort SortField

	// PageSize controls how many items to fetch per page.
	// Defaults to 50 if not specified. Maximum is 100 per GitHub's API limits.
	PageSize int

	// After is the cursor for pagination. Empty string fetches from the
	// beginning. Use ItemPage.EndCursor from the previous response.
	After string
}

// Release is the latest published release of a repository.
type Release struct {
	Name        string    `json:"name"`
	TagName     string    `json:"tag_name"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Default values for fetch operations
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// normalize fills in defaults and clamps the page size to API limits.
func (o ListOptions) normalize() ListOptions {
	if o.State == "" {
		o.State = StateOpen
	}
	if o.Sort == "" {
		if o.Category == CategoryPull {
			o.Sort = SortUpdated
		} else {
			o.Sort = SortCreated
		}
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
	return o
}
