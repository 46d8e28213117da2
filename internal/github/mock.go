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

import (
	"context"
	"fmt"
)

// MockClient is a scriptable implementation of the Client interface for
// tests. Pages are served in order, linked by generated cursors, so paging
// loops exercise the same cursor handling they use against the real API.
type MockClient struct {
	// IssuePages and PullPages are served for the respective category.
	IssuePages []ItemPage
	PullPages  []ItemPage

	// Details backs GetItem lookups; populate with SetDetail.
	Details map[string]*Item

	// Release is returned by LatestRelease.
	Release *Release

	// Errors to inject per operation.
	ListErr    error
	GetErr     error
	ReleaseErr error

	// Call tracking for verification.
	ListCalls    int
	PagesFetched int
	GetCalls     int
	LastOrg      string
	LastRepo     string
	LastOpts     ListOptions
}

// NewMockClient creates an empty mock. Tests populate pages and details.
func NewMockClient() *MockClient {
	return &MockClient{Details: make(map[string]*Item)}
}

// SetDetail registers the item GetItem returns for a category and number.
func (m *MockClient) SetDetail(category Category, item *Item) {
	if m.Details == nil {
		m.Details = make(map[string]*Item)
	}
	m.Details[detailKey(category, item.Number)] = item
}

// ListItems implements the Client interface.
func (m *MockClient) ListItems(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error) {
	m.ListCalls++
	m.LastOrg = org
	m.LastRepo = repo
	m.LastOpts = opts

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	pages := m.IssuePages
	if opts.Category == CategoryPull {
		pages = m.PullPages
	}
	if len(pages) == 0 {
		return &ItemPage{}, nil
	}

	idx, err := m.pageIndex(pages, opts.After)
	if err != nil {
		return nil, err
	}
	m.PagesFetched++

	page := pages[idx]
	if idx < len(pages)-1 {
		page.HasNextPage = true
		if page.EndCursor == "" {
			page.EndCursor = fmt.Sprintf("cursor-%d", idx)
		}
	}
	return &page, nil
}

// pageIndex resolves a continuation cursor to a page position.
func (m *MockClient) pageIndex(pages []ItemPage, after string) (int, error) {
	if after == "" {
		return 0, nil
	}
	for i := range pages {
		cursor := pages[i].EndCursor
		if cursor == "" {
			cursor = fmt.Sprintf("cursor-%d", i)
		}
		if cursor == after {
			if i+1 >= len(pages) {
				return 0, fmt.Errorf("cursor %q points past the last page", after)
			}
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown cursor %q", after)
}

// GetItem implements the Client interface.
func (m *MockClient) GetItem(ctx context.Context, org, repo string, category Category, number int) (*Item, error) {
	m.GetCalls++

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	item, ok := m.Details[detailKey(category, number)]
	if !ok {
		return nil, fmt.Errorf("mock has no detail for %s #%d", category, number)
	}
	copied := *item
	return &copied, nil
}

// LatestRelease implements the Client interface.
func (m *MockClient) LatestRelease(ctx context.Context, org, repo string) (*Release, error) {
	if m.ReleaseErr != nil {
		return nil, m.ReleaseErr
	}
	if m.Release == nil {
		return nil, fmt.Errorf("mock has no release for %s/%s", org, repo)
	}
	copied := *m.Release
	return &copied, nil
}

func detailKey(category Category, number int) string {
	return fmt.Sprintf("%s#%d", category, number)
}
