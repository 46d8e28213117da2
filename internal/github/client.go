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

import "context"

// Client defines the paged-query capability the reconciliation engine
// consumes. This interface allows for easy mocking in tests.
type Client interface {
	// ListItems retrieves one page of issues or pull requests from the
	// specified repository. Pagination is cursor-based through
	// opts.After; the returned page carries the cursor for the next call.
	ListItems(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error)

	// GetItem retrieves the current detail of a single issue or pull
	// request by number. Used to classify items that have left the live
	// open set.
	GetItem(ctx context.Context, org, repo string, category Category, number int) (*Item, error)

	// LatestRelease retrieves the most recently published release of the
	// repository, or ErrRepoNotFound if the repository has none.
	LatestRelease(ctx context.Context, org, repo string) (*Release, error)
}
