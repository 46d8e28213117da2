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
	"io"
	"net/http"
	"time"

	"github.com/shurcooL/graphql"
	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
	"github.com/sirseerhq/sirseer-pulse/internal/giterror"
)

// GraphQLClient implements the Client interface using GitHub's GraphQL API.
// It provides paged access to issues and pull requests with server-side
// state filtering and ordering, plus single-item lookups for transition
// classification.
type GraphQLClient struct {
	client    *graphql.Client
	token     string
	inspector giterror.Inspector
}

// NewGraphQLClient creates a new GitHub GraphQL client with the provided token and endpoint.
// The client is configured with:
//   - Authentication via the provided token
//   - Custom GraphQL endpoint URL (e.g., for GitHub Enterprise)
//   - Response size limiting to prevent memory issues
//   - User-Agent header for API compliance
//   - Optimized connection pooling for API performance
func NewGraphQLClient(token, endpoint string) *GraphQLClient {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,
	}

	httpClient := &http.Client{
		Transport: &authTransport{
			token: token,
			base:  transport,
		},
	}

	return &GraphQLClient{
		client:    graphql.NewClient(endpoint, httpClient),
		token:     token,
		inspector: giterror.NewInspector(),
	}
}

// GraphQL protocol types. The shurcooL/graphql library derives variable
// declarations from Go type names, so these must match the GitHub schema
// exactly.
type (
	// IssueState is the GitHub GraphQL IssueState enum.
	IssueState string
	// PullRequestState is the GitHub GraphQL PullRequestState enum.
	PullRequestState string
	// OrderDirection is the GitHub GraphQL OrderDirection enum.
	OrderDirection string
	// IssueOrderField is the GitHub GraphQL IssueOrderField enum.
	IssueOrderField string
	// IssueOrder is the GitHub GraphQL IssueOrder input object.
	IssueOrder struct {
		Field     IssueOrderField `json:"field"`
		Direction OrderDirection  `json:"direction"`
	}
)

// ListItems retrieves one page of issues or pull requests, ordered
// descending by the requested sort field. State filtering happens server
// side; date windowing is the caller's concern because GitHub cannot order
// by merge date.
func (c *GraphQLClient) ListItems(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error) {
	opts = opts.normalize()
	if opts.Category == CategoryPull {
		return c.listPulls(ctx, org, repo, opts)
	}
	return c.listIssues(ctx, org, repo, opts)
}

func (c *GraphQLClient) listIssues(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error) {
	var query struct {
		Repository struct {
			Issues struct {
				PageInfo struct {
					HasNextPage graphql.Boolean
					EndCursor   graphql.String
				}
				Nodes []struct {
					Number    graphql.Int
					Title     graphql.String
					Body      graphql.String
					URL       graphql.String `graphql:"url"`
					CreatedAt time.Time
					UpdatedAt time.Time
					ClosedAt  *time.Time
					Author    struct {
						Login graphql.String
					} `graphql:"author"`
				}
			} `graphql:"issues(first: $first, after: $after, states: $states, orderBy: $orderBy)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":  graphql.String(org),
		"name":   graphql.String(repo),
		"first":  graphql.Int(int32(opts.PageSize)), // #nosec G115 - pageSize is capped at 100
		"after":  afterCursor(opts.After),
		"states": issueStates(opts.State),
		"orderBy": IssueOrder{
			Field:     issueOrderField(opts.Sort),
			Direction: "DESC",
		},
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, org, repo)
	}

	page := &ItemPage{
		HasNextPage: bool(query.Repository.Issues.PageInfo.HasNextPage),
		EndCursor:   string(query.Repository.Issues.PageInfo.EndCursor),
		Items:       make([]Item, 0, len(query.Repository.Issues.Nodes)),
	}
	for _, node := range query.Repository.Issues.Nodes {
		page.Items = append(page.Items, Item{
			Number:    int(node.Number),
			Title:     string(node.Title),
			Body:      string(node.Body),
			URL:       string(node.URL),
			Kind:      CategoryIssue,
			CreatedAt: node.CreatedAt,
			UpdatedAt: node.UpdatedAt,
			ClosedAt:  node.ClosedAt,
			Author:    string(node.Author.Login),
		})
	}
	return page, nil
}

func (c *GraphQLClient) listPulls(ctx context.Context, org, repo string, opts ListOptions) (*ItemPage, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				PageInfo struct {
					HasNextPage graphql.Boolean
					EndCursor   graphql.String
				}
				Nodes []struct {
					Number    graphql.Int
					Title     graphql.String
					Body      graphql.String
					URL       graphql.String `graphql:"url"`
					CreatedAt time.Time
					UpdatedAt time.Time
					ClosedAt  *time.Time
					MergedAt  *time.Time
					Author    struct {
						Login graphql.String
					} `graphql:"author"`
				}
			} `graphql:"pullRequests(first: $first, after: $after, states: $states, orderBy: $orderBy)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":  graphql.String(org),
		"name":   graphql.String(repo),
		"first":  graphql.Int(int32(opts.PageSize)), // #nosec G115 - pageSize is capped at 100
		"after":  afterCursor(opts.After),
		"states": pullStates(opts.State),
		"orderBy": IssueOrder{
			Field:     issueOrderField(opts.Sort),
			Direction: "DESC",
		},
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, org, repo)
	}

	page := &ItemPage{
		HasNextPage: bool(query.Repository.PullRequests.PageInfo.HasNextPage),
		EndCursor:   string(query.Repository.PullRequests.PageInfo.EndCursor),
		Items:       make([]Item, 0, len(query.Repository.PullRequests.Nodes)),
	}
	for _, node := range query.Repository.PullRequests.Nodes {
		page.Items = append(page.Items, Item{
			Number:    int(node.Number),
			Title:     string(node.Title),
			Body:      string(node.Body),
			URL:       string(node.URL),
			Kind:      CategoryPull,
			CreatedAt: node.CreatedAt,
			UpdatedAt: node.UpdatedAt,
			ClosedAt:  node.ClosedAt,
			MergedAt:  node.MergedAt,
			Author:    string(node.Author.Login),
		})
	}
	return page, nil
}

// GetItem retrieves a single issue or pull request by number.
func (c *GraphQLClient) GetItem(ctx context.Context, org, repo string, category Category, number int) (*Item, error) {
	if category == CategoryPull {
		return c.getPull(ctx, org, repo, number)
	}
	return c.getIssue(ctx, org, repo, number)
}

func (c *GraphQLClient) getIssue(ctx context.Context, org, repo string, number int) (*Item, error) {
	var query struct {
		Repository struct {
			Issue struct {
				Number    graphql.Int
				Title     graphql.String
				Body      graphql.String
				URL       graphql.String `graphql:"url"`
				CreatedAt time.Time
				UpdatedAt time.Time
				ClosedAt  *time.Time
				Author    struct {
					Login graphql.String
				} `graphql:"author"`
			} `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":  graphql.String(org),
		"name":   graphql.String(repo),
		"number": graphql.Int(int32(number)), // #nosec G115 - item numbers fit in int32
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, org, repo)
	}

	n := query.Repository.Issue
	return &Item{
		Number:    int(n.Number),
		Title:     string(n.Title),
		Body:      string(n.Body),
		URL:       string(n.URL),
		Kind:      CategoryIssue,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		ClosedAt:  n.ClosedAt,
		Author:    string(n.Author.Login),
	}, nil
}

func (c *GraphQLClient) getPull(ctx context.Context, org, repo string, number int) (*Item, error) {
	var query struct {
		Repository struct {
			PullRequest struct {
				Number    graphql.Int
				Title     graphql.String
				Body      graphql.String
				URL       graphql.String `graphql:"url"`
				CreatedAt time.Time
				UpdatedAt time.Time
				ClosedAt  *time.Time
				MergedAt  *time.Time
				Author    struct {
					Login graphql.String
				} `graphql:"author"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner":  graphql.String(org),
		"name":   graphql.String(repo),
		"number": graphql.Int(int32(number)), // #nosec G115 - item numbers fit in int32
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, org, repo)
	}

	n := query.Repository.PullRequest
	return &Item{
		Number:    int(n.Number),
		Title:     string(n.Title),
		Body:      string(n.Body),
		URL:       string(n.URL),
		Kind:      CategoryPull,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		ClosedAt:  n.ClosedAt,
		MergedAt:  n.MergedAt,
		Author:    string(n.Author.Login),
	}, nil
}

// LatestRelease retrieves the most recently published release of a repository.
func (c *GraphQLClient) LatestRelease(ctx context.Context, org, repo string) (*Release, error) {
	var query struct {
		Repository struct {
			LatestRelease *struct {
				Name        graphql.String
				TagName     graphql.String
				URL         graphql.String `graphql:"url"`
				PublishedAt time.Time
			} `graphql:"latestRelease"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": graphql.String(org),
		"name":  graphql.String(repo),
	}

	if err := c.client.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(err, org, repo)
	}

	rel := query.Repository.LatestRelease
	if rel == nil {
		return nil, fmt.Errorf("no releases published in %s/%s: %w", org, repo, pulseerrors.ErrRepoNotFound)
	}
	return &Release{
		Name:        string(rel.Name),
		TagName:     string(rel.TagName),
		URL:         string(rel.URL),
		PublishedAt: rel.PublishedAt,
	}, nil
}

// afterCursor converts a cursor string to a nullable GraphQL variable so the
// first page can pass null instead of an empty cursor.
func afterCursor(after string) *graphql.String {
	if after == "" {
		return nil
	}
	cursor := graphql.String(after)
	return &cursor
}

// issueStates maps the state filter to GraphQL issue states.
func issueStates(state ItemState) []IssueState {
	switch state {
	case StateClosed:
		return []IssueState{"CLOSED"}
	case StateAll:
		return []IssueState{"OPEN", "CLOSED"}
	default:
		return []IssueState{"OPEN"}
	}
}

// pullStates maps the state filter to GraphQL pull request states. Closed
// includes merged: the reconciliation engine distinguishes the two from
// timestamps, matching how the REST API folds merged into closed.
func pullStates(state ItemState) []PullRequestState {
	switch state {
	case StateClosed:
		return []PullRequestState{"CLOSED", "MERGED"}
	case StateAll:
		return []PullRequestState{"OPEN", "CLOSED", "MERGED"}
	default:
		return []PullRequestState{"OPEN"}
	}
}

// issueOrderField maps a sort field to the GraphQL order field enum. The
// same enum values apply to issues and pull requests.
func issueOrderField(sort SortField) IssueOrderField {
	if sort == SortUpdated {
		return "UPDATED_AT"
	}
	return "CREATED_AT"
}

// mapError converts GraphQL/HTTP errors to application-specific sentinel
// errors with actionable messages. Rate limit is checked first because a 403
// can be both an auth failure and a rate limit response.
func (c *GraphQLClient) mapError(err error, org, repo string) error {
	if err == nil {
		return nil
	}

	if c.inspector.IsRateLimitError(err) {
		return fmt.Errorf("GitHub API rate limit exceeded. Please wait before retrying: %w", pulseerrors.ErrRateLimit)
	}

	if c.inspector.IsAuthError(err) {
		return fmt.Errorf("GitHub API authentication failed. Please provide a valid token via --token flag or GITHUB_TOKEN environment variable: %w", pulseerrors.ErrInvalidToken)
	}

	if c.inspector.IsNotFoundError(err) {
		return fmt.Errorf("repository '%s/%s' not found. Please check the repository name and your access permissions: %w", org, repo, pulseerrors.ErrRepoNotFound)
	}

	if c.inspector.IsNetworkError(err) {
		return fmt.Errorf("network error connecting to GitHub API. Please check your internet connection and try again: %w", pulseerrors.ErrNetworkFailure)
	}

	return fmt.Errorf("GitHub API request failed for %s/%s: %w", org, repo, err)
}

// authTransport adds authentication header and safety limits to HTTP requests
type authTransport struct {
	token string
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	req = req.Clone(req.Context())

	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("User-Agent", "sirseer-pulse/"+Version)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Apply response size limit (10MB)
	if resp.Body != nil {
		resp.Body = &limitedReader{
			ReadCloser: resp.Body,
			limit:      10 * 1024 * 1024,
		}
	}

	return resp, nil
}

// Version is stamped by the build; the transport reports it in User-Agent.
var Version = "dev"

// limitedReader caps how many bytes can be read from a response body.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

func (r *limitedReader) Read(p []byte) (int, error) {
	if r.read >= r.limit {
		return 0, fmt.Errorf("response size exceeds %d byte limit", r.limit)
	}
	if int64(len(p)) > r.limit-r.read {
		p = p[:r.limit-r.read]
	}
	n, err := r.ReadCloser.Read(p)
	r.read += int64(n)
	return n, err
}
