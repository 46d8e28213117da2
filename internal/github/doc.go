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

// Package github provides a client for GitHub's GraphQL API to fetch issues,
// pull requests, and releases. It abstracts the complexity of GraphQL
// queries behind a paged-query interface with support for cursor pagination,
// server-side state filtering, error classification, and retry.
//
// The package includes:
//   - A Client interface consumed by the reconciliation engine
//   - A GraphQL implementation using the shurcooL/graphql library
//   - A retry decorator built on codeGROOVE-dev/retry
//   - A scriptable mock client for testing
//
// Basic usage:
//
//	client := github.NewRetryClient(
//	    github.NewGraphQLClient(token, "https://api.github.com/graphql"), nil)
//	page, err := client.ListItems(ctx, "golang", "go", github.ListOptions{
//	    Category: github.CategoryIssue,
//	    State:    github.StateOpen,
//	})
//	if err != nil {
//	    // Handle error
//	}
//	for _, item := range page.Items {
//	    // Process item
//	}
package github
