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
	"strings"

	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
	"github.com/sirseerhq/sirseer-pulse/internal/github"
)

// Classify derives an item's lifecycle status from its timestamps. It is
// pure and total over consistent inputs:
//
//	no close timestamp            -> Open
//	close and merge timestamps    -> Merged
//	close timestamp only          -> Closed
//
// A merge timestamp without a close timestamp violates the Merged=>Closed
// invariant and is reported as ErrInconsistentItem rather than silently
// coerced.
func Classify(item *github.Item) (Status, error) {
	switch {
	case item.ClosedAt == nil && item.MergedAt == nil:
		return StatusOpen, nil
	case item.ClosedAt != nil && item.MergedAt != nil:
		return StatusMerged, nil
	case item.ClosedAt != nil:
		return StatusClosed, nil
	default:
		return "", fmt.Errorf("item #%d has a merge timestamp but no close timestamp: %w",
			item.Number, pulseerrors.ErrInconsistentItem)
	}
}

// Categorize determines whether an item is an issue or a pull request. The
// fetcher tags every record it produces with a typed Kind, which is
// authoritative. For records of unknown origin (legacy store entries, or
// feeds that mix the two kinds) it falls back to inspecting the canonical
// URL: GitHub pull request URLs carry a "/pull/" path segment, issue URLs
// carry "/issues/".
func Categorize(item *github.Item) github.Category {
	if item.Kind != "" {
		return item.Kind
	}
	if strings.Contains(item.URL, "/pull/") {
		return github.CategoryPull
	}
	return github.CategoryIssue
}
