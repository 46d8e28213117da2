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
	"errors"
	"testing"
	"time"

	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
	"github.com/sirseerhq/sirseer-pulse/internal/github"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestClassify(t *testing.T) {
	closed := time.Date(2022, 11, 20, 10, 0, 0, 0, time.UTC)
	merged := time.Date(2022, 11, 20, 9, 59, 0, 0, time.UTC)

	tests := []struct {
		name       string
		item       github.Item
		want       Status
		wantErr    bool
		errTarget  error
	}{
		{
			name: "no timestamps is open",
			item: github.Item{Number: 1},
			want: StatusOpen,
		},
		{
			name: "closed and merged is merged",
			item: github.Item{Number: 2, ClosedAt: timePtr(closed), MergedAt: timePtr(merged)},
			want: StatusMerged,
		},
		{
			name: "closed only is closed",
			item: github.Item{Number: 3, ClosedAt: timePtr(closed)},
			want: StatusClosed,
		},
		{
			name:      "merged without closed violates the invariant",
			item:      github.Item{Number: 4, MergedAt: timePtr(merged)},
			wantErr:   true,
			errTarget: pulseerrors.ErrInconsistentItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(&tt.item)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, tt.errTarget) {
					t.Errorf("error %v does not wrap %v", err, tt.errTarget)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		item github.Item
		want github.Category
	}{
		{
			name: "typed kind wins",
			item: github.Item{Kind: github.CategoryPull, URL: "https://github.com/o/r/issues/5"},
			want: github.CategoryPull,
		},
		{
			name: "untyped pull request recognized by URL",
			item: github.Item{URL: "https://github.com/Manta-Network/Manta/pull/871"},
			want: github.CategoryPull,
		},
		{
			name: "untyped issue recognized by URL",
			item: github.Item{URL: "https://github.com/Manta-Network/Manta/issues/870"},
			want: github.CategoryIssue,
		},
		{
			name: "no kind and no URL defaults to issue",
			item: github.Item{Number: 1},
			want: github.CategoryIssue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(&tt.item); got != tt.want {
				t.Errorf("Categorize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeItemCorruptRecord(t *testing.T) {
	_, err := decodeItem([]byte("{not json"))
	if !errors.Is(err, pulseerrors.ErrStateCorrupt) {
		t.Errorf("error %v does not wrap ErrStateCorrupt", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	merged := time.Date(2022, 11, 24, 12, 0, 0, 0, time.UTC)
	item := &github.Item{
		Number:    871,
		Title:     "Bump runtime version",
		URL:       "https://github.com/Manta-Network/Manta/pull/871",
		Kind:      github.CategoryPull,
		CreatedAt: merged.Add(-48 * time.Hour),
		UpdatedAt: merged,
		ClosedAt:  timePtr(merged),
		MergedAt:  timePtr(merged),
		Author:    "octocat",
	}

	data, err := encodeItem(item)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeItem(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Number != item.Number || got.Title != item.Title || !got.MergedAt.Equal(*item.MergedAt) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, item)
	}
	if got.Kind != github.CategoryPull {
		t.Errorf("Kind = %q, want %q", got.Kind, github.CategoryPull)
	}
}
