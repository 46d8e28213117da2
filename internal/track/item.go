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
	"encoding/json"
	"fmt"

	pulseerrors "github.com/sirseerhq/sirseer-pulse/internal/errors"
	"github.com/sirseerhq/sirseer-pulse/internal/github"
)

// Status is an item's lifecycle state. The string values double as status
// bucket names in the store, so they must stay stable across releases.
type Status string

// Lifecycle states. Issues only ever reach StatusClosed; pull requests
// reach StatusMerged or StatusClosed. Both are terminal.
const (
	StatusOpen   Status = "open"
	StatusMerged Status = "merged"
	StatusClosed Status = "closed"
)

// TransitionEvent records one detected status change of one item. Events
// are produced at most once per transition per reconciliation run; a re-run
// against an already-updated store produces none.
type TransitionEvent struct {
	Org      string          `json:"org"`
	Repo     string          `json:"repo"`
	Category github.Category `json:"category"`
	Number   int             `json:"number"`
	From     Status          `json:"from"`
	To       Status          `json:"to"`
	Item     github.Item     `json:"item"`
}

// EventSink receives transition events. Delivery is at-least-once and never
// rolls back the store mutation that produced the event.
type EventSink interface {
	Publish(event TransitionEvent)
}

// ChannelSink publishes events to a channel, decoupling the engine from
// whatever consumes them.
type ChannelSink chan TransitionEvent

// Publish implements EventSink.
func (s ChannelSink) Publish(event TransitionEvent) {
	s <- event
}

// encodeItem renders an item in the stable store format.
func encodeItem(item *github.Item) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode item #%d: %w", item.Number, err)
	}
	return data, nil
}

// decodeItem reconstructs an item from a persisted record. Malformed
// records surface as ErrStateCorrupt so the failure is scoped to the
// repository being reconciled.
func decodeItem(data []byte) (*github.Item, error) {
	var item github.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode persisted item: %v: %w", err, pulseerrors.ErrStateCorrupt)
	}
	return &item, nil
}
