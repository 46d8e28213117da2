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

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirseerhq/sirseer-pulse/internal/github"
	"github.com/sirseerhq/sirseer-pulse/internal/track"
)

func mergeEvent() track.TransitionEvent {
	return track.TransitionEvent{
		Org:      "Manta-Network",
		Repo:     "Manta",
		Category: github.CategoryPull,
		Number:   871,
		From:     track.StatusOpen,
		To:       track.StatusMerged,
		Item: github.Item{
			Number: 871,
			Title:  "Bump runtime version",
			URL:    "https://github.com/Manta-Network/Manta/pull/871",
		},
	}
}

func TestTransitionMessage(t *testing.T) {
	tests := []struct {
		name  string
		event track.TransitionEvent
		want  string
	}{
		{
			name:  "merged pull request",
			event: mergeEvent(),
			want:  "**Manta** **PR merged**: Bump runtime version https://github.com/Manta-Network/Manta/pull/871",
		},
		{
			name: "closed issue",
			event: track.TransitionEvent{
				Repo:     "substrate",
				Category: github.CategoryIssue,
				Number:   42,
				From:     track.StatusOpen,
				To:       track.StatusClosed,
				Item: github.Item{
					Title: "Node crashes on sync",
					URL:   "https://github.com/paritytech/substrate/issues/42",
				},
			},
			want: "**substrate** **issue closed**: Node crashes on sync https://github.com/paritytech/substrate/issues/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransitionMessage(tt.event); got != tt.want {
				t.Errorf("TransitionMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReleaseMessage(t *testing.T) {
	rel := &github.Release{TagName: "v4.0.5", URL: "https://github.com/Manta-Network/Manta/releases/tag/v4.0.5"}
	got := ReleaseMessage("Manta", rel)
	want := "**Manta** **new release**: v4.0.5 https://github.com/Manta-Network/Manta/releases/tag/v4.0.5"
	if got != want {
		t.Errorf("ReleaseMessage() = %q, want %q", got, want)
	}

	rel.Name = "Calamari Runtime v4.0.5"
	if got := ReleaseMessage("Manta", rel); !strings.Contains(got, "Calamari Runtime v4.0.5") {
		t.Errorf("named release message = %q", got)
	}
}

func TestNotifyTransitionPostsJSON(t *testing.T) {
	var body webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, nil)
	if err := n.NotifyTransition(context.Background(), mergeEvent()); err != nil {
		t.Fatalf("NotifyTransition failed: %v", err)
	}
	if !strings.Contains(body.Content, "**Manta**") || !strings.Contains(body.Content, "pull/871") {
		t.Errorf("payload content = %q", body.Content)
	}
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, nil)
	if err := n.NotifyTransition(context.Background(), mergeEvent()); err != nil {
		t.Fatalf("delivery should recover after a transient failure: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", calls.Load())
	}
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewDiscordNotifier(server.URL, nil)
	if err := n.NotifyTransition(context.Background(), mergeEvent()); err == nil {
		t.Fatal("expected error for rejected payload")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestRunDrainsChannel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	events := make(chan track.TransitionEvent, 3)
	for range 3 {
		events <- mergeEvent()
	}
	close(events)

	n := NewDiscordNotifier(server.URL, nil)
	n.Run(context.Background(), events)

	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewDiscordNotifier("http://127.0.0.1:0", nil)
	done := make(chan struct{})
	go func() {
		n.Run(ctx, make(chan track.TransitionEvent))
		close(done)
	}()
	<-done
}
