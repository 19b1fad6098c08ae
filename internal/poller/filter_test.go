package poller

import (
	"encoding/json"
	"testing"

	"github.com/nkmitin/tg-relay/internal/telegram"
)

func update(t *testing.T, raw string) telegram.Update {
	t.Helper()

	var u telegram.Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}

	return u
}

func TestFilterByKind(t *testing.T) {
	message := update(t, `{"update_id":1,"message":{"text":"hi"}}`)
	poll := update(t, `{"update_id":2,"poll":{"id":"p"}}`)
	callback := update(t, `{"update_id":3,"callback_query":{"id":"c"}}`)

	tests := []struct {
		name    string
		allowed []string
		input   []telegram.Update
		wantIDs []int64
	}{
		{
			name:    "empty set keeps everything",
			allowed: nil,
			input:   []telegram.Update{message, poll, callback},
			wantIDs: []int64{1, 2, 3},
		},
		{
			name:    "single kind",
			allowed: []string{"message"},
			input:   []telegram.Update{message, poll},
			wantIDs: []int64{1},
		},
		{
			name:    "multiple kinds",
			allowed: []string{"message", "callback_query"},
			input:   []telegram.Update{message, poll, callback},
			wantIDs: []int64{1, 3},
		},
		{
			name:    "nothing matches",
			allowed: []string{"edited_message"},
			input:   []telegram.Update{message, poll},
			wantIDs: nil,
		},
		{
			name:    "wildcard collapses to unfiltered",
			allowed: []string{"*", "message"},
			input:   []telegram.Update{message, poll, callback},
			wantIDs: []int64{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := AllowedKindSet(tt.allowed)
			got := FilterByKind(tt.input, allowed)

			if len(got) != len(tt.wantIDs) {
				t.Fatalf("kept %d updates, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("kept[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFilterByKindIdempotent(t *testing.T) {
	input := []telegram.Update{
		update(t, `{"update_id":1,"message":{}}`),
		update(t, `{"update_id":2,"poll":{}}`),
		update(t, `{"update_id":3,"message":{}}`),
	}
	allowed := AllowedKindSet([]string{"message"})

	once := FilterByKind(input, allowed)
	twice := FilterByKind(once, allowed)

	if len(once) != len(twice) {
		t.Fatalf("filter not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("filter not idempotent at %d: %d vs %d", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestConfigNormalized(t *testing.T) {
	tests := []struct {
		name        string
		in          Config
		wantLimit   int
		wantTimeout int
		wantKinds   int
	}{
		{name: "defaults", in: Config{}, wantLimit: DefaultLimit, wantTimeout: 0, wantKinds: 0},
		{name: "limit clamped", in: Config{Limit: 500}, wantLimit: MaxLimit},
		{name: "negative timeout floored", in: Config{TimeoutSeconds: -5}, wantTimeout: 0},
		{name: "wildcard collapses", in: Config{AllowedKinds: []string{"message", "*"}}, wantLimit: DefaultLimit, wantKinds: 0},
		{name: "kinds kept", in: Config{Limit: 10, TimeoutSeconds: 30, AllowedKinds: []string{"message"}}, wantLimit: 10, wantTimeout: 30, wantKinds: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalized()

			if tt.wantLimit != 0 && got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
			if got.TimeoutSeconds != tt.wantTimeout {
				t.Errorf("TimeoutSeconds = %d, want %d", got.TimeoutSeconds, tt.wantTimeout)
			}
			if len(got.AllowedKinds) != tt.wantKinds {
				t.Errorf("AllowedKinds = %v, want %d entries", got.AllowedKinds, tt.wantKinds)
			}
		})
	}
}
