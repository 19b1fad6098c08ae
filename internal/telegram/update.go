package telegram

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Update is a single entry returned by getUpdates. The payload is kept as the
// raw JSON the API sent: which well-known key it contains (message,
// callback_query, poll, ...) determines the update kind, and more than one
// key is tolerated even though the API sends exactly one in practice.
type Update struct {
	ID   int64
	raw  json.RawMessage
	keys map[string]struct{}
}

// UnmarshalJSON records the update_id and the set of payload keys while
// preserving the original bytes for lossless forwarding.
func (u *Update) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}

	idRaw, ok := fields["update_id"]
	if !ok {
		return fmt.Errorf("decode update: missing update_id")
	}
	if err := json.Unmarshal(idRaw, &u.ID); err != nil {
		return fmt.Errorf("decode update_id: %w", err)
	}

	u.keys = make(map[string]struct{}, len(fields)-1)
	for key := range fields {
		if key == "update_id" {
			continue
		}
		u.keys[key] = struct{}{}
	}

	u.raw = append(json.RawMessage(nil), data...)

	return nil
}

// MarshalJSON emits the update exactly as it was received, with no field
// renaming.
func (u Update) MarshalJSON() ([]byte, error) {
	if u.raw == nil {
		return json.Marshal(map[string]int64{"update_id": u.ID})
	}

	return u.raw, nil
}

// Has reports whether the update payload contains the given kind key.
func (u Update) Has(kind string) bool {
	_, ok := u.keys[kind]
	return ok
}

// HasAny reports whether the update payload contains at least one of the
// given kind keys. An empty set matches nothing.
func (u Update) HasAny(kinds map[string]struct{}) bool {
	for kind := range kinds {
		if u.Has(kind) {
			return true
		}
	}

	return false
}

// Kinds returns the payload keys of the update in sorted order.
func (u Update) Kinds() []string {
	kinds := make([]string, 0, len(u.keys))
	for key := range u.keys {
		kinds = append(kinds, key)
	}
	sort.Strings(kinds)

	return kinds
}

// Raw returns the original JSON bytes of the update.
func (u Update) Raw() json.RawMessage {
	return u.raw
}

// UpdatesResponse is the getUpdates envelope.
type UpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// User is the subset of the getMe response used for health probing.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}
