package poller

import "github.com/nkmitin/tg-relay/internal/telegram"

// FilterByKind returns the updates whose payload contains at least one of the
// allowed kind keys. An empty (or nil) allowed set keeps every update. The
// server is asked to pre-filter via allowed_updates; this guards against it
// delivering kinds we did not ask for.
func FilterByKind(updates []telegram.Update, allowed map[string]struct{}) []telegram.Update {
	if len(allowed) == 0 {
		return updates
	}

	kept := make([]telegram.Update, 0, len(updates))
	for _, u := range updates {
		if u.HasAny(allowed) {
			kept = append(kept, u)
		}
	}

	return kept
}
