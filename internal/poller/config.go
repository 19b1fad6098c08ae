package poller

const (
	// DefaultLimit is the batch size requested when none is configured.
	DefaultLimit = 100
	// MaxLimit is the largest batch size getUpdates accepts.
	MaxLimit = 100
	// DefaultTimeoutSeconds is the long-poll hold time requested when none
	// is configured.
	DefaultTimeoutSeconds = 60
	// WildcardKind in the allowed list collapses the filter to "all kinds".
	WildcardKind = "*"
)

// Config is the immutable per-session polling configuration.
type Config struct {
	// Limit is the maximum number of updates per batch, clamped to
	// [1, MaxLimit].
	Limit int
	// TimeoutSeconds is how long the server may hold the long-poll
	// connection open. Zero means the request returns immediately.
	TimeoutSeconds int
	// AllowedKinds restricts which update kinds are delivered. Empty, or
	// containing WildcardKind, means all kinds.
	AllowedKinds []string
}

func (c Config) normalized() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Limit > MaxLimit {
		c.Limit = MaxLimit
	}
	if c.TimeoutSeconds < 0 {
		c.TimeoutSeconds = 0
	}
	c.AllowedKinds = collapseWildcard(c.AllowedKinds)

	return c
}

func collapseWildcard(kinds []string) []string {
	for _, kind := range kinds {
		if kind == WildcardKind {
			return nil
		}
	}

	return kinds
}

// AllowedKindSet turns the configured kind list into a lookup set. A nil or
// empty result means "no filtering".
func AllowedKindSet(kinds []string) map[string]struct{} {
	kinds = collapseWildcard(kinds)
	if len(kinds) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		set[kind] = struct{}{}
	}

	return set
}
