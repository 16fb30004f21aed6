package normalize

// EventFilter is the set of event names a client asked to receive. The empty
// filter lets everything through.
type EventFilter map[string]struct{}

// NewEventFilter builds a filter from the names sent by the client.
func NewEventFilter(names []string) EventFilter {
	f := make(EventFilter, len(names))
	for _, name := range names {
		f[name] = struct{}{}
	}
	return f
}

// Has reports whether name was explicitly requested.
func (f EventFilter) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Allows reports whether an ordinary event called name may be forwarded.
func (f EventFilter) Allows(name string) bool {
	return len(f) == 0 || f.Has(name)
}

// Settings is the per-session state the normalizer reads.
type Settings struct {
	Filter         EventFilter
	ShowGuildEmoji bool
}
