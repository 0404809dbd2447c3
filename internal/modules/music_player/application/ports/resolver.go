package ports

import (
	"context"
	"time"
)

// MediaResolver translates a user-supplied URL into playable track metadata.
// Resolution is network I/O and may fail or time out; callers bound it with
// a context deadline.
type MediaResolver interface {
	// Resolve loads metadata for url. flatPlaylist requests the cheap,
	// entries-only form of playlist resolution, skipping per-entry probing.
	Resolve(ctx context.Context, url string, flatPlaylist bool) (*ResolveResult, error)
}

// ResolveKind classifies a resolver result.
type ResolveKind string

const (
	ResolveKindTrack    ResolveKind = "track"
	ResolveKindPlaylist ResolveKind = "playlist"
	ResolveKindEmpty    ResolveKind = "empty"
	ResolveKindError    ResolveKind = "error"
)

// ResolveResult is the outcome of resolving one URL: a single item, an
// ordered playlist, or nothing usable.
type ResolveResult struct {
	Kind    ResolveKind
	Entries []ResolvedEntry
}

// ResolvedEntry is one playable item from the resolver. Entries without a
// usable URL are skipped by the enqueue path.
type ResolvedEntry struct {
	URL       string
	Title     string
	Thumbnail string
	Duration  time.Duration // zero when the resolver reported none
}
