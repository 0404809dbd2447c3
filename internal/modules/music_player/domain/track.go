package domain

import (
	"net/url"
	"path"
	"strconv"
	"time"
)

// UnknownTitle is used for tracks whose metadata could not be resolved,
// such as raw file uploads.
const UnknownTitle = "Unknown"

// Track is a queued or currently playing media reference.
// A Track is immutable once created: the enqueue path fills in every field
// and nothing mutates it afterwards.
type Track struct {
	SourceURL string        // original or resolver-canonical media URL
	Title     string        // UnknownTitle when the resolver had nothing better
	Thumbnail string        // artwork URL, may be empty
	Duration  time.Duration // zero when unknown (e.g. raw file uploads)
	LocalFile bool          // direct file reference, bypasses playlist resolution
}

// NewFileTrack synthesizes a Track for a direct file reference.
// File uploads carry no probed metadata, so the duration stays zero.
func NewFileTrack(sourceURL string) Track {
	return Track{
		SourceURL: sourceURL,
		Title:     UnknownTitle,
		LocalFile: true,
	}
}

// IsFileURL reports whether rawURL points at a direct media file rather than
// something with playlist semantics. The check is structural (the URL path
// carries a file extension), so no resolver round-trip is needed. Input that
// does not parse as a URL is treated as a file reference, which is how raw
// attachment paths arrive.
func IsFileURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return path.Ext(u.Path) != ""
}

// FormattedDuration returns the track duration as mm:ss or hh:mm:ss.
func (t Track) FormattedDuration() string {
	return FormatDuration(t.Duration)
}

// FormatDuration renders a duration as mm:ss, or hh:mm:ss once it reaches an
// hour. Zero renders as "--:--" since a zero duration means "unknown" here.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}

	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
