package domain

import "time"

// Queue is the FIFO of pending tracks for one session. It tracks the
// aggregate duration of its contents alongside the slice so displays never
// need to re-sum, and every mutation updates both in the same step.
//
// The currently playing track is never part of the queue; promoting the head
// into the current slot happens via PopHead.
type Queue struct {
	tracks   []Track
	duration time.Duration
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if there are no pending tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// Duration returns the aggregate duration of all pending tracks.
// It excludes the currently playing track.
func (q *Queue) Duration() time.Duration {
	return q.duration
}

// Append adds tracks to the tail and adds their durations to the total.
func (q *Queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
	for _, t := range tracks {
		q.duration += t.Duration
	}
}

// PopHead removes and returns the head track, subtracting its duration from
// the total. The second return value is false when the queue is empty.
func (q *Queue) PopHead() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}

	head := q.tracks[0]
	q.tracks = q.tracks[1:]
	q.duration -= head.Duration
	return head, true
}

// RemoveAt removes and returns the track at the given 0-based index.
// The second return value is false when the index is out of bounds.
func (q *Queue) RemoveAt(index int) (Track, bool) {
	if index < 0 || index >= len(q.tracks) {
		return Track{}, false
	}

	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	q.duration -= removed.Duration
	return removed, true
}

// RemoveRange removes and returns the tracks in the 0-based half-open range
// [start, end), subtracting their summed duration in the same step.
// Returns nil when the range does not lie within the current bounds.
func (q *Queue) RemoveRange(start, end int) []Track {
	if start < 0 || end > len(q.tracks) || start >= end {
		return nil
	}

	removed := make([]Track, end-start)
	copy(removed, q.tracks[start:end])

	q.tracks = append(q.tracks[:start], q.tracks[end:]...)
	for _, t := range removed {
		q.duration -= t.Duration
	}
	return removed
}

// Slice returns a copy of up to n tracks starting at the given 0-based index.
// An out-of-bounds start yields an empty slice.
func (q *Queue) Slice(start, n int) []Track {
	if start < 0 || start >= len(q.tracks) || n <= 0 {
		return nil
	}

	end := start + n
	if end > len(q.tracks) {
		end = len(q.tracks)
	}

	page := make([]Track, end-start)
	copy(page, q.tracks[start:end])
	return page
}

// Clear drops all pending tracks and resets the aggregate duration.
// Returns the number of tracks dropped.
func (q *Queue) Clear() int {
	n := len(q.tracks)
	q.tracks = nil
	q.duration = 0
	return n
}
