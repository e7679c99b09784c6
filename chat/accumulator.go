package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"datachat/segment"
)

// Accumulator collects streamed chunks and re-derives the segment list from
// the cumulative text on every append. It never patches the previous
// segment list, so delayed or re-ordered network delivery cannot leave the
// UI inconsistent with the final text.
type Accumulator struct {
	mu       sync.Mutex
	text     strings.Builder
	fallback []json.RawMessage
	onUpdate func(segments []segment.Segment)
}

// NewAccumulator creates an accumulator. fallback, when non-nil, is the
// out-of-band result payload handed through to the segmenter. onUpdate
// receives the full re-parsed segment list after each chunk.
func NewAccumulator(fallback []json.RawMessage, onUpdate func([]segment.Segment)) *Accumulator {
	return &Accumulator{
		fallback: fallback,
		onUpdate: onUpdate,
	}
}

// Append adds a chunk and re-parses the full text so far.
func (a *Accumulator) Append(chunk string) {
	a.mu.Lock()
	a.text.WriteString(chunk)
	full := a.text.String()
	a.mu.Unlock()

	if a.onUpdate != nil {
		a.onUpdate(segment.Parse(full, a.fallback))
	}
}

// Text returns the cumulative response text.
func (a *Accumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// Segments returns the segment list for the text so far.
func (a *Accumulator) Segments() []segment.Segment {
	return segment.Parse(a.Text(), a.fallback)
}
