package transcript

import (
	"strings"
	"sync"
)

// Update describes a transcript change ready to be sent to the client.
type Update struct {
	// Transcript is the display view: finalized text plus the current
	// partial segment, single-space separated and trimmed.
	Transcript string

	// IsPartial indicates whether the segment that produced this update
	// was a partial (interim) result.
	IsPartial bool

	// SegmentID is the provider-assigned segment identifier.
	SegmentID string
}

// segmentState records how far a segment id has progressed. A partial may
// be superseded by its final; a finalized id accepts nothing further.
type segmentState int

const (
	segmentPartial segmentState = iota
	segmentFinal
)

// Buffer accumulates transcript segments for a single interview session.
// The upstream ASR re-emits the same segment under the same id, so every
// apply is deduplicated by segment id. Finalized text only grows; partials
// only replace the current in-progress segment.
type Buffer struct {
	mu        sync.Mutex
	full      string
	current   string
	processed map[string]segmentState
}

// NewBuffer creates an empty transcript buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		processed: make(map[string]segmentState),
	}
}

// ApplyPartial records an interim segment. It returns the update to emit
// and true, or a zero update and false when the segment id was already
// applied.
func (b *Buffer) ApplyPartial(segmentID, text string) (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.processed[segmentID]; seen {
		return Update{}, false
	}
	b.processed[segmentID] = segmentPartial
	b.current = text

	return Update{
		Transcript: b.display(),
		IsPartial:  true,
		SegmentID:  segmentID,
	}, true
}

// ApplyFinal records a committed segment: the text is appended to the
// finalized transcript and the current partial is cleared. A final
// supersedes a partial with the same id; a repeated final is a no-op.
func (b *Buffer) ApplyFinal(segmentID, text string) (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state, seen := b.processed[segmentID]; seen && state == segmentFinal {
		return Update{}, false
	}
	b.processed[segmentID] = segmentFinal
	b.full = strings.TrimSpace(b.full + " " + text)
	b.current = ""

	return Update{
		Transcript: b.display(),
		IsPartial:  false,
		SegmentID:  segmentID,
	}, true
}

// Snapshot returns the finalized transcript accumulated so far.
func (b *Buffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full
}

// Display returns the view the client sees: finalized text plus the
// current partial segment.
func (b *Buffer) Display() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.display()
}

// Clear resets the buffer: finalized text, current partial, and the set of
// processed segment ids.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.full = ""
	b.current = ""
	b.processed = make(map[string]segmentState)
}

// display must be called with b.mu held.
func (b *Buffer) display() string {
	return strings.TrimSpace(b.full + " " + b.current)
}
