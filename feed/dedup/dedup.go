package dedup

import (
	"strings"
	"sync"
)

// RotationToken is the substring that marks a log file header line. A
// freshly rotated file contains exactly one occurrence.
const RotationToken = "AdminLog"

type sourceState struct {
	seen   map[string]struct{}
	marker string // header line of the file generation last accepted
}

// Tracker remembers which lines each source has already produced, so a
// log file that only ever grows is processed incrementally. Rotation of
// the underlying file resets the memory for that source.
type Tracker struct {
	mu      sync.Mutex
	sources map[string]*sourceState
}

// New creates a Tracker.
func New() *Tracker {
	return &Tracker{sources: make(map[string]*sourceState)}
}

func (t *Tracker) state(source string) *sourceState {
	st, ok := t.sources[source]
	if !ok {
		st = &sourceState{seen: make(map[string]struct{})}
		t.sources[source] = st
	}
	return st
}

// Seen reports whether the source has already produced this exact line.
func (t *Tracker) Seen(source, line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.state(source).seen[line]
	return ok
}

// Mark records the line as processed for the source.
func (t *Tracker) Mark(source, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(source).seen[line] = struct{}{}
}

// MaybeRotate inspects a header line carrying the rotation token. If it
// differs from the stored marker and the file holds only this one token
// occurrence, the file was rotated: the seen-set is cleared once and
// the new marker stored. Returns true when a rotation was applied.
//
// The compare-before-evaluate order makes rotation idempotent: once the
// marker is stored, re-reading the same header on later polls is a
// no-op even though the token count still equals one.
func (t *Tracker) MaybeRotate(source, headerLine string, tokenCount int) bool {
	if !strings.Contains(headerLine, RotationToken) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(source)
	if st.marker == headerLine {
		return false
	}
	if tokenCount != 1 {
		return false
	}
	st.marker = headerLine
	st.seen = make(map[string]struct{})
	return true
}

// Reset drops all state for the source.
func (t *Tracker) Reset(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sources, source)
}

// CountToken returns how many rotation tokens the file content holds.
func CountToken(content string) int {
	return strings.Count(content, RotationToken)
}
