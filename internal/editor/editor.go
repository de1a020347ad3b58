package editor

import (
	"strconv"
	"sync"
	"time"
)

// Editor holds the current state of one canvas and advances it through
// Reduce. It is meant for a single event loop and is not safe for
// concurrent use.
type Editor struct {
	state State
	ids   IDSource
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDSource overrides the time-derived id source.
func WithIDSource(ids IDSource) Option {
	return func(e *Editor) {
		e.ids = ids
	}
}

// WithBounds sets the initial canvas bounds.
func WithBounds(b Bounds) Option {
	return func(e *Editor) {
		e.state.Bounds = b
	}
}

// New returns an editor showing the seed graph.
func New(opts ...Option) *Editor {
	e := &Editor{state: NewState(), ids: TimeIDs(time.Now)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch applies ev and returns the new state.
func (e *Editor) Dispatch(ev Event) State {
	e.state = Reduce(e.state, ev, e.ids)
	return e.state
}

// State returns the current state.
func (e *Editor) State() State {
	return e.state
}

// Graph returns the current graph.
func (e *Editor) Graph() Graph {
	return e.state.Graph
}

// TimeIDs returns an IDSource of millisecond timestamps. Ids drawn within
// the same millisecond are bumped so the source never repeats.
func TimeIDs(now func() time.Time) IDSource {
	var (
		mu   sync.Mutex
		last int64
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		ms := now().UnixMilli()
		if ms <= last {
			ms = last + 1
		}
		last = ms
		return strconv.FormatInt(ms, 10)
	}
}

// SequentialIDs returns an IDSource yielding prefix1, prefix2, and so on.
func SequentialIDs(prefix string) IDSource {
	var n int
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}
