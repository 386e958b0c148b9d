package presentation

import (
	"slices"
	"sync"

	"github.com/trogers1052/holdings-service/internal/models"
)

// EventKind identifies which part of the state a published event changed
type EventKind int

const (
	EventLoading EventKind = iota + 1
	EventRows
	EventSummary
	EventError
	EventRowsFailed
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventRows:
		return "rows"
	case EventSummary:
		return "summary"
	case EventError:
		return "error"
	case EventRowsFailed:
		return "rows_failed"
	default:
		return "unknown"
	}
}

// State is what a view renders
type State struct {
	Rows         []Row    `json:"rows"`
	Summary      *Summary `json:"summary"`
	IsLoading    bool     `json:"is_loading"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// ShowError reports whether the view should display ErrorMessage.
func (s State) ShowError() bool {
	return s.ErrorMessage != ""
}

// Event is delivered to listeners after every change, carrying the state as of that change
type Event struct {
	Kind  EventKind
	State State
	// Err is set on EventRowsFailed.
	Err error
}

// Listener receives store events in publication order. Listeners may call
// back into the store or trigger a new load; changes made from a listener are
// delivered after the current event.
type Listener func(Event)

// Store holds the presentation state and fans changes out to listeners.
//
// The rows stream can fail terminally (FailRows); once failed, row updates
// are dropped until ResetRows reopens the stream for the next load.
//
// Every change queues its events and one goroutine at a time drains the queue,
// so no store lock is held while a listener runs. A publisher may return
// before its events are delivered when another goroutine is draining.
type Store struct {
	// mu guards state, rowsErr, pending and holds
	mu      sync.RWMutex
	state   State
	rowsErr error
	pending []Event
	holds   int

	// delivering is held by the goroutine draining pending
	delivering sync.Mutex

	lmu       sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore returns a store with empty rows, no summary and no error.
func NewStore() *Store {
	return &Store{
		state:     State{Rows: []Row{}},
		listeners: make(map[uint64]Listener),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Rows = slices.Clone(s.state.Rows)
	if s.state.Summary != nil {
		summary := *s.state.Summary
		st.Summary = &summary
	}
	return st
}

// RowsErr returns the error the rows stream failed with, if any.
func (s *Store) RowsErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowsErr
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// SetLoading publishes the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) []Event {
		st.IsLoading = loading
		return []Event{{Kind: EventLoading}}
	})
}

// SetHoldings publishes rows and summary derived from already sorted holdings.
// An empty set publishes empty rows and a nil summary.
func (s *Store) SetHoldings(sorted []models.Holding) {
	rows := BuildRows(sorted)
	summary := BuildSummary(sorted)

	s.update(func(st *State) []Event {
		var events []Event
		if s.rowsErr == nil {
			st.Rows = rows
			events = append(events, Event{Kind: EventRows})
		}
		st.Summary = summary
		return append(events, Event{Kind: EventSummary})
	})
}

// SetError publishes a user visible error message.
func (s *Store) SetError(message string) {
	s.update(func(st *State) []Event {
		st.ErrorMessage = message
		return []Event{{Kind: EventError}}
	})
}

// ClearError publishes the absence of an error.
func (s *Store) ClearError() {
	s.SetError("")
}

// FailRows terminates the rows stream with err.
func (s *Store) FailRows(err error) {
	s.update(func(st *State) []Event {
		s.rowsErr = err
		return []Event{{Kind: EventRowsFailed, Err: err}}
	})
}

// ResetRows reopens a failed rows stream. The current rows are kept.
func (s *Store) ResetRows() {
	s.mu.Lock()
	s.rowsErr = nil
	s.mu.Unlock()
}

// Batch runs fn and holds back event delivery until fn returns. Changes made
// inside fn are still applied immediately and delivered in order.
func (s *Store) Batch(fn func()) {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.holds--
		s.mu.Unlock()
		s.deliver()
	}()

	fn()
}

func (s *Store) update(mutate func(st *State) []Event) {
	s.mu.Lock()
	events := mutate(&s.state)
	current := s.snapshotLocked()
	for _, e := range events {
		e.State = current
		s.pending = append(s.pending, e)
	}
	held := s.holds > 0
	s.mu.Unlock()

	if !held {
		s.deliver()
	}
}

// deliver drains pending events unless another goroutine, or an outer call on
// this one, is already draining.
func (s *Store) deliver() {
	for {
		if !s.delivering.TryLock() {
			return
		}
		for {
			e, ok := s.next()
			if !ok {
				break
			}
			for _, l := range s.subscribers() {
				l(e)
			}
		}
		s.delivering.Unlock()

		// an event queued while we held delivering would otherwise be stranded
		if !s.deliverable() {
			return
		}
	}
}

func (s *Store) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds > 0 || len(s.pending) == 0 {
		return Event{}, false
	}
	e := s.pending[0]
	s.pending[0] = Event{}
	s.pending = s.pending[1:]
	return e, true
}

func (s *Store) deliverable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holds == 0 && len(s.pending) > 0
}

func (s *Store) subscribers() []Listener {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
