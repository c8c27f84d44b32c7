// Package progress defines the events long running operations (scans, bulk
// enrichment, organizer apply) emit after each processed unit of work.
package progress

import (
	"sync"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

type Event struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Percent returns the completed share of the work as a whole number between 0
// and 100. An empty batch counts as complete.
func (e Event) Percent() int {
	if e.Total <= 0 {
		return 100
	}
	p := e.Current * 100 / e.Total
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// Sink receives progress events. Engines call it synchronously from their
// processing loop, so implementations should return quickly.
type Sink interface {
	Progress(e Event)
}

type SinkFunc func(e Event)

func (f SinkFunc) Progress(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Multi fans every event out to each non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range active {
			s.Progress(e)
		}
	})
}

// Channel forwards events to a channel without ever blocking the engine. When
// the buffer is full the oldest undelivered event is dropped in favor of the
// newest one, since only the latest progress matters to a renderer.
type Channel struct {
	mu sync.Mutex
	ch chan Event
}

func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the channel.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

func (c *Channel) Progress(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.ch <- e:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// Close closes the underlying channel. No events may be sent afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.ch)
}
