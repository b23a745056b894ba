// Package eventlog is the bounded, replayable buffer of published events.
package eventlog

import (
	"errors"
	"time"

	"chattysync/internal/chatty"
)

// DefaultCapacity is the number of events retained when none is configured.
const DefaultCapacity = 10000

// ErrTooFarBehind is returned when events after the requested id were
// already evicted, the reader has to start over from a full snapshot.
var ErrTooFarBehind = errors.New("too far behind")

// Log is a ring of events with dense, strictly increasing ids. It is not
// safe for concurrent use, the owner serializes access.
type Log struct {
	capacity int
	buf      []chatty.Event
	start    int
	count    int
	lastID   int64
}

// New creates a log that holds at most capacity events, restored from a
// previously persisted event list.
func New(capacity int, restored []chatty.Event) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{capacity: capacity}
	for _, e := range restored {
		if e.ID <= l.lastID {
			continue
		}
		l.push(e)
	}
	return l
}

func (l *Log) push(e chatty.Event) {
	if len(l.buf) < l.capacity {
		l.buf = append(l.buf, e)
		l.count++
	} else {
		l.buf[(l.start+l.count)%l.capacity] = e
		if l.count == l.capacity {
			l.start = (l.start + 1) % l.capacity
		} else {
			l.count++
		}
	}
	l.lastID = e.ID
}

func (l *Log) at(i int) chatty.Event {
	return l.buf[(l.start+i)%len(l.buf)]
}

// Append assigns ids continuing from the last id to a batch of events and
// adds them, evicting the oldest events beyond capacity. Events with a zero
// date are stamped with now. The batch as stored is returned.
func (l *Log) Append(now time.Time, events []chatty.Event) []chatty.Event {
	out := make([]chatty.Event, len(events))
	for i, e := range events {
		e.ID = l.lastID + 1
		if e.Date.IsZero() {
			e.Date = now
		}
		l.push(e)
		out[i] = e
	}
	return out
}

// LastID is the id of the most recent event ever appended, 0 if none.
func (l *Log) LastID() int64 {
	return l.lastID
}

// OldestID is the id of the oldest retained event, 0 if the log is empty.
func (l *Log) OldestID() int64 {
	if l.count == 0 {
		return 0
	}
	return l.at(0).ID
}

func (l *Log) Len() int {
	return l.count
}

// Since returns every retained event with an id greater than lastID,
// oldest first. It fails with ErrTooFarBehind when events in between were
// evicted. A lastID at or past the newest event yields no events.
func (l *Log) Since(lastID int64) ([]chatty.Event, error) {
	if l.count == 0 || lastID >= l.lastID {
		return nil, nil
	}
	oldest := l.at(0).ID
	if lastID < oldest-1 {
		return nil, ErrTooFarBehind
	}

	first := int(lastID + 1 - oldest)
	out := make([]chatty.Event, 0, l.count-first)
	for i := first; i < l.count; i++ {
		out = append(out, l.at(i))
	}
	return out, nil
}

// All returns a copy of every retained event, oldest first.
func (l *Log) All() []chatty.Event {
	out := make([]chatty.Event, l.count)
	for i := range out {
		out[i] = l.at(i)
	}
	return out
}
