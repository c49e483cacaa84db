// Package ledger keeps track of the modem requests a channel has in flight.
//
// A channel enqueues every request it issues and resolves the entry from the
// request's completion callback. Complete tells the callback whether the
// entry is still tracked; after CancelAll nothing is tracked, so late
// completions can tell they must not touch the channel any more.
package ledger

import (
	"log/slog"

	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// Kind names the operation an entry stands for.
type Kind int

const (
	KindDial Kind = iota
	KindAnswer
	KindHangup
	KindHold
	KindDTMF
	KindTone
	KindSplit
	KindMerge
	KindCreate
)

func (k Kind) String() string {
	switch k {
	case KindDial:
		return "dial"
	case KindAnswer:
		return "answer"
	case KindHangup:
		return "hangup"
	case KindHold:
		return "hold"
	case KindDTMF:
		return "dtmf"
	case KindTone:
		return "tone"
	case KindSplit:
		return "split"
	case KindMerge:
		return "merge"
	case KindCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Entry is one tracked request.
type Entry struct {
	id       uint64
	kind     Kind
	request  modem.Request
	onCancel func()
	// Data is opaque context for the completion callback.
	Data any
}

// Kind returns the operation of the entry.
func (e *Entry) Kind() Kind { return e.kind }

// Bind attaches the modem request once it has been issued.
func (e *Entry) Bind(r modem.Request) *Entry {
	e.request = r
	return e
}

// OnCancel replaces request cancellation with fn. The request is then left
// running and its completion must clean up on its own.
func (e *Entry) OnCancel(fn func()) *Entry {
	e.onCancel = fn
	return e
}

func (e *Entry) cancel() {
	if e.onCancel != nil {
		e.onCancel()
		return
	}
	if e.request != nil {
		e.request.Cancel()
	}
}

// Ledger is the set of in-flight requests of one channel. It is only used
// from the dispatch loop and needs no locking.
type Ledger struct {
	owner   string
	next    uint64
	entries []*Entry
}

// New returns an empty ledger; owner is used in logs.
func New(owner string) *Ledger {
	return &Ledger{owner: owner}
}

// Enqueue tracks a new request of the given kind.
func (l *Ledger) Enqueue(kind Kind, data any) *Entry {
	l.next++
	e := &Entry{id: l.next, kind: kind, Data: data}
	l.entries = append(l.entries, e)
	return e
}

// Complete removes e and reports whether it was still tracked.
func (l *Ledger) Complete(e *Entry) bool {
	for i, x := range l.entries {
		if x == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Tracked reports whether e is still outstanding.
func (l *Ledger) Tracked(e *Entry) bool {
	for _, x := range l.entries {
		if x == e {
			return true
		}
	}
	return false
}

// Pending reports whether a request of kind is outstanding.
func (l *Ledger) Pending(kind Kind) bool {
	return l.Find(kind) != nil
}

// Find returns the oldest outstanding entry of kind, or nil.
func (l *Ledger) Find(kind Kind) *Entry {
	for _, e := range l.entries {
		if e.kind == kind {
			return e
		}
	}
	return nil
}

// Len returns the number of outstanding entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Cancel cancels one entry. It returns false if e was not tracked.
func (l *Ledger) Cancel(e *Entry) bool {
	if !l.Complete(e) {
		return false
	}
	e.cancel()
	return true
}

// CancelAll cancels every outstanding entry, newest first. It is safe to
// call on an empty ledger and from a completion callback.
func (l *Ledger) CancelAll() {
	if len(l.entries) == 0 {
		return
	}
	entries := l.entries
	l.entries = nil

	slog.Debug("[Ledger] Canceling requests", "owner", l.owner, "count", len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entries[i].cancel()
	}
}
