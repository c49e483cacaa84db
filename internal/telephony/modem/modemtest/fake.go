// Package modemtest provides a scriptable modem.Service for tests.
//
// Requests are recorded and stay pending until the test completes them, so
// tests control the interleaving of completions and modem events.
package modemtest

import (
	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// Request is a recorded modem request.
type Request struct {
	Op       string
	Call     *Call
	Arg      string
	CLIR     modem.CLIR
	Canceled bool

	done     func(error)
	dialDone func(modem.Call, error)
	finished bool
}

// Cancel implements modem.Request.
func (r *Request) Cancel() { r.Canceled = true }

// Complete delivers the completion of a non-dial request. Completions of
// canceled requests are still delivered, as a real modem may do.
func (r *Request) Complete(err error) {
	if r.finished {
		return
	}
	r.finished = true
	if r.dialDone != nil {
		r.dialDone(nil, err)
		return
	}
	if r.done != nil {
		r.done(err)
	}
}

// CompleteDial delivers the completion of a dial request.
func (r *Request) CompleteDial(call modem.Call, err error) {
	if r.finished {
		return
	}
	r.finished = true
	r.dialDone(call, err)
}

// Finished reports whether the request was completed.
func (r *Request) Finished() bool { return r.finished }

// Call is a fake modem call.
type Call struct {
	path string
	fake *Fake
}

func (c *Call) Path() string { return c.path }

func (c *Call) Answer(done func(error)) modem.Request {
	return c.fake.record(&Request{Op: "Answer", Call: c, done: done})
}

func (c *Call) Hangup(done func(error)) modem.Request {
	return c.fake.record(&Request{Op: "Hangup", Call: c, done: done})
}

// Fake implements modem.Service.
type Fake struct {
	Requests  []*Request
	Emergency []string
}

var _ modem.Service = (*Fake)(nil)

// New returns an empty fake modem.
func New() *Fake {
	return &Fake{}
}

// NewCall returns a call object with the given path.
func (f *Fake) NewCall(path string) *Call {
	return &Call{path: path, fake: f}
}

func (f *Fake) record(r *Request) *Request {
	f.Requests = append(f.Requests, r)
	return r
}

func (f *Fake) Dial(number string, clir modem.CLIR, done func(modem.Call, error)) modem.Request {
	return f.record(&Request{Op: "Dial", Arg: number, CLIR: clir, dialDone: done})
}

func (f *Fake) HoldAndAnswer(done func(error)) modem.Request {
	return f.record(&Request{Op: "HoldAndAnswer", done: done})
}

func (f *Fake) SwapCalls(done func(error)) modem.Request {
	return f.record(&Request{Op: "SwapCalls", done: done})
}

func (f *Fake) CreateMultiparty(done func(error)) modem.Request {
	return f.record(&Request{Op: "CreateMultiparty", done: done})
}

func (f *Fake) PrivateChat(call modem.Call, done func(error)) modem.Request {
	c, _ := call.(*Call)
	return f.record(&Request{Op: "PrivateChat", Call: c, done: done})
}

func (f *Fake) SendTones(tones string, done func(error)) modem.Request {
	return f.record(&Request{Op: "SendTones", Arg: tones, done: done})
}

func (f *Fake) StartDTMF(call modem.Call, tone byte, done func(error)) modem.Request {
	c, _ := call.(*Call)
	return f.record(&Request{Op: "StartDTMF", Call: c, Arg: string(tone), done: done})
}

func (f *Fake) StopDTMF(call modem.Call, done func(error)) modem.Request {
	c, _ := call.(*Call)
	return f.record(&Request{Op: "StopDTMF", Call: c, done: done})
}

func (f *Fake) EmergencyNumbers() []string {
	return f.Emergency
}

// Count returns how many requests of op were issued.
func (f *Fake) Count(op string) int {
	n := 0
	for _, r := range f.Requests {
		if r.Op == op {
			n++
		}
	}
	return n
}

// Last returns the most recent request of op, or nil.
func (f *Fake) Last(op string) *Request {
	for i := len(f.Requests) - 1; i >= 0; i-- {
		if f.Requests[i].Op == op {
			return f.Requests[i]
		}
	}
	return nil
}

// Pending returns the unfinished requests of op in issue order.
func (f *Fake) Pending(op string) []*Request {
	var out []*Request
	for _, r := range f.Requests {
		if r.Op == op && !r.finished {
			out = append(out, r)
		}
	}
	return out
}
