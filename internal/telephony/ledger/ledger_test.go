package ledger

import "testing"

type fakeRequest struct {
	canceled int
}

func (r *fakeRequest) Cancel() { r.canceled++ }

func TestCompleteRemovesEntryOnce(t *testing.T) {
	l := New("test")
	req := &fakeRequest{}
	e := l.Enqueue(KindAnswer, nil).Bind(req)

	if !l.Pending(KindAnswer) {
		t.Fatal("answer should be pending")
	}
	if !l.Complete(e) {
		t.Fatal("first Complete should report tracked")
	}
	if l.Complete(e) {
		t.Fatal("second Complete should report untracked")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if req.canceled != 0 {
		t.Errorf("completed request was canceled %d times", req.canceled)
	}
}

func TestCancelAllSuppressesCompletions(t *testing.T) {
	l := New("test")
	a, b := &fakeRequest{}, &fakeRequest{}
	ea := l.Enqueue(KindHold, nil).Bind(a)
	eb := l.Enqueue(KindDTMF, nil).Bind(b)

	l.CancelAll()

	if a.canceled != 1 || b.canceled != 1 {
		t.Fatalf("canceled = %d/%d, want 1/1", a.canceled, b.canceled)
	}
	// Late completions find nothing tracked.
	if l.Complete(ea) || l.Complete(eb) {
		t.Fatal("completion after CancelAll must report untracked")
	}
	if l.Pending(KindHold) {
		t.Error("nothing should be pending after CancelAll")
	}
}

func TestCancelAllOnEmptyLedger(t *testing.T) {
	l := New("test")
	l.CancelAll()
	l.CancelAll()
	if l.Len() != 0 {
		t.Errorf("Len() = %d", l.Len())
	}
}

func TestCancelNotifierReplacesRequestCancel(t *testing.T) {
	l := New("test")
	req := &fakeRequest{}
	notified := 0
	e := l.Enqueue(KindDial, "5550100").Bind(req).OnCancel(func() { notified++ })

	l.CancelAll()

	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
	if req.canceled != 0 {
		t.Errorf("request canceled %d times, want 0", req.canceled)
	}
	if l.Tracked(e) {
		t.Error("entry must not be tracked after cancel")
	}
	if e.Data.(string) != "5550100" {
		t.Errorf("Data = %v", e.Data)
	}
}

func TestCancelSingleEntry(t *testing.T) {
	l := New("test")
	first, second := &fakeRequest{}, &fakeRequest{}
	e1 := l.Enqueue(KindTone, nil).Bind(first)
	l.Enqueue(KindTone, nil).Bind(second)

	if got := l.Find(KindTone); got != e1 {
		t.Fatal("Find should return the oldest entry")
	}
	if !l.Cancel(e1) {
		t.Fatal("Cancel should report tracked")
	}
	if l.Cancel(e1) {
		t.Fatal("second Cancel should report untracked")
	}
	if first.canceled != 1 || second.canceled != 0 {
		t.Errorf("canceled = %d/%d, want 1/0", first.canceled, second.canceled)
	}
	if !l.Pending(KindTone) {
		t.Error("second tone request should still be pending")
	}
}

func TestCancelAllFromCompletionCallback(t *testing.T) {
	l := New("test")
	var inner *Entry
	outer := l.Enqueue(KindHangup, nil).OnCancel(func() {
		// A cancel notifier that tears down again must not loop.
		l.CancelAll()
	})
	inner = l.Enqueue(KindAnswer, nil).Bind(&fakeRequest{})

	l.CancelAll()

	if l.Tracked(outer) || l.Tracked(inner) {
		t.Error("entries must be gone after CancelAll")
	}
}
