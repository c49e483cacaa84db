package conference

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/loop/looptest"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/modem/modemtest"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/protocol/protocoltest"
	"github.com/sebas/ringbridge/internal/telephony/tones/tonestest"
)

const self = protocol.Handle("+15550000")

// directory resolves ids for both sides, as the registry does.
type directory struct {
	calls map[string]*call.Session
	confs map[string]*Session
}

func (d *directory) Call(id string) (*call.Session, bool) {
	s, ok := d.calls[id]
	return s, ok
}

func (d *directory) Conference(id string) (call.Conference, bool) {
	c, ok := d.confs[id]
	if !ok {
		return nil, false
	}
	return c, true
}

type fixture struct {
	modem *modemtest.Fake
	rec   *protocoltest.Recorder
	dir   *directory
	n     int
}

func newFixture() *fixture {
	return &fixture{
		modem: modemtest.New(),
		rec:   &protocoltest.Recorder{},
		dir: &directory{
			calls: map[string]*call.Session{},
			confs: map[string]*Session{},
		},
	}
}

// active returns an answered incoming call registered in the directory.
func (f *fixture) active(t *testing.T) *call.Session {
	t.Helper()
	f.n++
	id := fmt.Sprintf("incoming%d", f.n)
	peer := protocol.Handle(fmt.Sprintf("+1555100%d", f.n))
	c := f.modem.NewCall(fmt.Sprintf("/ril_0/voicecall%02d", f.n))

	s := call.NewIncoming(call.Config{
		ID:          id,
		Modem:       f.modem,
		Emitter:     f.rec,
		Tones:       &tonestest.Fake{},
		Scheduler:   &looptest.Manual{},
		Conferences: f.dir,
		Self:        self,
		OnClosed:    func(s *call.Session) { delete(f.dir.calls, s.ID()) },
	}, c, peer, modem.StateIncoming, false)
	s.Announce()
	if err := s.Answer(nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	f.modem.Last("Answer").Complete(nil)
	s.HandleEvent(modem.StateChanged{Call: c, State: modem.StateActive})
	f.dir.calls[id] = s
	return s
}

func (f *fixture) conference(id string) *Session {
	c := New(Config{
		ID:       id,
		Modem:    f.modem,
		Emitter:  f.rec,
		Calls:    f.dir,
		Self:     self,
		OnClosed: func(s *Session) { delete(f.dir.confs, s.ID()) },
	})
	f.dir.confs[id] = c
	return c
}

// created returns a live conference of a and b.
func (f *fixture) created(t *testing.T, a, b *call.Session) *Session {
	t.Helper()
	conf := f.conference("conference1")
	if err := conf.Create(a, b, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.modem.Last("CreateMultiparty").Complete(nil)
	if conf.State() != Created {
		t.Fatalf("state = %s, want created", conf.State())
	}
	return conf
}

type result struct {
	calls int
	err   error
}

func (r *result) done() protocol.Completion {
	return func(err error) {
		r.calls++
		r.err = err
	}
}

func announced(rec *protocoltest.Recorder, id string) bool {
	for _, info := range rec.Channels {
		if info.ID == id {
			return true
		}
	}
	return false
}

func TestMergeThenRemoveDissolves(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)

	conf := f.conference("conference1")
	var res result
	if err := conf.Create(a, b, res.done()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if announced(f.rec, "conference1") {
		t.Fatal("conference announced before the modem created it")
	}
	f.modem.Last("CreateMultiparty").Complete(nil)

	if res.calls != 1 || res.err != nil {
		t.Fatalf("create completion = %+v", res)
	}
	if !announced(f.rec, "conference1") {
		t.Fatal("conference not announced")
	}
	if a.ConferenceID() != "conference1" || b.ConferenceID() != "conference1" {
		t.Fatalf("member conferences = %q, %q", a.ConferenceID(), b.ConferenceID())
	}
	if got := conf.CurrentMembers(); got != 2 {
		t.Fatalf("current members = %d, want 2", got)
	}
	for _, h := range []protocol.Handle{self, a.Peer(), b.Peer()} {
		if !conf.Group().IsMember(h) {
			t.Errorf("%s should be a conference member", h)
		}
	}
	if got := len(f.rec.Merged); got != 2 {
		t.Errorf("merged events = %d, want 2", got)
	}

	a.HandleEvent(modem.StateChanged{Call: a.Call(), State: modem.StateDisconnected, CauseType: cause.Remote})

	removed := f.rec.RemovedFrom("conference1")
	if len(removed) != 2 {
		t.Fatalf("removed events = %d, want 2", len(removed))
	}
	if removed[0].Member != a.ID() {
		t.Errorf("first removal = %s, want %s", removed[0].Member, a.ID())
	}
	last := removed[1]
	if last.Member != b.ID() || last.Change.Message != "Deactivating conference" ||
		last.Change.Reason != protocol.ReasonSeparated || last.Change.Actor != self {
		t.Errorf("dissolution removal = %+v", last)
	}

	if !conf.Closed() || conf.CurrentMembers() != 0 {
		t.Errorf("conference closed=%v current=%d", conf.Closed(), conf.CurrentMembers())
	}
	if got := f.rec.ClosedCount("conference1"); got != 1 {
		t.Errorf("conference Closed emitted %d times", got)
	}
	if _, ok := f.dir.confs["conference1"]; ok {
		t.Error("conference still registered")
	}
	if b.ConferenceID() != "" {
		t.Errorf("b still points at %q", b.ConferenceID())
	}
	if b.State() != modem.StateActive || b.Released() {
		t.Errorf("b state=%s released=%v, want active call", b.State(), b.Released())
	}
	if got := f.modem.Count("Hangup"); got != 0 {
		t.Errorf("dissolution issued %d hangups", got)
	}
}

func TestCreateFailureLeavesMembersAlone(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.conference("conference1")

	var res result
	if err := conf.Create(a, b, res.done()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.modem.Last("CreateMultiparty").Complete(errors.New("org.ofono.Error.Failed"))

	if res.err == nil {
		t.Fatal("create should fail")
	}
	if announced(f.rec, "conference1") || f.rec.ClosedCount("conference1") != 0 {
		t.Error("failed conference must stay invisible")
	}
	if !conf.Closed() {
		t.Error("failed conference should be discarded")
	}
	if a.ConferenceID() != "" || b.ConferenceID() != "" {
		t.Error("members should not reference the failed conference")
	}
	if a.Released() || b.Released() {
		t.Error("members should be unaffected")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	a := f.active(t)

	conf := f.conference("conference1")
	if err := conf.Create(a, a, nil); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Errorf("same channel twice: %v", err)
	}

	pending := call.NewIncoming(call.Config{
		ID:      "incoming99",
		Modem:   f.modem,
		Emitter: f.rec,
		Self:    self,
	}, f.modem.NewCall("/ril_0/voicecall99"), "+15559999", modem.StateIncoming, false)
	pending.Announce()

	err := conf.Create(a, pending, nil)
	if !errors.Is(err, protocol.ErrNotAvailable) {
		t.Fatalf("unanswered second call: %v", err)
	}
	if msg := protocol.Message(err); !strings.HasPrefix(msg, "Second initial: ") {
		t.Errorf("message = %q", msg)
	}
	err = conf.Create(pending, a, nil)
	if msg := protocol.Message(err); !strings.HasPrefix(msg, "First initial: ") {
		t.Errorf("message = %q", msg)
	}
	if got := f.modem.Count("CreateMultiparty"); got != 0 {
		t.Errorf("CreateMultiparty issued %d times", got)
	}
}

func TestMergeAddsMemberAndKeepsConferenceOnRemoval(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.created(t, a, b)
	c := f.active(t)

	var res result
	if err := conf.Merge(c, res.done()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := conf.Merge(c, nil); err == nil {
		t.Error("second merge while one is pending should fail")
	}
	f.modem.Last("CreateMultiparty").Complete(nil)

	if res.err != nil || conf.CurrentMembers() != 3 || c.ConferenceID() != "conference1" {
		t.Fatalf("merge result err=%v current=%d conf=%q", res.err, conf.CurrentMembers(), c.ConferenceID())
	}
	if err := conf.Merge(c, nil); err == nil {
		t.Error("merging a member again should fail")
	}

	c.HandleEvent(modem.StateChanged{Call: c.Call(), State: modem.StateDisconnected, CauseType: cause.Remote})

	if conf.Closed() || conf.CurrentMembers() != 2 {
		t.Fatalf("closed=%v current=%d, want live conference of 2", conf.Closed(), conf.CurrentMembers())
	}
	if conf.Group().IsMember(c.Peer()) {
		t.Error("removed member still in group")
	}
	last, _ := f.rec.LastMembers("conference1")
	if last.Message != "Member channel removed" {
		t.Errorf("removal message = %q", last.Message)
	}
}

func TestMergeFailureFreesSlot(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.created(t, a, b)
	c := f.active(t)

	var res result
	if err := conf.Merge(c, res.done()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	f.modem.Last("CreateMultiparty").Complete(errors.New("failed"))

	if res.err == nil || conf.Has(c.ID()) || c.ConferenceID() != "" {
		t.Errorf("err=%v has=%v conf=%q", res.err, conf.Has(c.ID()), c.ConferenceID())
	}
}

func TestConferenceIsLimitedToSevenMembers(t *testing.T) {
	f := newFixture()
	conf := f.created(t, f.active(t), f.active(t))
	for i := 2; i < MaxMembers; i++ {
		if err := conf.Merge(f.active(t), nil); err != nil {
			t.Fatalf("Merge %d: %v", i, err)
		}
		f.modem.Last("CreateMultiparty").Complete(nil)
	}
	if got := conf.CurrentMembers(); got != MaxMembers {
		t.Fatalf("current = %d", got)
	}
	err := conf.Merge(f.active(t), nil)
	if protocol.Message(err) != "Conference is full" {
		t.Errorf("eighth merge: %v", err)
	}
}

func TestConferenceHold(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.created(t, a, b)

	var res result
	if err := conf.RequestHold(true, res.done()); err != nil {
		t.Fatalf("RequestHold: %v", err)
	}
	if conf.HoldState() != protocol.PendingHold {
		t.Fatalf("hold = %s", conf.HoldState())
	}
	if err := conf.RequestHold(true, nil); !errors.Is(err, protocol.ErrNotAvailable) {
		t.Errorf("second hold: %v", err)
	}
	if got := f.modem.Count("SwapCalls"); got != 1 {
		t.Errorf("SwapCalls = %d, want 1", got)
	}

	f.modem.Last("SwapCalls").Complete(nil)
	a.HandleEvent(modem.StateChanged{Call: a.Call(), State: modem.StateHeld})
	b.HandleEvent(modem.StateChanged{Call: b.Call(), State: modem.StateHeld})

	if res.err != nil || res.calls != 1 {
		t.Fatalf("completion = %+v", res)
	}
	hold, _ := f.rec.LastHold("conference1")
	if hold.State != protocol.Held || hold.Reason != protocol.HoldReasonRequested {
		t.Errorf("conference hold = %+v", hold)
	}
}

func TestConferenceHoldFailureReverts(t *testing.T) {
	f := newFixture()
	conf := f.created(t, f.active(t), f.active(t))

	var res result
	if err := conf.RequestHold(true, res.done()); err != nil {
		t.Fatalf("RequestHold: %v", err)
	}
	f.modem.Last("SwapCalls").Complete(errors.New("failed"))

	hold, _ := f.rec.LastHold("conference1")
	if res.err == nil || hold.State != protocol.Unheld || hold.Reason != protocol.HoldReasonResourceNotAvailable {
		t.Errorf("err=%v hold=%+v", res.err, hold)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.created(t, a, b)

	if err := conf.RemoveMember("+15557777", protocol.ReasonNone, "", nil); !errors.Is(err, protocol.ErrPermissionDenied) {
		t.Errorf("stranger: %v", err)
	}

	if err := conf.RemoveMember(a.Peer(), protocol.ReasonNone, "bye", nil); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if r := f.modem.Last("Hangup"); r == nil || r.Call.Path() != a.Call().Path() {
		t.Fatalf("expected hangup of %s", a.Call().Path())
	}
}

func TestHangupAllReleasesEveryMember(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.created(t, a, b)

	var res result
	if err := conf.RemoveMember(self, protocol.ReasonNone, "", res.done()); err != nil {
		t.Fatalf("RemoveMember(self): %v", err)
	}
	if got := f.modem.Count("Hangup"); got != 2 {
		t.Errorf("hangups = %d, want 2", got)
	}
	if !conf.Closed() || f.rec.ClosedCount("conference1") != 1 {
		t.Error("conference should be closed once")
	}

	// Members disconnecting afterwards must not touch the closed conference.
	before := len(f.rec.RemovedFrom("conference1"))
	a.HandleEvent(modem.StateChanged{Call: a.Call(), State: modem.StateDisconnected, CauseType: cause.Local})
	if got := len(f.rec.RemovedFrom("conference1")); got != before {
		t.Errorf("removals after close: %d, want %d", got, before)
	}
}

func TestMemberLeavingDuringCreationDropsConference(t *testing.T) {
	f := newFixture()
	a, b := f.active(t), f.active(t)
	conf := f.conference("conference1")

	var res result
	if err := conf.Create(a, b, res.done()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	conf.MemberLeft(a.ID(), protocol.MembersChange{Removed: []protocol.Handle{a.Peer()}})

	if !conf.Closed() || announced(f.rec, "conference1") {
		t.Error("conference should be dropped silently")
	}
	if res.calls != 1 || !errors.Is(res.err, protocol.ErrDisconnected) {
		t.Errorf("pending create completion = %+v", res)
	}
	if r := f.modem.Last("CreateMultiparty"); !r.Canceled {
		t.Error("modem request should be canceled")
	}
}

func TestStateString(t *testing.T) {
	if got := State(9).String(); got != "Unknown(9)" {
		t.Errorf("got %q", got)
	}
}
