package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	types "github.com/sebas/ringbridge/api/types/v1"
	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/loop/looptest"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/modem/modemtest"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/protocol/protocoltest"
	"github.com/sebas/ringbridge/internal/telephony/registry"
)

type env struct {
	loop  *loop.Loop
	reg   *registry.Registry
	modem *modemtest.Fake
	api   *Server
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvTimeout(t, 2*time.Second)
}

// newEnvTimeout builds an env whose operations wait at most timeout.
func newEnvTimeout(t *testing.T, timeout time.Duration) *env {
	t.Helper()
	l := loop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	m := modemtest.New()
	reg := registry.New(registry.Config{
		Modem:     m,
		Emitter:   &protocoltest.Recorder{},
		Scheduler: &looptest.Manual{},
		Self:      "+15550000",
	})
	e := &env{loop: l, reg: reg, modem: m}
	e.do(t, func() { reg.HandleEvent(modem.Availability{Online: true}) })

	e.api = NewServer("127.0.0.1:0", l, reg)
	e.api.SetTimeout(timeout)
	e.srv = httptest.NewServer(e.api.Handler())
	t.Cleanup(e.srv.Close)
	return e
}

// do runs fn on the dispatch loop.
func (e *env) do(t *testing.T, fn func()) {
	t.Helper()
	if err := e.loop.Do(context.Background(), fn); err != nil {
		t.Fatalf("loop: %v", err)
	}
}

// pending waits for an unfinished modem request of op.
func (e *env) pending(t *testing.T, op string) *modemtest.Request {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var req *modemtest.Request
		e.do(t, func() {
			if p := e.modem.Pending(op); len(p) > 0 {
				req = p[0]
			}
		})
		if req != nil {
			return req
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no pending %s request", op)
	return nil
}

type response struct {
	status int
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.body, v); err != nil {
		t.Fatalf("decode %s: %v", r.body, err)
	}
}

func (e *env) request(t *testing.T, method, path string, body any) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return response{status: resp.StatusCode, body: data}
}

// async issues a request whose completion the test drives.
func (e *env) async(method, path string, body any) <-chan response {
	ch := make(chan response, 1)
	data, _ := json.Marshal(body)
	go func() {
		req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(data))
		if err != nil {
			ch <- response{}
			return
		}
		resp, err := e.srv.Client().Do(req)
		if err != nil {
			ch <- response{}
			return
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		ch <- response{status: resp.StatusCode, body: out}
	}()
	return ch
}

func wait(t *testing.T, ch <-chan response) response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("request did not finish")
		return response{}
	}
}

func TestHealthAndStats(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodGet, "/api/v1/health", nil)
	var health types.HealthResponse
	resp.decode(t, &health)
	if resp.status != http.StatusOK || health.Status != "ok" || !health.Online {
		t.Errorf("health = %d %+v", resp.status, health)
	}

	resp = e.request(t, http.MethodGet, "/api/v1/stats", nil)
	var stats types.StatsResponse
	resp.decode(t, &stats)
	if diff := cmp.Diff(types.StatsResponse{Online: true}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	e.do(t, func() { e.reg.HandleEvent(modem.Availability{Online: false}) })
	resp = e.request(t, http.MethodGet, "/api/v1/health", nil)
	resp.decode(t, &health)
	if health.Status != "degraded" || health.Online {
		t.Errorf("health after modem loss = %+v", health)
	}
}

func TestDialValidationSendsNothing(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodPost, "/api/v1/channels", types.DialRequest{Target: "hello"})
	if resp.status != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.status, resp.body)
	}
	var er types.ErrorResponse
	resp.decode(t, &er)
	if er.Error != "invalid_argument" {
		t.Errorf("error = %+v", er)
	}

	resp = e.request(t, http.MethodPost, "/api/v1/channels", types.DialRequest{Target: "5550100", CLIR: "sometimes"})
	if resp.status != http.StatusBadRequest {
		t.Errorf("bad CLIR status = %d", resp.status)
	}

	e.do(t, func() {
		if n := e.modem.Count("Dial"); n != 0 {
			t.Errorf("%d dial requests sent", n)
		}
	})
}

func TestDialCompletes(t *testing.T) {
	e := newEnv(t)

	ch := e.async(http.MethodPost, "/api/v1/channels", types.DialRequest{Target: "5550100", CLIR: "hide"})
	req := e.pending(t, "Dial")
	if req.Arg != "5550100" || req.CLIR != modem.CLIREnabled {
		t.Errorf("dial = %q %v", req.Arg, req.CLIR)
	}
	e.do(t, func() { req.CompleteDial(e.modem.NewCall("/ril_0/voicecall01"), nil) })

	resp := wait(t, ch)
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.status, resp.body)
	}
	var dial types.DialResponse
	resp.decode(t, &dial)
	if !strings.HasPrefix(dial.Channel, "outgoing") || dial.Existing {
		t.Fatalf("dial = %+v", dial)
	}

	resp = e.request(t, http.MethodGet, "/api/v1/channels/"+dial.Channel, nil)
	var ch1 types.Channel
	resp.decode(t, &ch1)
	if ch1.ID != dial.Channel || ch1.Peer != "5550100" {
		t.Errorf("channel = %+v", ch1)
	}

	resp = e.request(t, http.MethodGet, "/api/v1/channels", nil)
	var list []types.Channel
	resp.decode(t, &list)
	if len(list) != 1 {
		t.Errorf("channels = %+v", list)
	}

	// Ensure finds the existing call without dialing.
	resp = e.request(t, http.MethodPost, "/api/v1/channels", types.DialRequest{Target: "5550100", Ensure: true})
	resp.decode(t, &dial)
	if !dial.Existing {
		t.Errorf("ensure = %+v", dial)
	}
}

func TestDialModemFailure(t *testing.T) {
	e := newEnv(t)

	ch := e.async(http.MethodPost, "/api/v1/channels", types.DialRequest{Target: "5550100"})
	req := e.pending(t, "Dial")
	e.do(t, func() {
		req.CompleteDial(nil, cause.ModemError("org.ofono.Error.InvalidFormat", "Invalid format"))
	})

	resp := wait(t, ch)
	if resp.status != http.StatusBadGateway {
		t.Fatalf("status = %d, body %s", resp.status, resp.body)
	}
	var er types.ErrorResponse
	resp.decode(t, &er)
	want := types.ErrorResponse{Error: "modem_error", Message: "Invalid format", Name: "org.ofono.Error.InvalidFormat"}
	if diff := cmp.Diff(want, er); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestAnswerIncoming(t *testing.T) {
	e := newEnv(t)
	e.do(t, func() {
		e.reg.HandleEvent(modem.CallAdded{
			Call: e.modem.NewCall("/ril_0/voicecall01"), Incoming: true,
			Peer: "+15551234", State: modem.StateIncoming,
		})
	})

	var id string
	e.do(t, func() { id = e.reg.Snapshot()[0].ID })

	ch := e.async(http.MethodPost, "/api/v1/channels/"+id+"/answer", nil)
	req := e.pending(t, "Answer")
	e.do(t, func() { req.Complete(nil) })

	resp := wait(t, ch)
	var op types.OperationResponse
	resp.decode(t, &op)
	if resp.status != http.StatusOK || op.Channel != id || op.Status != "ok" {
		t.Errorf("answer = %d %+v", resp.status, op)
	}
}

func TestOperationTimesOut(t *testing.T) {
	e := newEnvTimeout(t, 50*time.Millisecond)
	e.do(t, func() {
		e.reg.HandleEvent(modem.CallAdded{
			Call: e.modem.NewCall("/ril_0/voicecall01"), Incoming: true,
			Peer: "+15551234", State: modem.StateIncoming,
		})
	})

	resp := e.request(t, http.MethodPost, "/api/v1/channels/incoming1/answer", nil)
	if resp.status != http.StatusGatewayTimeout {
		t.Errorf("status = %d, body %s", resp.status, resp.body)
	}
}

func TestUnknownChannelsAndRoutes(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodGet, "/api/v1/channels/nope", nil, http.StatusNotFound},
		{http.MethodPost, "/api/v1/channels/nope/answer", nil, http.StatusNotFound},
		{http.MethodPost, "/api/v1/channels/nope/hold", types.HoldRequest{Hold: true}, http.StatusNotFound},
		{http.MethodPost, "/api/v1/channels/nope/bogus", nil, http.StatusNotFound},
		{http.MethodPost, "/api/v1/channels/a/b/c", nil, http.StatusNotFound},
		{http.MethodPost, "/api/v1/channels/nope/hangup", types.HangupRequest{Reason: "sleepy"}, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/channels/conference9/merge", types.MergeRequest{Channel: "nope"}, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/conferences", types.ConferenceRequest{Channels: []string{"a"}}, http.StatusBadRequest},
		{http.MethodDelete, "/api/v1/channels", nil, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/channels/x/answer", nil, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/conferences", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := e.request(t, tt.method, tt.path, tt.body)
			if resp.status != tt.want {
				t.Errorf("status = %d, want %d (body %s)", resp.status, tt.want, resp.body)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	e := newEnv(t)

	resp, err := e.srv.Client().Post(e.srv.URL+"/api/v1/channels", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{errNotFound, http.StatusNotFound, "not_found"},
		{protocol.Errorf(protocol.ErrInvalidArgument, "x"), http.StatusBadRequest, "invalid_argument"},
		{protocol.Errorf(protocol.ErrPermissionDenied, "x"), http.StatusForbidden, "permission_denied"},
		{protocol.Errorf(protocol.ErrNotImplemented, "x"), http.StatusNotImplemented, "not_implemented"},
		{protocol.Errorf(protocol.ErrNotAvailable, "x"), http.StatusConflict, "not_available"},
		{protocol.Canceled(), http.StatusGone, "disconnected"},
		{cause.New(cause.Network, cause.UserBusy, "Dial"), http.StatusBadGateway, "modem_error"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{loop.ErrStopped, http.StatusServiceUnavailable, "stopped"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, resp := errorResponse(tt.err)
		if status != tt.status || resp.Error != tt.kind {
			t.Errorf("errorResponse(%v) = %d %q, want %d %q", tt.err, status, resp.Error, tt.status, tt.kind)
		}
	}
}

func TestParseReason(t *testing.T) {
	for in, want := range map[string]protocol.Reason{
		"":          protocol.ReasonNone,
		"Busy":      protocol.ReasonBusy,
		"no_answer": protocol.ReasonNoAnswer,
		"NoAnswer":  protocol.ReasonNoAnswer,
		" error ":   protocol.ReasonError,
	} {
		got, err := parseReason(in)
		if err != nil || got != want {
			t.Errorf("parseReason(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseReason("sleepy"); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Errorf("parseReason(sleepy) error = %v", err)
	}
}
