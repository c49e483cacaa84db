// Package ofono drives the voice call service of an oFono modem over D-Bus.
//
// D-Bus replies and signals arrive on godbus goroutines. They are decoded
// there and handed to the dispatch loop through Config.Post, so all adapter
// state is owned by the loop, like the sessions it feeds.
package ofono

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// D-Bus names of the oFono service.
const (
	BusName      = "org.ofono"
	ifaceModem   = "org.ofono.Modem"
	ifaceManager = "org.ofono.VoiceCallManager"
	ifaceCall    = "org.ofono.VoiceCall"
	ifaceBus     = "org.freedesktop.DBus"
)

// DefaultCallTimeout bounds every method call, matching the D-Bus default.
const DefaultCallTimeout = 25 * time.Second

// Conn is the part of *dbus.Conn the adapter uses.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// Config configures a Manager.
type Config struct {
	Conn Conn
	// ModemPath is the object path of the modem, e.g. "/ril_0".
	ModemPath string
	// Post runs fn on the dispatch loop.
	Post func(fn func())
	// Handler receives modem events on the dispatch loop.
	Handler     func(modem.Event)
	CallTimeout time.Duration
}

// Manager implements modem.Service on top of org.ofono.VoiceCallManager.
type Manager struct {
	cfg  Config
	path dbus.ObjectPath
	// obj carries both the modem and the voice call manager interfaces.
	obj dbus.BusObject

	// Loop-owned state.
	online    bool
	emergency []string
	calls     map[dbus.ObjectPath]*Call
	dialing   int
	held      []modem.CallAdded
}

var _ modem.Service = (*Manager)(nil)

// New creates a manager for the modem at cfg.ModemPath. Nothing is sent on
// the bus until Run.
func New(cfg Config) (*Manager, error) {
	if cfg.Conn == nil {
		return nil, errors.New("ofono: no bus connection")
	}
	if cfg.Post == nil || cfg.Handler == nil {
		return nil, errors.New("ofono: Post and Handler are required")
	}
	path := dbus.ObjectPath(cfg.ModemPath)
	if !path.IsValid() {
		return nil, fmt.Errorf("ofono: invalid modem path %q", cfg.ModemPath)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Manager{
		cfg:   cfg,
		path:  path,
		obj:   cfg.Conn.Object(BusName, path),
		calls: make(map[dbus.ObjectPath]*Call),
	}, nil
}

// request is an outstanding method call.
type request struct {
	cancel context.CancelFunc
}

func (r *request) Cancel() { r.cancel() }

// invoke calls method on obj and delivers the reply to done on the loop.
func (m *Manager) invoke(obj dbus.BusObject, method string, done func(*dbus.Call), args ...any) modem.Request {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
	ch := make(chan *dbus.Call, 1)
	obj.GoWithContext(ctx, method, 0, ch, args...)

	go func() {
		reply := <-ch
		cancel()
		m.cfg.Post(func() { done(reply) })
	}()
	return &request{cancel: cancel}
}

// simple invokes a method whose reply carries nothing of interest.
func (m *Manager) simple(obj dbus.BusObject, method string, done func(error), args ...any) modem.Request {
	return m.invoke(obj, method, func(c *dbus.Call) {
		err := replyError(c)
		if err != nil {
			slog.Debug("[oFono] Request failed", "method", method, "error", err)
		}
		done(err)
	}, args...)
}

// Dial implements modem.Service. CallAdded signals of outgoing calls are
// held back until every pending dial has been answered, so that the dialer
// binds its call before anybody else can claim it.
func (m *Manager) Dial(number string, clir modem.CLIR, done func(modem.Call, error)) modem.Request {
	m.dialing++
	return m.invoke(m.obj, ifaceManager+".Dial", func(c *dbus.Call) {
		m.dialing--

		var path dbus.ObjectPath
		err := replyError(c)
		if err == nil {
			if serr := c.Store(&path); serr != nil {
				err = cause.ModemError(cause.ModemErrorPrefix+".Failed", serr.Error())
			}
		}

		if err != nil {
			slog.Info("[oFono] Dial failed", "error", err)
			done(nil, err)
		} else {
			call := m.call(path)
			done(call, nil)
			if call.state != modem.StateDialing && call.state != modem.StateInvalid {
				m.cfg.Handler(modem.StateChanged{Call: call, State: call.state})
			}
		}
		m.releaseHeld()
	}, number, clir.HideCallerID())
}

func (m *Manager) HoldAndAnswer(done func(error)) modem.Request {
	return m.simple(m.obj, ifaceManager+".HoldAndAnswer", done)
}

func (m *Manager) SwapCalls(done func(error)) modem.Request {
	return m.simple(m.obj, ifaceManager+".SwapCalls", done)
}

func (m *Manager) CreateMultiparty(done func(error)) modem.Request {
	return m.simple(m.obj, ifaceManager+".CreateMultiparty", done)
}

func (m *Manager) PrivateChat(call modem.Call, done func(error)) modem.Request {
	return m.simple(m.obj, ifaceManager+".PrivateChat", done, dbus.ObjectPath(call.Path()))
}

func (m *Manager) SendTones(tones string, done func(error)) modem.Request {
	return m.simple(m.obj, ifaceManager+".SendTones", done, tones)
}

// StartDTMF sends tone as a fixed-duration tone; the modem has no notion of
// a tone that lasts until stopped.
func (m *Manager) StartDTMF(call modem.Call, tone byte, done func(error)) modem.Request {
	return m.SendTones(string(tone), done)
}

// StopDTMF completes at once since tones stop on their own.
func (m *Manager) StopDTMF(call modem.Call, done func(error)) modem.Request {
	r := &request{cancel: func() {}}
	m.cfg.Post(func() { done(nil) })
	return r
}

// EmergencyNumbers implements modem.Service.
func (m *Manager) EmergencyNumbers() []string {
	return slices.Clone(m.emergency)
}

// call returns the call object for path, creating it if needed.
func (m *Manager) call(path dbus.ObjectPath) *Call {
	if c, ok := m.calls[path]; ok {
		return c
	}
	c := &Call{m: m, path: path, obj: m.cfg.Conn.Object(BusName, path)}
	m.calls[path] = c
	return c
}

func (m *Manager) releaseHeld() {
	if m.dialing > 0 || len(m.held) == 0 {
		return
	}
	held := m.held
	m.held = nil
	for _, ev := range held {
		m.cfg.Handler(ev)
	}
}

// replyError converts a failed reply into a cause error.
func replyError(c *dbus.Call) error {
	if c == nil {
		return cause.ModemError(cause.ModemErrorPrefix+".Failed", "no reply")
	}
	return dbusError(c.Err)
}

func dbusError(err error) error {
	if err == nil {
		return nil
	}

	var de dbus.Error
	if errors.As(err, &de) {
		return cause.ModemError(de.Name, bodyMessage(de.Body))
	}
	var dp *dbus.Error
	if errors.As(err, &dp) {
		return cause.ModemError(dp.Name, bodyMessage(dp.Body))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cause.ModemError(cause.ModemErrorPrefix+".Timedout", "Request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return cause.ModemError(cause.ModemErrorPrefix+".Failed", "Request canceled")
	}
	return cause.ModemError(cause.ModemErrorPrefix+".Failed", err.Error())
}

func bodyMessage(body []any) string {
	if len(body) > 0 {
		if s, ok := body[0].(string); ok {
			return s
		}
	}
	return ""
}
