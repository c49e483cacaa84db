package ofono

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/sebas/ringbridge/internal/telephony/modem"
)

// callEntry is one element of the GetCalls reply.
type callEntry struct {
	Path       dbus.ObjectPath
	Properties map[string]dbus.Variant
}

// status is a snapshot of the voice call service read from the bus.
type status struct {
	online    bool
	emergency []string
	calls     []callEntry
}

// Run subscribes to the modem's signals and feeds them to the loop until
// ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(ifaceManager), dbus.WithMatchObjectPath(m.path)},
		{dbus.WithMatchInterface(ifaceModem), dbus.WithMatchObjectPath(m.path), dbus.WithMatchMember("PropertyChanged")},
		{dbus.WithMatchInterface(ifaceCall), dbus.WithMatchOption("path_namespace", string(m.path))},
		{dbus.WithMatchInterface(ifaceBus), dbus.WithMatchMember("NameOwnerChanged"), dbus.WithMatchOption("arg0", BusName)},
	}
	for _, opts := range matches {
		if err := m.cfg.Conn.AddMatchSignal(opts...); err != nil {
			return err
		}
	}

	signals := make(chan *dbus.Signal, 64)
	m.cfg.Conn.Signal(signals)
	defer m.cfg.Conn.RemoveSignal(signals)

	slog.Info("[oFono] Watching modem", "path", m.path)
	m.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errors.New("ofono: bus connection closed")
			}
			m.handleSignal(ctx, sig)
		}
	}
}

// refresh reads the voice call service state and hands it to the loop.
func (m *Manager) refresh(ctx context.Context) {
	st, err := m.readStatus(ctx)
	if err != nil {
		slog.Warn("[oFono] Voice call service not reachable", "path", m.path, "error", err)
		st = status{}
	}
	m.cfg.Post(func() { m.apply(st) })
}

func (m *Manager) readStatus(ctx context.Context) (status, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	var props map[string]dbus.Variant
	if err := m.obj.CallWithContext(ctx, ifaceModem+".GetProperties", 0).Store(&props); err != nil {
		return status{}, dbusError(err)
	}
	ifaces, _ := stringsProp(props, "Interfaces")
	if !slices.Contains(ifaces, ifaceManager) {
		return status{}, nil
	}

	st := status{online: true}
	var mprops map[string]dbus.Variant
	if err := m.obj.CallWithContext(ctx, ifaceManager+".GetProperties", 0).Store(&mprops); err != nil {
		return status{}, dbusError(err)
	}
	st.emergency, _ = stringsProp(mprops, "EmergencyNumbers")

	if err := m.obj.CallWithContext(ctx, ifaceManager+".GetCalls", 0).Store(&st.calls); err != nil {
		return status{}, dbusError(err)
	}
	return st, nil
}

// apply runs on the loop.
func (m *Manager) apply(st status) {
	if !st.online {
		m.setOffline()
		return
	}
	m.emergency = st.emergency
	if m.online {
		return
	}
	m.online = true
	slog.Info("[oFono] Voice call service available", "calls", len(st.calls))
	m.cfg.Handler(modem.Availability{Online: true})
	for _, e := range st.calls {
		m.callAdded(e.Path, e.Properties)
	}
}

func (m *Manager) setOffline() {
	if !m.online {
		return
	}
	m.online = false
	m.calls = make(map[dbus.ObjectPath]*Call)
	m.held = nil
	slog.Warn("[oFono] Voice call service gone", "path", m.path)
	m.cfg.Handler(modem.Availability{Online: false})
}

// handleSignal decodes sig on the signal goroutine and posts its effect.
func (m *Manager) handleSignal(ctx context.Context, sig *dbus.Signal) {
	iface, member, ok := splitName(sig.Name)
	if !ok {
		return
	}

	switch iface {
	case ifaceBus:
		var name, oldOwner, newOwner string
		if dbus.Store(sig.Body, &name, &oldOwner, &newOwner) != nil || name != BusName {
			return
		}
		if newOwner == "" {
			m.cfg.Post(m.setOffline)
			return
		}
		m.refresh(ctx)

	case ifaceModem:
		var name string
		var value dbus.Variant
		if sig.Path != m.path || dbus.Store(sig.Body, &name, &value) != nil || name != "Interfaces" {
			return
		}
		m.refresh(ctx)

	case ifaceManager:
		if sig.Path != m.path {
			return
		}
		m.managerSignal(member, sig.Body)

	case ifaceCall:
		m.callSignal(sig.Path, member, sig.Body)
	}
}

func (m *Manager) managerSignal(member string, body []any) {
	switch member {
	case "CallAdded":
		var path dbus.ObjectPath
		var props map[string]dbus.Variant
		if err := dbus.Store(body, &path, &props); err != nil {
			slog.Warn("[oFono] Malformed CallAdded", "error", err)
			return
		}
		m.cfg.Post(func() { m.callAdded(path, props) })

	case "CallRemoved":
		var path dbus.ObjectPath
		if dbus.Store(body, &path) != nil {
			return
		}
		m.cfg.Post(func() { m.callRemoved(path) })

	case "PropertyChanged":
		var name string
		var value dbus.Variant
		if dbus.Store(body, &name, &value) != nil || name != "EmergencyNumbers" {
			return
		}
		numbers, _ := value.Value().([]string)
		m.cfg.Post(func() { m.emergency = numbers })

	case "Forwarded":
		var direction string
		if dbus.Store(body, &direction) != nil {
			return
		}
		m.cfg.Post(func() { m.forwarded(direction) })
	}
}

func (m *Manager) callSignal(path dbus.ObjectPath, member string, body []any) {
	switch member {
	case "PropertyChanged":
		var name string
		var value dbus.Variant
		if dbus.Store(body, &name, &value) != nil {
			return
		}
		m.cfg.Post(func() {
			c, ok := m.calls[path]
			if !ok {
				return
			}
			if ev := c.propertyChanged(name, value); ev != nil {
				m.cfg.Handler(ev)
			}
		})

	case "DisconnectReason":
		var reason string
		if dbus.Store(body, &reason) != nil {
			return
		}
		m.cfg.Post(func() {
			if c, ok := m.calls[path]; ok {
				c.disconnectReason(reason)
			}
		})
	}
}

// callAdded runs on the loop.
func (m *Manager) callAdded(path dbus.ObjectPath, props map[string]dbus.Variant) {
	if !m.online {
		return
	}
	c := m.call(path)
	c.update(props)

	switch c.state {
	case modem.StateInvalid, modem.StateDisconnected:
		slog.Debug("[oFono] Call already gone", "path", path, "state", c.state)
		delete(m.calls, path)
		return
	}

	ev := modem.CallAdded{
		Call:      c,
		Incoming:  c.state == modem.StateIncoming || c.state == modem.StateWaiting,
		Peer:      c.peer,
		State:     c.state,
		Emergency: c.emergency,
	}
	if !ev.Incoming && m.dialing > 0 {
		slog.Debug("[oFono] Holding call until dial completes", "path", path)
		m.held = append(m.held, ev)
		return
	}
	m.cfg.Handler(ev)
}

func (m *Manager) callRemoved(path dbus.ObjectPath) {
	c, ok := m.calls[path]
	if !ok {
		return
	}
	delete(m.calls, path)
	m.held = slices.DeleteFunc(m.held, func(ev modem.CallAdded) bool {
		return ev.Call == modem.Call(c)
	})
	m.cfg.Handler(modem.CallRemoved{Call: c})
}

// forwarded attributes a forwarding notice to the calls it can concern:
// incoming notices to ringing calls, outgoing ones to calls being set up.
func (m *Manager) forwarded(direction string) {
	for _, c := range m.calls {
		switch {
		case direction == "incoming" && (c.state == modem.StateIncoming || c.state == modem.StateWaiting),
			direction == "outgoing" && (c.state == modem.StateDialing || c.state == modem.StateAlerting):
			m.cfg.Handler(modem.Forwarded{Call: c})
		}
	}
}

func splitName(name string) (iface, member string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}
