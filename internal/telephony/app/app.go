// Package app wires the bridge together: the dispatch loop, the oFono
// adapter, the channel registry and the outer surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sebas/ringbridge/internal/telephony/api"
	"github.com/sebas/ringbridge/internal/telephony/config"
	"github.com/sebas/ringbridge/internal/telephony/events"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/modem/ofono"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/registry"
	"github.com/sebas/ringbridge/internal/telephony/tones"
)

// HealthService is the gRPC health service name that follows modem
// availability. The empty service name reports the same status.
const HealthService = "ringbridge.v1.Bridge"

// shutdownTimeout bounds each step of the graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Bridge owns every component of a running bridge.
type Bridge struct {
	config    *config.Config
	loop      *loop.Loop
	modem     *ofono.Manager
	registry  *registry.Registry
	notifier  *tones.Notifier
	player    tones.Player
	publisher events.Publisher
	apiServer *api.Server
	health    *health.Server
	grpc      *grpc.Server

	httpListener   net.Listener
	healthListener net.Listener
}

// Connect opens the D-Bus bus the modem service lives on.
func Connect(bus config.Bus) (*dbus.Conn, error) {
	switch bus {
	case config.SessionBus:
		return dbus.ConnectSessionBus()
	case config.SystemBus:
		return dbus.ConnectSystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
}

// New builds a bridge on conn. Nothing is started until Listen and Run.
func New(cfg *config.Config, conn ofono.Conn) (*Bridge, error) {
	b := &Bridge{
		config: cfg,
		loop:   loop.New(0),
		health: health.NewServer(),
	}

	var err error
	b.publisher, err = newPublisher(cfg.EventLog)
	if err != nil {
		return nil, err
	}

	b.player, err = newPlayer(cfg.ToneSink, cfg.ToneCodec)
	if err != nil {
		b.closePublisher()
		return nil, err
	}
	b.notifier = tones.NewNotifier(b.player, b.loop.Post)

	b.modem, err = ofono.New(ofono.Config{
		Conn:      conn,
		ModemPath: cfg.ModemPath,
		Post:      b.loop.Post,
		Handler:   b.handleModemEvent,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create modem adapter: %w", err)
	}

	b.registry = registry.New(registry.Config{
		Modem:          b.modem,
		Emitter:        events.NewEmitter(events.NewBuilder(cfg.NodeID), b.publisher),
		Tones:          b.notifier,
		Scheduler:      b.loop,
		Self:           protocol.Handle(cfg.SelfNumber),
		ExtraEmergency: cfg.ExtraEmergency,
		CloseTimeout:   cfg.CloseTimeout,
	})

	b.apiServer = api.NewServer(cfg.HTTPAddr, b.loop, b.registry)

	b.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(b.grpc, b.health)
	b.setServing(false)

	slog.Info("[App] Bridge configured",
		"modem", cfg.ModemPath,
		"bus", cfg.Bus,
		"self", cfg.SelfNumber,
		"node", cfg.NodeID,
		"tone_sink", cfg.ToneSink,
	)
	return b, nil
}

// newPublisher logs every event and, with a path, appends them to an
// event log ("-" is stdout).
func newPublisher(path string) (events.Publisher, error) {
	logging := events.NewLoggingPublisher(nil)
	switch path {
	case "":
		return logging, nil
	case "-":
		// Hide Close so shutting down leaves stdout open.
		stdout := struct{ io.Writer }{os.Stdout}
		return events.NewMultiPublisher(logging, events.NewWriterPublisher(stdout)), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return events.NewMultiPublisher(logging, events.NewWriterPublisher(f)), nil
}

// newPlayer streams tones to sink, or only logs them without one.
func newPlayer(sink string, codec tones.Codec) (tones.Player, error) {
	if sink == "" {
		return tones.LoggingPlayer{}, nil
	}
	p, err := tones.NewRTPPlayer(sink, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to create tone player: %w", err)
	}
	return p, nil
}

// handleModemEvent runs on the loop.
func (b *Bridge) handleModemEvent(ev modem.Event) {
	b.registry.HandleEvent(ev)
	if av, ok := ev.(modem.Availability); ok {
		b.setServing(av.Online)
	}
}

func (b *Bridge) setServing(online bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if online {
		status = healthpb.HealthCheckResponse_SERVING
	}
	b.health.SetServingStatus("", status)
	b.health.SetServingStatus(HealthService, status)
}

// Listen binds the HTTP API and gRPC health listeners. An empty address
// leaves that surface disabled.
func (b *Bridge) Listen() error {
	if b.config.HTTPAddr != "" {
		l, err := net.Listen("tcp", b.config.HTTPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for HTTP API: %w", err)
		}
		b.httpListener = l
	}
	if b.config.HealthAddr != "" {
		l, err := net.Listen("tcp", b.config.HealthAddr)
		if err != nil {
			if b.httpListener != nil {
				b.httpListener.Close()
				b.httpListener = nil
			}
			return fmt.Errorf("failed to listen for health checks: %w", err)
		}
		b.healthListener = l
	}
	return nil
}

// HTTPAddr returns the bound HTTP API address, or nil.
func (b *Bridge) HTTPAddr() net.Addr {
	if b.httpListener == nil {
		return nil
	}
	return b.httpListener.Addr()
}

// HealthAddr returns the bound gRPC health address, or nil.
func (b *Bridge) HealthAddr() net.Addr {
	if b.healthListener == nil {
		return nil
	}
	return b.healthListener.Addr()
}

// Run serves until ctx is done or a component fails, then closes every
// channel and stops the surfaces.
func (b *Bridge) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		_ = b.loop.Run(loopCtx)
		close(loopDone)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := b.modem.Run(gctx); err != nil {
			return fmt.Errorf("modem adapter: %w", err)
		}
		return nil
	})
	if l := b.httpListener; l != nil {
		g.Go(func() error { return b.apiServer.Serve(l) })
	}
	if l := b.healthListener; l != nil {
		g.Go(func() error {
			slog.Info("[App] Starting gRPC health server", "addr", l.Addr())
			if err := b.grpc.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		b.shutdown()
		return nil
	})

	return g.Wait()
}

func (b *Bridge) shutdown() {
	slog.Info("[App] Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.loop.Do(ctx, b.registry.Close); err != nil {
		slog.Warn("[App] Failed to close channels", "error", err)
	}
	b.health.Shutdown()
	if b.httpListener != nil {
		if err := b.apiServer.Shutdown(ctx); err != nil {
			slog.Warn("[App] HTTP API shutdown", "error", err)
		}
	}
	if b.healthListener != nil {
		b.grpc.GracefulStop()
	}
}

// Close releases the tone player and the event log. Call it after Run
// returns.
func (b *Bridge) Close() error {
	var errs []error
	if c, ok := b.player.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, b.closePublisher())
	return errors.Join(errs...)
}

func (b *Bridge) closePublisher() error {
	if b.publisher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := errors.Join(b.publisher.Flush(ctx), b.publisher.Close())
	b.publisher = nil
	return err
}
