package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebas/ringbridge/internal/banner"
	"github.com/sebas/ringbridge/internal/logger"
	"github.com/sebas/ringbridge/internal/telephony/app"
	"github.com/sebas/ringbridge/internal/telephony/config"
)

func main() {
	// Initialize logger
	logger.InitLogger(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}
	logger.SetLevel(cfg.LogLevel)

	conn, err := app.Connect(cfg.Bus)
	if err != nil {
		slog.Error("Failed to connect to D-Bus", "bus", cfg.Bus, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	bridge, err := app.New(cfg, conn)
	if err != nil {
		slog.Error("Failed to create bridge", "error", err)
		os.Exit(1)
	}
	defer bridge.Close()

	if err := run(bridge, cfg); err != nil {
		slog.Error("Bridge stopped with error", "error", err)
		bridge.Close()
		conn.Close()
		os.Exit(1)
	}
}

func run(bridge *app.Bridge, cfg *config.Config) error {
	if err := bridge.Listen(); err != nil {
		return err
	}
	banner.Fprint(os.Stdout, "ringbridge - oFono call bridge", []banner.ConfigLine{
		{Label: "Modem", Value: cfg.ModemPath + " (" + string(cfg.Bus) + " bus)"},
		{Label: "Self", Value: cfg.SelfNumber},
		{Label: "HTTP API", Value: addrString(bridge.HTTPAddr())},
		{Label: "gRPC health", Value: addrString(bridge.HealthAddr())},
		{Label: "Tone sink", Value: toneSink(cfg)},
		{Label: "Event log", Value: cfg.EventLog},
		{Label: "Node", Value: cfg.NodeID},
		{Label: "Log level", Value: logger.GetLevel()},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return bridge.Run(ctx)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func toneSink(cfg *config.Config) string {
	if cfg.ToneSink == "" {
		return ""
	}
	return cfg.ToneSink + " (" + cfg.ToneCodec.String() + ")"
}
