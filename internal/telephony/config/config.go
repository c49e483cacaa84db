package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sebas/ringbridge/internal/logger"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/tones"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RINGBRIDGE_"

// Bus selects the D-Bus bus the modem service lives on.
type Bus string

const (
	SystemBus  Bus = "system"
	SessionBus Bus = "session"
)

// Config holds the bridge configuration
type Config struct {
	// Modem settings
	ModemPath string // oFono object path of the modem, e.g. "/ril_0"
	Bus       Bus
	// SelfNumber is the handle the bridge uses for the local user.
	SelfNumber string
	// ExtraEmergency adds numbers to those the modem reports.
	ExtraEmergency []string

	// Outer surfaces; an empty address disables the listener
	HTTPAddr   string
	HealthAddr string

	// Tone settings; without a sink tones are only logged
	ToneSink  string
	ToneCodec tones.Codec

	// EventLog is a file events are appended to; "-" is stdout.
	EventLog string
	NodeID   string

	CloseTimeout time.Duration
	LogLevel     string
}

// Load loads configuration from command line flags and environment variables
func Load() (*Config, error) {
	return Parse(flag.CommandLine, os.Args[1:], os.Getenv)
}

// Parse reads args into a Config using fs, then applies RINGBRIDGE_*
// overrides looked up with getenv.
func Parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	var emergency, codec, bus string

	fs.StringVar(&cfg.ModemPath, "modem", "/ril_0", "oFono modem object path")
	fs.StringVar(&bus, "bus", string(SystemBus), "D-Bus bus of the modem service (system, session)")
	fs.StringVar(&cfg.SelfNumber, "self", "self", "Handle of the local user")
	fs.StringVar(&emergency, "emergency", "", "Extra emergency numbers (comma-separated)")
	fs.StringVar(&cfg.HTTPAddr, "http", ":8080", "HTTP API listen address")
	fs.StringVar(&cfg.HealthAddr, "health", ":9090", "gRPC health listen address")
	fs.StringVar(&cfg.ToneSink, "tone-sink", "", "RTP destination for local tones (host:port)")
	fs.StringVar(&codec, "tone-codec", "PCMU", "Codec of the tone stream (PCMU, PCMA)")
	fs.StringVar(&cfg.EventLog, "event-log", "", "File to append channel events to (- for stdout)")
	fs.StringVar(&cfg.NodeID, "node", "", "Node id stamped on events (hostname if not set)")
	fs.DurationVar(&cfg.CloseTimeout, "close-timeout", call.DefaultCloseTimeout, "Longest wait for a tone before a channel closes")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override with environment variables if set
	env := func(name string) string { return getenv(EnvPrefix + name) }
	if v := env("MODEM"); v != "" {
		cfg.ModemPath = v
	}
	if v := env("BUS"); v != "" {
		bus = v
	}
	if v := env("SELF"); v != "" {
		cfg.SelfNumber = v
	}
	if v := env("EMERGENCY"); v != "" {
		emergency = v
	}
	if v, ok := lookup(getenv, "HTTP"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := lookup(getenv, "HEALTH"); ok {
		cfg.HealthAddr = v
	}
	if v := env("TONE_SINK"); v != "" {
		cfg.ToneSink = v
	}
	if v := env("TONE_CODEC"); v != "" {
		codec = v
	}
	if v := env("EVENT_LOG"); v != "" {
		cfg.EventLog = v
	}
	if v := env("NODE"); v != "" {
		cfg.NodeID = v
	}
	if v := env("CLOSE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%sCLOSE_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.CloseTimeout = d
	}
	if v := env("LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if cfg.HTTPAddr == "-" {
		cfg.HTTPAddr = ""
	}
	if cfg.HealthAddr == "-" {
		cfg.HealthAddr = ""
	}
	cfg.Bus = Bus(strings.ToLower(strings.TrimSpace(bus)))
	cfg.ExtraEmergency = parseList(emergency)

	c, err := tones.ParseCodec(codec)
	if err != nil {
		return nil, err
	}
	cfg.ToneCodec = c

	if cfg.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NodeID = host
		} else {
			cfg.NodeID = "ringbridge"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields Parse cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.ModemPath, "/") {
		errs = append(errs, fmt.Errorf("modem path %q is not an object path", c.ModemPath))
	}
	if c.Bus != SystemBus && c.Bus != SessionBus {
		errs = append(errs, fmt.Errorf("unknown bus %q", c.Bus))
	}
	if c.SelfNumber == "" {
		errs = append(errs, errors.New("self handle is empty"))
	}
	if c.CloseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("close timeout %s is not positive", c.CloseTimeout))
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// lookup distinguishes an override set to "" (which disables a listener)
// from no override.
func lookup(getenv func(string) string, name string) (string, bool) {
	v := getenv(EnvPrefix + name)
	if v == "-" {
		return "", true
	}
	return v, v != ""
}

// parseList parses a comma-separated list
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
