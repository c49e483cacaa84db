package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Publisher is the interface for publishing channel events.
// Implementations may be no-op, logging, in-memory (for testing),
// or an event log writer.
type Publisher interface {
	// Publish sends an event. Returns error only for transport failures.
	Publish(ctx context.Context, event Event) error

	// PublishAsync sends an event without waiting for confirmation.
	// Channel emissions use this since they run on the dispatch loop.
	PublishAsync(event Event)

	// Flush ensures all pending async events are published.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that silently discards events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (p *NoopPublisher) PublishAsync(event Event)                       {}
func (p *NoopPublisher) Flush(ctx context.Context) error                { return nil }
func (p *NoopPublisher) Close() error                                   { return nil }

// LoggingPublisher logs events at debug level. Useful for development.
type LoggingPublisher struct {
	logger *slog.Logger
}

// NewLoggingPublisher creates a publisher that logs events.
func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Debug("[Events] Event published",
		"subject", event.Subject(),
		"type", event.Type(),
		"channel", event.ChannelID(),
		"timestamp", event.Timestamp(),
	)
	return nil
}

func (p *LoggingPublisher) PublishAsync(event Event) {
	_ = p.Publish(context.Background(), event)
}

func (p *LoggingPublisher) Flush(ctx context.Context) error { return nil }
func (p *LoggingPublisher) Close() error                    { return nil }

// ChannelPublisher publishes to an in-memory channel. Used for testing
// and by the HTTP API event feed.
type ChannelPublisher struct {
	mu        sync.RWMutex
	ch        chan Event
	closed    bool
	dropCount atomic.Int64
}

// NewChannelPublisher creates a publisher backed by a buffered channel.
// Events are dropped if the buffer is full.
func NewChannelPublisher(bufferSize int) *ChannelPublisher {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelPublisher{ch: make(chan Event, bufferSize)}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}

	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped(event)
		return nil
	}
}

func (p *ChannelPublisher) PublishAsync(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.ch <- event:
	default:
		p.dropped(event)
	}
}

func (p *ChannelPublisher) dropped(event Event) {
	p.dropCount.Add(1)
	slog.Warn("[Events] Event dropped: buffer full",
		"type", event.Type(),
		"channel", event.ChannelID(),
	)
}

func (p *ChannelPublisher) Flush(ctx context.Context) error { return nil }

func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

// Events returns the channel for consuming events.
func (p *ChannelPublisher) Events() <-chan Event {
	return p.ch
}

// DroppedCount returns the number of events dropped due to buffer overflow.
func (p *ChannelPublisher) DroppedCount() int64 {
	return p.dropCount.Load()
}

// WriterPublisher appends every event as one line of protobuf JSON to w,
// forming an event log.
type WriterPublisher struct {
	mu     sync.Mutex
	w      io.Writer
	opts   protojson.MarshalOptions
	closer io.Closer
}

// NewWriterPublisher creates a publisher writing to w. If w is also an
// io.Closer it is closed by Close.
func NewWriterPublisher(w io.Writer) *WriterPublisher {
	p := &WriterPublisher{w: w}
	if c, ok := w.(io.Closer); ok {
		p.closer = c
	}
	return p
}

// Encode renders an event as a protobuf Struct carrying its subject.
func Encode(event Event) (*structpb.Struct, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	fields["subject"] = event.Subject()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("convert event: %w", err)
	}
	return s, nil
}

func (p *WriterPublisher) Publish(ctx context.Context, event Event) error {
	s, err := Encode(event)
	if err != nil {
		return err
	}
	line, err := p.opts.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	if _, err := p.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (p *WriterPublisher) PublishAsync(event Event) {
	if err := p.Publish(context.Background(), event); err != nil {
		slog.Warn("[Events] Event log write failed", "type", event.Type(), "error", err)
	}
}

func (p *WriterPublisher) Flush(ctx context.Context) error { return nil }

func (p *WriterPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = nil
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// MultiPublisher fans out events to multiple publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a publisher that sends to all provided publishers.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (p *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var lastErr error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, event); err != nil {
			lastErr = err
			slog.Warn("[Events] One publisher failed",
				"error", err,
				"type", event.Type(),
			)
		}
	}
	return lastErr
}

func (p *MultiPublisher) PublishAsync(event Event) {
	for _, pub := range p.publishers {
		pub.PublishAsync(event)
	}
}

func (p *MultiPublisher) Flush(ctx context.Context) error {
	var lastErr error
	for _, pub := range p.publishers {
		if err := pub.Flush(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (p *MultiPublisher) Close() error {
	var lastErr error
	for _, pub := range p.publishers {
		if err := pub.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
