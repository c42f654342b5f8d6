// Package bridge connects the selection engine to the peer on the other side
// of the VM boundary. One goroutine, Run, drives everything: platform events,
// peer messages and timers are all handled there, so the engine and the
// bridge's own state need no locking.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/remote"
	"github.com/berrythewa/clipbridge/internal/selection"
	"github.com/berrythewa/clipbridge/internal/storage"
	"github.com/berrythewa/clipbridge/internal/types"
)

const (
	defaultIdleTimeout  = 5 * time.Second
	defaultReplyTimeout = 10 * time.Second

	defaultMaxPayload = 256 * 1024 * 1024
)

// ErrPayloadTooLarge is logged when a peer payload outgrows Options.MaxPayload.
// The payload is discarded and the paste waiting for it gets no data.
var ErrPayloadTooLarge = errors.New("bridge: peer payload too large")

// Cache stores peer payloads by the notice that announced them.
type Cache interface {
	Put(noticeID string, kind types.ContentKind, data []byte) (string, error)
	Lookup(noticeID string) (*storage.Entry, error)
}

// Options wire a Bridge.
type Options struct {
	Platform   selection.Platform
	Window     selection.Window
	Events     <-chan selection.Event
	Channel    remote.Channel
	Cache      Cache // optional
	Selections []string
	DeviceID   string

	// IdleTimeout ends a local incremental transfer that stopped delivering
	// chunks. ReplyTimeout bounds how long a local paste waits for the peer.
	IdleTimeout  time.Duration
	ReplyTimeout time.Duration
	// MaxPayload bounds a reassembled peer payload, 256 MiB if zero.
	MaxPayload int

	Logger *zap.Logger
}

// parkedReply is a local paste waiting for peer data.
type parkedReply struct {
	id       string
	kind     types.ContentKind
	reply    selection.Reply
	deadline time.Time
}

// pull is a peer request being served from the local clipboard.
type pull struct {
	id    string
	kind  types.ContentKind
	last  time.Time
	bytes int
}

// assembly collects the data chunks of one peer payload.
type assembly struct {
	kind types.ContentKind
	buf  []byte
}

type payload struct {
	id   string
	kind types.ContentKind
	data []byte
}

// Bridge is the application integration layer. Create it with New and drive
// it with Run.
type Bridge struct {
	opts   Options
	engine *selection.Engine
	logger *zap.Logger
	now    func() time.Time

	peerNotice  *remote.Message // what we claimed the local selections for
	localNotice string          // id of the last notice we sent
	parked      *parkedReply
	pull        *pull
	inbound     map[string]*assembly
	dropped     map[string]bool // oversized payloads, discarded until final
	last        *payload // newest complete peer payload
}

// New builds the engine on opts.Platform and binds it to the peer channel.
func New(opts Options) (*Bridge, error) {
	if opts.Channel == nil {
		return nil, errors.New("bridge: no peer channel")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = defaultReplyTimeout
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = defaultMaxPayload
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bridge{
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		inbound: make(map[string]*assembly),
		dropped: make(map[string]bool),
	}

	engine, err := selection.New(opts.Platform, opts.Window, selection.Handlers{
		ReleaseRequested:    b.onReleaseRequested,
		SupplyData:          b.onSupplyData,
		RemoteTypeAvailable: b.onRemoteTypeAvailable,
		RemoteDataReady:     b.onRemoteDataReady,
		RemoteDataDone:      b.onRemoteDataDone,
	}, selection.Config{
		Selections: opts.Selections,
		Logger:     logger.Named("selection"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize selection engine: %w", err)
	}
	b.engine = engine
	return b, nil
}

// Engine exposes the underlying engine, for stats.
func (b *Bridge) Engine() *selection.Engine { return b.engine }

// Run is the event loop. It returns nil when ctx is done or the platform
// event stream ends, and the channel error when the peer goes away. The
// engine and the channel are closed on return.
func (b *Bridge) Run(ctx context.Context) error {
	msgs := make(chan *remote.Message)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			m, err := b.opts.Channel.Recv()
			if err != nil {
				errc <- err
				return
			}
			select {
			case msgs <- m:
			case <-done:
				return
			}
		}
	}()
	defer b.shutdown()

	if b.opts.DeviceID != "" {
		b.send(&remote.Message{Type: remote.TypeHello, Device: b.opts.DeviceID})
	}

	tick := b.opts.IdleTimeout
	if b.opts.ReplyTimeout < tick {
		tick = b.opts.ReplyTimeout
	}
	ticker := time.NewTicker(tick / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bridge stopping", zap.Error(ctx.Err()))
			return nil

		case ev, ok := <-b.opts.Events:
			if !ok {
				b.logger.Info("Display event stream ended")
				return nil
			}
			b.engine.Dispatch(ev)

		case m := <-msgs:
			b.handlePeer(m)

		case err := <-errc:
			if errors.Is(err, remote.ErrClosed) {
				b.logger.Info("Peer disconnected")
			}
			return fmt.Errorf("peer channel: %w", err)

		case <-ticker.C:
			b.checkTimeouts()
		}
	}
}

func (b *Bridge) shutdown() {
	if b.parked != nil {
		b.parked.reply(nil)
		b.parked = nil
	}
	if err := b.engine.Close(); err != nil && !errors.Is(err, selection.ErrClosed) {
		b.logger.Warn("Failed to close selection engine", zap.Error(err))
	}
	if err := b.opts.Channel.Close(); err != nil {
		b.logger.Debug("Peer channel close", zap.Error(err))
	}

	st := b.engine.Stats()
	b.logger.Info("Bridge stopped",
		zap.Int("served", st.Served),
		zap.Int("refused", st.Refused),
		zap.Int64("bytes_received", st.BytesReceived),
		zap.Int64("bytes_sent", st.BytesSent))
}

func (b *Bridge) send(m *remote.Message) bool {
	if err := b.opts.Channel.Send(m); err != nil {
		b.logger.Warn("Failed to send to peer",
			zap.String("type", string(m.Type)),
			zap.String("id", m.ID),
			zap.Error(err))
		return false
	}
	return true
}

// checkTimeouts expires stalled local transfers and unanswered pastes.
func (b *Bridge) checkTimeouts() {
	now := b.now()

	if p := b.pull; p != nil && now.Sub(p.last) >= b.opts.IdleTimeout {
		b.logger.Debug("Local transfer idle, finishing",
			zap.String("id", p.id),
			zap.Int("bytes", p.bytes))
		b.engine.AbandonIncoming()
		b.finishPull()
	}

	if r := b.parked; r != nil && !now.Before(r.deadline) {
		b.logger.Warn("Peer did not deliver clipboard data in time",
			zap.String("id", r.id),
			zap.Stringer("kind", r.kind))
		b.parked = nil
		r.reply(nil)
	}
}
