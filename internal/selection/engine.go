// Package selection implements the clipboard synchronization engine: an
// event-driven state machine over the windowing system's selection model.
//
// The engine never blocks. Every exchange with other clients is a request
// issued now whose result arrives as a later Event, so one logical transfer
// spans many calls to Dispatch, correlated only through the engine's state.
// All methods must be called from a single goroutine.
package selection

import (
	"errors"
	"fmt"

	"github.com/berrythewa/clipbridge/internal/types"
	"go.uber.org/zap"
)

var (
	// ErrWrongSubsystem is returned by New for a non-X11 platform.
	ErrWrongSubsystem = errors.New("selection: unsupported windowing subsystem")
	// ErrNoChangeNotify is returned by New when owner change notifications are unavailable.
	ErrNoChangeNotify = errors.New("selection: owner change notification unavailable")
	// ErrClosed is returned when using an engine after Close.
	ErrClosed = errors.New("selection: engine closed")
)

// DefaultSelections are tracked when Config.Selections is empty.
var DefaultSelections = []string{"PRIMARY", "CLIPBOARD"}

// Reply answers a deferred data request. It may be called once; empty data
// tells the requestor there is nothing to paste.
type Reply func(data []byte)

// Handlers are the integration layer's callbacks. Nil handlers are skipped;
// a nil SupplyData means every data request is answered with no data.
type Handlers struct {
	// ReleaseRequested fires when another client took a selection we owned.
	ReleaseRequested func()
	// SupplyData asks for the bytes of the kind we claimed.
	SupplyData func(kind types.ContentKind, reply Reply)
	// RemoteTypeAvailable reports what another owner offers. approxSize is
	// an advisory lower bound, zero when unknown.
	RemoteTypeAvailable func(kind types.ContentKind, approxSize int64)
	// RemoteDataReady delivers bytes pulled by Request, one call per chunk.
	RemoteDataReady func(kind types.ContentKind, data []byte)
	// RemoteDataDone marks the end of the payload started by RemoteDataReady.
	RemoteDataDone func(kind types.ContentKind)
}

// Config tunes the engine.
type Config struct {
	// Selections lists the selection names to track, DefaultSelections if empty.
	Selections []string
	Logger     *zap.Logger
}

// Stats counts engine activity.
type Stats struct {
	Served        int
	Refused       int
	Chunks        int
	BytesReceived int64
	BytesSent     int64
}

type wellKnown struct {
	targets Atom
	selData Atom
	incr    Atom
	atom    Atom
}

// Engine is the clipboard state machine. Create it with New.
type Engine struct {
	p          Platform
	window     Window
	h          Handlers
	logger     *zap.Logger
	reg        *Registry
	atoms      wellKnown
	selections []Atom

	st     state
	stats  Stats
	closed bool
}

// New initializes an engine bound to window. On error the engine must not be used.
func New(p Platform, window Window, h Handlers, cfg Config) (*Engine, error) {
	if p.Subsystem() != SubsystemX11 {
		return nil, fmt.Errorf("%w: %s", ErrWrongSubsystem, p.Subsystem())
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg, err := NewRegistry(p.InternAtom)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		p:      p,
		window: window,
		h:      h,
		logger: logger,
		reg:    reg,
		st:     newState(),
	}

	for name, dst := range map[string]*Atom{
		"TARGETS":  &e.atoms.targets,
		"SEL_DATA": &e.atoms.selData,
		"INCR":     &e.atoms.incr,
		"ATOM":     &e.atoms.atom,
	} {
		a, err := p.InternAtom(name)
		if err != nil || a == AtomNone {
			return nil, fmt.Errorf("%w: %s: %v", ErrAtomResolution, name, err)
		}
		*dst = a
	}

	names := cfg.Selections
	if len(names) == 0 {
		names = DefaultSelections
	}
	for _, name := range names {
		a, err := p.InternAtom(name)
		if err != nil || a == AtomNone {
			return nil, fmt.Errorf("%w: selection %s: %v", ErrAtomResolution, name, err)
		}
		e.selections = append(e.selections, a)
	}

	for _, sel := range e.selections {
		if err := p.WatchSelection(window, sel); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoChangeNotify, err)
		}
	}
	if err := p.WatchProperties(window); err != nil {
		return nil, fmt.Errorf("watch own window properties: %w", err)
	}

	logger.Debug("Selection engine initialized",
		zap.Uint32("window", uint32(window)),
		zap.Strings("selections", names))

	return e, nil
}

// Registry exposes the kind/atom mapping.
func (e *Engine) Registry() *Registry { return e.reg }

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats { return e.stats }

// Owned returns the kind we currently claim, KindNone if nothing.
func (e *Engine) Owned() types.ContentKind { return e.st.owned }

// Close shuts the engine down. Outstanding requests are answered with no
// data and owned selections are relinquished.
func (e *Engine) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.Release()
	e.dropOutgoing()
	e.st.incr = nil
	e.closed = true

	e.logger.Debug("Selection engine closed",
		zap.Int("served", e.stats.Served),
		zap.Int("refused", e.stats.Refused),
		zap.Int("chunks", e.stats.Chunks),
		zap.Int64("bytes_received", e.stats.BytesReceived),
		zap.Int64("bytes_sent", e.stats.BytesSent))
	return nil
}

// Claim takes ownership of every tracked selection for content of kind.
func (e *Engine) Claim(kind types.ContentKind) {
	if e.closed {
		return
	}
	if !kind.Valid() {
		e.logger.Warn("Refusing to claim selection for invalid kind", zap.Stringer("kind", kind))
		return
	}

	e.abandonPending()
	e.dropOutgoing()
	e.st.owned = kind
	e.st.ownedSelections = make(map[Atom]bool, len(e.selections))
	for _, sel := range e.selections {
		if err := e.p.SetSelectionOwner(e.window, sel); err != nil {
			e.logger.Warn("Failed to assert selection ownership",
				zap.String("selection", e.p.AtomName(sel)), zap.Error(err))
			continue
		}
		e.st.ownedSelections[sel] = true
	}
	e.flush()

	e.logger.Debug("Claimed selections", zap.Stringer("kind", kind))
}

// Release gives up ownership. It does nothing when we own nothing.
func (e *Engine) Release() {
	if e.closed || e.st.owned == types.KindNone {
		return
	}

	e.abandonPending()
	e.dropOutgoing()
	e.st.owned = types.KindNone
	// a selection another client took from us is theirs now
	for _, sel := range e.selections {
		if !e.st.ownedSelections[sel] {
			continue
		}
		delete(e.st.ownedSelections, sel)
		if err := e.p.SetSelectionOwner(WindowNone, sel); err != nil {
			e.logger.Warn("Failed to relinquish selection",
				zap.String("selection", e.p.AtomName(sel)), zap.Error(err))
		}
	}
	e.flush()

	e.logger.Debug("Released selections")
}

// Request pulls the content of kind from the current foreign owner. It is a
// no-op when no foreign owner is tracked: the owner may have gone away since
// it announced the kind.
func (e *Engine) Request(kind types.ContentKind) {
	if e.closed {
		return
	}
	if e.st.currentSelection == AtomNone {
		e.logger.Debug("No foreign selection owner, dropping request", zap.Stringer("kind", kind))
		return
	}
	target := e.reg.AtomFor(kind)
	if target == AtomNone {
		e.logger.Debug("Dropping request for unmapped kind", zap.Stringer("kind", kind))
		return
	}

	// a new request supersedes whatever incremental transfer was in flight
	e.st.incr = nil
	if err := e.p.ConvertSelection(e.window, e.st.currentSelection, target, e.atoms.selData); err != nil {
		e.logger.Warn("Failed to request selection data", zap.Stringer("kind", kind), zap.Error(err))
		return
	}
	e.flush()
}

// AbandonIncoming drops an incremental transfer being received, if any.
// Chunks that still arrive for it are ignored.
func (e *Engine) AbandonIncoming() {
	if e.st.incr != nil {
		e.logger.Debug("Abandoning incremental transfer", zap.Stringer("kind", e.st.incr.kind))
		e.st.incr = nil
	}
}

func (e *Engine) dropOutgoing() {
	if len(e.st.outgoing) == 0 {
		return
	}
	e.logger.Debug("Dropping unfinished outgoing transfers", zap.Int("count", len(e.st.outgoing)))
	e.st.outgoing = make(map[outgoingKey]*outgoingTransfer)
}

// Dispatch routes one event to its handler. Events unrelated to the
// clipboard are ignored.
func (e *Engine) Dispatch(ev Event) {
	if e.closed || ev == nil {
		return
	}

	switch ev := ev.(type) {
	case OwnershipQuery:
		e.handleQuery(ev)
	case OwnershipCleared:
		e.handleCleared(ev)
	case RemoteOwnerChanged:
		e.handleOwnerChanged(ev)
	case SelectionDataReady:
		e.handleDataReady(ev)
	case IncrementalChunk:
		e.handleChunk(ev)
	case PropertyDeleted:
		e.handlePropertyDeleted(ev)
	}
}

func (e *Engine) tracks(sel Atom) bool {
	for _, s := range e.selections {
		if s == sel {
			return true
		}
	}
	return false
}

func (e *Engine) handleQuery(q OwnershipQuery) {
	property := q.Property
	if property == AtomNone {
		// obsolete requestors leave the property unset and expect the target name
		property = q.Target
	}
	n := Notify{
		Requestor: q.Requestor,
		Selection: q.Selection,
		Target:    q.Target,
		Property:  property,
		Time:      q.Time,
	}

	owned := e.st.owned
	if !e.st.ownedSelections[q.Selection] {
		owned = types.KindNone
	}
	d := decideQuery(e.reg, e.atoms, owned, e.h.SupplyData != nil, q.Target)
	switch d.Action {
	case RespondTargets:
		if err := e.p.ChangeProperty32(q.Requestor, property, e.atoms.atom, d.Targets); err != nil {
			e.logger.Warn("Failed to write target list", zap.Error(err))
			e.refuse(n)
			return
		}
		e.sendNotify(n)

	case DeferToCallback:
		if e.st.pending != nil {
			e.abandonPending()
		}
		pr := &pendingReply{notify: n, kind: d.Kind}
		e.st.pending = pr
		e.h.SupplyData(d.Kind, e.replyFor(pr))

	default:
		e.logger.Debug("No data for selection request",
			zap.String("target", e.p.AtomName(q.Target)),
			zap.Stringer("owned", e.st.owned))
		e.refuse(n)
	}
}

func (e *Engine) replyFor(pr *pendingReply) Reply {
	return func(data []byte) {
		if pr.done || e.closed {
			return
		}
		pr.done = true
		if e.st.pending == pr {
			e.st.pending = nil
		}
		e.complete(pr, data)
	}
}

// complete writes data for a deferred request and finishes the handshake.
func (e *Engine) complete(pr *pendingReply, data []byte) {
	n := pr.notify
	if len(data) == 0 {
		e.refuse(n)
		return
	}

	if limit := e.p.MaxChunkSize(); limit > 0 && len(data) > limit {
		e.startOutgoing(n, data)
		return
	}

	if err := e.p.ChangeProperty(n.Requestor, n.Property, n.Target, data); err != nil {
		e.logger.Warn("Failed to write selection data", zap.Int("size", len(data)), zap.Error(err))
		e.refuse(n)
		return
	}
	e.stats.Served++
	e.stats.BytesSent += int64(len(data))
	e.sendNotify(n)
}

// abandonPending answers an outstanding deferred request with no data, so
// its requestor is not left waiting.
func (e *Engine) abandonPending() {
	pr := e.st.pending
	if pr == nil {
		return
	}
	e.st.pending = nil
	if !pr.done {
		pr.done = true
		e.refuse(pr.notify)
	}
}

func (e *Engine) refuse(n Notify) {
	n.Property = AtomNone
	e.stats.Refused++
	e.sendNotify(n)
}

func (e *Engine) sendNotify(n Notify) {
	if err := e.p.SendSelectionNotify(n); err != nil {
		e.logger.Warn("Failed to send selection notify", zap.Error(err))
	}
	e.flush()
}

func (e *Engine) flush() {
	if err := e.p.Flush(); err != nil {
		e.logger.Warn("Failed to flush platform connection", zap.Error(err))
	}
}

func (e *Engine) handleCleared(ev OwnershipCleared) {
	if !e.tracks(ev.Selection) {
		return
	}
	e.st.currentSelection = AtomNone

	if e.st.owned == types.KindNone || !e.st.ownedSelections[ev.Selection] {
		// released by us, or already lost
		return
	}
	delete(e.st.ownedSelections, ev.Selection)
	if len(e.st.ownedSelections) > 0 {
		e.logger.Debug("Lost one selection, still serving the others",
			zap.String("selection", e.p.AtomName(ev.Selection)),
			zap.Int("remaining", len(e.st.ownedSelections)))
		return
	}
	e.abandonPending()
	e.dropOutgoing()
	e.st.owned = types.KindNone
	if e.h.ReleaseRequested != nil {
		e.h.ReleaseRequested()
	}
}

func (e *Engine) handleOwnerChanged(ev RemoteOwnerChanged) {
	if !e.tracks(ev.Selection) || ev.Owner == e.window || ev.Owner == WindowNone {
		return
	}

	e.st.currentSelection = ev.Selection
	e.st.incr = nil
	if err := e.p.ConvertSelection(e.window, ev.Selection, e.atoms.targets, e.atoms.targets); err != nil {
		e.logger.Warn("Failed to request target list",
			zap.String("selection", e.p.AtomName(ev.Selection)), zap.Error(err))
		return
	}
	e.flush()
}

func (e *Engine) handleDataReady(ev SelectionDataReady) {
	if ev.Requestor != WindowNone && ev.Requestor != e.window {
		return
	}
	if ev.Property == AtomNone {
		e.logger.Debug("Selection owner refused conversion", zap.String("target", e.p.AtomName(ev.Target)))
		e.st.incr = nil
		e.notifyType(types.KindNone, 0)
		return
	}

	prop, err := e.p.GetProperty(e.window, ev.Property, true)
	if err != nil {
		e.logger.Warn("Failed to read selection property", zap.Error(err))
		e.st.incr = nil
		e.notifyType(types.KindNone, 0)
		return
	}

	d := decideNotify(e.reg, e.atoms, ev.Property, prop)
	if d.Outcome != NotifyIncrementalStart {
		e.st.incr = nil
	}
	switch d.Outcome {
	case NotifyIncrementalStart:
		e.st.incr = &incrementalTransfer{remaining: d.Size, started: true, kind: types.KindNone}
		e.logger.Debug("Incremental transfer announced", zap.Int64("lower_bound", d.Size))

	case NotifyTypeList:
		e.notifyType(d.Kind, 0)

	case NotifyData:
		e.stats.Chunks++
		e.stats.BytesReceived += int64(len(prop.Data))
		if e.h.RemoteDataReady != nil {
			e.h.RemoteDataReady(d.Kind, prop.Data)
		}
		if e.h.RemoteDataDone != nil {
			e.h.RemoteDataDone(d.Kind)
		}

	case NotifyUnsupported:
		e.logger.Warn("Clipboard data not in a supported format", zap.String("type", e.p.AtomName(prop.Type)))
		e.notifyType(types.KindNone, 0)
	}
}

func (e *Engine) handleChunk(ev IncrementalChunk) {
	t := e.st.incr
	if t == nil || ev.Window != e.window || ev.Property != e.atoms.selData {
		return
	}

	prop, err := e.p.GetProperty(e.window, e.atoms.selData, true)
	if err != nil {
		e.logger.Warn("Failed to read incremental chunk", zap.Error(err))
		e.st.incr = nil
		e.notifyType(types.KindNone, 0)
		return
	}

	outcome, kind := decideChunk(e.reg, t, prop)
	if outcome == ChunkUnsupported {
		e.logger.Warn("Incremental data not in a supported format", zap.String("type", e.p.AtomName(prop.Type)))
		e.st.incr = nil
		e.notifyType(types.KindNone, 0)
		return
	}

	t.kind = kind
	if t.started {
		t.started = false
		e.notifyType(kind, t.remaining)
	}

	if outcome == ChunkDone {
		e.st.incr = nil
		if e.h.RemoteDataDone != nil {
			e.h.RemoteDataDone(kind)
		}
		return
	}

	e.stats.Chunks++
	e.stats.BytesReceived += int64(len(prop.Data))
	if e.h.RemoteDataReady != nil {
		e.h.RemoteDataReady(kind, prop.Data)
	}
	t.consume(len(prop.Data))
}

func (e *Engine) notifyType(kind types.ContentKind, size int64) {
	if e.h.RemoteTypeAvailable != nil {
		e.h.RemoteTypeAvailable(kind, size)
	}
}
