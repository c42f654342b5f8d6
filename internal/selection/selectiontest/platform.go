// Package selectiontest provides an in-memory windowing platform for
// exercising the selection engine without a display server.
package selectiontest

import (
	"errors"
	"fmt"

	"github.com/berrythewa/clipbridge/internal/selection"
)

// ErrInjected is returned by calls configured to fail.
var ErrInjected = errors.New("selectiontest: injected failure")

// Conversion records one ConvertSelection call.
type Conversion struct {
	Requestor selection.Window
	Selection selection.Atom
	Target    selection.Atom
	Property  selection.Atom
}

// Change records one property write.
type Change struct {
	Window   selection.Window
	Property selection.Atom
	Type     selection.Atom
	Format   byte
	Data     []byte
	Values   []uint32
}

type propKey struct {
	w selection.Window
	p selection.Atom
}

// Platform is a fake selection.Platform. Atoms are assigned on first use.
// It is not safe for concurrent use, just like the engine driving it.
type Platform struct {
	SubsystemName string
	ChunkSize     int

	// Failure injection.
	FailIntern       map[string]bool
	FailWatch        bool
	FailGetProperty  bool
	FailChangeWrites bool

	atoms map[string]selection.Atom
	names map[selection.Atom]string
	props map[propKey]*selection.Property

	Owners        map[selection.Atom]selection.Window
	OwnerCalls    int
	Conversions   []Conversion
	Changes       []Change
	Notifies      []selection.Notify
	Watched       []selection.Window
	WatchedSel    []selection.Atom
	Flushes       int
	PropertyReads int
}

// NewPlatform returns an X11-flavoured fake with a 64 KiB chunk size.
func NewPlatform() *Platform {
	return &Platform{
		SubsystemName: selection.SubsystemX11,
		ChunkSize:     64 * 1024,
		FailIntern:    make(map[string]bool),
		atoms:         make(map[string]selection.Atom),
		names:         make(map[selection.Atom]string),
		props:         make(map[propKey]*selection.Property),
		Owners:        make(map[selection.Atom]selection.Window),
	}
}

// Atom returns the atom for name, interning it if needed.
func (p *Platform) Atom(name string) selection.Atom {
	if a, ok := p.atoms[name]; ok {
		return a
	}
	a := selection.Atom(len(p.atoms) + 100)
	p.atoms[name] = a
	p.names[a] = name
	return a
}

// SetProperty stores a property as if another client had written it.
func (p *Platform) SetProperty(w selection.Window, property selection.Atom, prop selection.Property) {
	cp := prop
	p.props[propKey{w, property}] = &cp
}

// Property returns a stored property without deleting it.
func (p *Platform) Property(w selection.Window, property selection.Atom) (*selection.Property, bool) {
	prop, ok := p.props[propKey{w, property}]
	return prop, ok
}

// LastNotify returns the most recent handshake completion.
func (p *Platform) LastNotify() (selection.Notify, bool) {
	if len(p.Notifies) == 0 {
		return selection.Notify{}, false
	}
	return p.Notifies[len(p.Notifies)-1], true
}

// Reset forgets recorded calls but keeps atoms and properties.
func (p *Platform) Reset() {
	p.OwnerCalls = 0
	p.Conversions = nil
	p.Changes = nil
	p.Notifies = nil
	p.Flushes = 0
	p.PropertyReads = 0
}

func (p *Platform) Subsystem() string { return p.SubsystemName }

func (p *Platform) InternAtom(name string) (selection.Atom, error) {
	if p.FailIntern[name] {
		return selection.AtomNone, fmt.Errorf("intern %s: %w", name, ErrInjected)
	}
	return p.Atom(name), nil
}

func (p *Platform) AtomName(a selection.Atom) string {
	if name, ok := p.names[a]; ok {
		return name
	}
	return fmt.Sprintf("atom(%d)", a)
}

func (p *Platform) SetSelectionOwner(owner selection.Window, sel selection.Atom) error {
	p.OwnerCalls++
	p.Owners[sel] = owner
	return nil
}

func (p *Platform) ConvertSelection(requestor selection.Window, sel, target, property selection.Atom) error {
	p.Conversions = append(p.Conversions, Conversion{requestor, sel, target, property})
	return nil
}

func (p *Platform) ChangeProperty(w selection.Window, property, typ selection.Atom, data []byte) error {
	if p.FailChangeWrites {
		return ErrInjected
	}
	cp := append([]byte(nil), data...)
	p.Changes = append(p.Changes, Change{Window: w, Property: property, Type: typ, Format: 8, Data: cp})
	p.props[propKey{w, property}] = &selection.Property{Type: typ, Format: 8, Data: cp}
	return nil
}

func (p *Platform) ChangeProperty32(w selection.Window, property, typ selection.Atom, values []uint32) error {
	if p.FailChangeWrites {
		return ErrInjected
	}
	cp := append([]uint32(nil), values...)
	p.Changes = append(p.Changes, Change{Window: w, Property: property, Type: typ, Format: 32, Values: cp})
	p.props[propKey{w, property}] = &selection.Property{Type: typ, Format: 32, Values: cp}
	return nil
}

func (p *Platform) GetProperty(w selection.Window, property selection.Atom, del bool) (*selection.Property, error) {
	p.PropertyReads++
	if p.FailGetProperty {
		return nil, ErrInjected
	}
	key := propKey{w, property}
	prop, ok := p.props[key]
	if !ok {
		return &selection.Property{}, nil
	}
	if del {
		delete(p.props, key)
	}
	return prop, nil
}

func (p *Platform) SendSelectionNotify(n selection.Notify) error {
	p.Notifies = append(p.Notifies, n)
	return nil
}

func (p *Platform) WatchProperties(w selection.Window) error {
	if p.FailWatch {
		return ErrInjected
	}
	p.Watched = append(p.Watched, w)
	return nil
}

func (p *Platform) WatchSelection(w selection.Window, sel selection.Atom) error {
	if p.FailWatch {
		return ErrInjected
	}
	p.WatchedSel = append(p.WatchedSel, sel)
	return nil
}

func (p *Platform) MaxChunkSize() int { return p.ChunkSize }

func (p *Platform) Flush() error {
	p.Flushes++
	return nil
}
