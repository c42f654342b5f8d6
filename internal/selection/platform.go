package selection

// Atom is an opaque windowing-system type/name identifier.
type Atom uint32

// Window identifies a window on the windowing system.
type Window uint32

const (
	// AtomNone doubles as the "unset" selection and the refused-conversion property.
	AtomNone Atom = 0
	// WindowNone is the null owner.
	WindowNone Window = 0
)

// SubsystemX11 is the only windowing subsystem whose selection conventions
// (TARGETS negotiation, INCR transfers) the engine speaks.
const SubsystemX11 = "x11"

// Property is the result of reading a window property.
type Property struct {
	Type   Atom
	Format byte
	Data   []byte
	// Values holds Data decoded as 32-bit items when Format is 32, in the
	// platform's byte order.
	Values []uint32
}

// Notify completes the request/reply handshake of a selection request.
// A Property of AtomNone tells the requestor no data is available.
type Notify struct {
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
	Time      uint32
}

// Platform is the windowing substrate the engine drives. Every method is
// called from the goroutine that dispatches events to the engine.
type Platform interface {
	// Subsystem names the windowing system, e.g. SubsystemX11.
	Subsystem() string

	InternAtom(name string) (Atom, error)
	AtomName(a Atom) string

	// SetSelectionOwner asserts (owner != WindowNone) or relinquishes ownership.
	SetSelectionOwner(owner Window, selection Atom) error
	// ConvertSelection asks the selection owner to write target into property
	// on requestor; the result arrives later as a SelectionDataReady event.
	ConvertSelection(requestor Window, selection, target, property Atom) error

	ChangeProperty(w Window, property, typ Atom, data []byte) error
	ChangeProperty32(w Window, property, typ Atom, values []uint32) error
	GetProperty(w Window, property Atom, delete bool) (*Property, error)

	SendSelectionNotify(n Notify) error

	// WatchProperties subscribes to property change events on w.
	WatchProperties(w Window) error
	// WatchSelection subscribes w to owner change events for selection.
	WatchSelection(w Window, selection Atom) error

	// MaxChunkSize is the largest payload written in a single property change.
	MaxChunkSize() int
	Flush() error
}
