package selection

// Event is one windowing event, already decoded from the platform's raw
// representation. The set of implementations is closed.
type Event interface {
	event()
}

// OwnershipQuery is a requestor asking us, the owner, to convert a selection.
type OwnershipQuery struct {
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
	Time      uint32
}

// OwnershipCleared reports that we lost ownership of a selection.
type OwnershipCleared struct {
	Selection Atom
	Time      uint32
}

// RemoteOwnerChanged reports that some window, possibly ours, became owner
// of a selection.
type RemoteOwnerChanged struct {
	Selection Atom
	Owner     Window
	Time      uint32
}

// SelectionDataReady carries the result of one of our conversion requests.
// Property is AtomNone when the owner refused.
type SelectionDataReady struct {
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
	Time      uint32
}

// IncrementalChunk reports that a property received a new value.
type IncrementalChunk struct {
	Window   Window
	Property Atom
}

// PropertyDeleted reports a deleted property. A requestor deletes it to ask
// for the next chunk of an incremental transfer we are sending.
type PropertyDeleted struct {
	Window   Window
	Property Atom
}

func (OwnershipQuery) event()     {}
func (OwnershipCleared) event()   {}
func (RemoteOwnerChanged) event() {}
func (SelectionDataReady) event() {}
func (IncrementalChunk) event()   {}
func (PropertyDeleted) event()    {}
