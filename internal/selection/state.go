package selection

import "github.com/berrythewa/clipbridge/internal/types"

// incrementalTransfer tracks an INCR transfer we are receiving.
type incrementalTransfer struct {
	// remaining is only an estimate: the owner advertises a lower bound up
	// front and it is decremented per chunk, clamped at zero.
	remaining int64
	started   bool
	kind      types.ContentKind
}

func (t *incrementalTransfer) consume(n int) {
	t.remaining -= int64(n)
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// pendingReply is a request we deferred to the data supplier.
type pendingReply struct {
	notify Notify
	kind   types.ContentKind
	done   bool
}

type outgoingKey struct {
	window   Window
	property Atom
}

// outgoingTransfer is an INCR transfer we are sending to a requestor.
type outgoingTransfer struct {
	typ    Atom
	data   []byte
	offset int
}

// next returns the next chunk and whether it is the zero-length terminator.
func (t *outgoingTransfer) next(limit int) ([]byte, bool) {
	if t.offset >= len(t.data) {
		return nil, true
	}
	end := t.offset + limit
	if end > len(t.data) {
		end = len(t.data)
	}
	chunk := t.data[t.offset:end]
	t.offset = end
	return chunk, false
}

// state is the engine's mutable record. Only the dispatch goroutine touches it.
type state struct {
	currentSelection Atom
	owned            types.ContentKind
	// ownedSelections are the tracked selections still held for owned.
	ownedSelections map[Atom]bool
	pending          *pendingReply
	incr             *incrementalTransfer
	outgoing         map[outgoingKey]*outgoingTransfer
}

func newState() state {
	return state{
		currentSelection: AtomNone,
		owned:            types.KindNone,
		ownedSelections:  make(map[Atom]bool),
		outgoing:         make(map[outgoingKey]*outgoingTransfer),
	}
}
