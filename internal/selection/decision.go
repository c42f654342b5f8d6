package selection

import "github.com/berrythewa/clipbridge/internal/types"

// QueryAction is how an ownership query is answered.
type QueryAction int

const (
	// RespondNone refuses the request: the notify carries no property.
	RespondNone QueryAction = iota
	// RespondTargets answers with the list of targets we can convert to.
	RespondTargets
	// DeferToCallback hands the request to the data supplier; the reply
	// continuation responds with the data later.
	DeferToCallback
)

func (a QueryAction) String() string {
	switch a {
	case RespondTargets:
		return "targets"
	case DeferToCallback:
		return "defer"
	default:
		return "none"
	}
}

// QueryDecision is the answer to an ownership query.
type QueryDecision struct {
	Action  QueryAction
	Targets []uint32
	Kind    types.ContentKind
}

// decideQuery answers a request for target while we own kind owned.
// Exactly one kind is advertised per claim.
func decideQuery(reg *Registry, a wellKnown, owned types.ContentKind, hasSupplier bool, target Atom) QueryDecision {
	if !hasSupplier || !owned.Valid() {
		return QueryDecision{Action: RespondNone}
	}

	ownedAtom := reg.AtomFor(owned)
	switch target {
	case a.targets:
		return QueryDecision{
			Action:  RespondTargets,
			Targets: []uint32{uint32(a.targets), uint32(ownedAtom)},
			Kind:    owned,
		}
	case ownedAtom:
		return QueryDecision{Action: DeferToCallback, Kind: owned}
	default:
		return QueryDecision{Action: RespondNone}
	}
}

// NotifyOutcome classifies the result of one of our conversion requests.
type NotifyOutcome int

const (
	// NotifyIgnore is a property we did not ask for.
	NotifyIgnore NotifyOutcome = iota
	// NotifyIncrementalStart is an INCR marker; chunks follow.
	NotifyIncrementalStart
	// NotifyTypeList is the answer to a TARGETS request.
	NotifyTypeList
	// NotifyData is a complete payload of a supported kind.
	NotifyData
	// NotifyUnsupported is a payload whose type maps to no kind.
	NotifyUnsupported
)

// NotifyDecision says what to do with a property delivered by SelectionDataReady.
type NotifyDecision struct {
	Outcome NotifyOutcome
	Kind    types.ContentKind
	Size    int64
}

// decideNotify inspects a property we just read (and deleted) from our window.
func decideNotify(reg *Registry, a wellKnown, property Atom, prop *Property) NotifyDecision {
	if prop.Type == a.incr {
		var size int64
		if len(prop.Values) > 0 {
			size = int64(prop.Values[0])
		}
		return NotifyDecision{Outcome: NotifyIncrementalStart, Size: size}
	}

	switch property {
	case a.targets:
		if prop.Format != 32 || len(prop.Values) == 0 {
			return NotifyDecision{Outcome: NotifyTypeList, Kind: types.KindNone}
		}
		offered := make([]Atom, len(prop.Values))
		for i, v := range prop.Values {
			offered[i] = Atom(v)
		}
		return NotifyDecision{Outcome: NotifyTypeList, Kind: reg.Negotiate(offered)}

	case a.selData:
		kind := reg.KindFor(prop.Type)
		if kind == types.KindNone {
			return NotifyDecision{Outcome: NotifyUnsupported}
		}
		return NotifyDecision{Outcome: NotifyData, Kind: kind, Size: int64(len(prop.Data))}
	}

	return NotifyDecision{Outcome: NotifyIgnore}
}

// ChunkOutcome classifies one chunk of an incoming incremental transfer.
type ChunkOutcome int

const (
	ChunkData ChunkOutcome = iota
	// ChunkDone is the zero-length terminator.
	ChunkDone
	ChunkUnsupported
)

// decideChunk maps a chunk to its kind. The first mapped kind sticks for
// the rest of the transfer, so a terminator carrying an odd type still ends it.
func decideChunk(reg *Registry, t *incrementalTransfer, prop *Property) (ChunkOutcome, types.ContentKind) {
	kind := t.kind
	if kind == types.KindNone {
		kind = reg.KindFor(prop.Type)
	}

	if len(prop.Data) == 0 && kind != types.KindNone {
		return ChunkDone, kind
	}
	if kind == types.KindNone {
		return ChunkUnsupported, types.KindNone
	}
	return ChunkData, kind
}
