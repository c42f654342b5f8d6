package x11

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/berrythewa/clipbridge/internal/selection"
)

// Decode converts a raw server event into the engine's event set. Events the
// engine has no use for yield nil.
func Decode(ev xgb.Event) selection.Event {
	switch e := ev.(type) {
	case xproto.SelectionRequestEvent:
		return selection.OwnershipQuery{
			Requestor: selection.Window(e.Requestor),
			Selection: selection.Atom(e.Selection),
			Target:    selection.Atom(e.Target),
			Property:  selection.Atom(e.Property),
			Time:      uint32(e.Time),
		}

	case xproto.SelectionClearEvent:
		return selection.OwnershipCleared{
			Selection: selection.Atom(e.Selection),
			Time:      uint32(e.Time),
		}

	case xproto.SelectionNotifyEvent:
		return selection.SelectionDataReady{
			Requestor: selection.Window(e.Requestor),
			Selection: selection.Atom(e.Selection),
			Target:    selection.Atom(e.Target),
			Property:  selection.Atom(e.Property),
			Time:      uint32(e.Time),
		}

	case xproto.PropertyNotifyEvent:
		switch e.State {
		case xproto.PropertyNewValue:
			return selection.IncrementalChunk{
				Window:   selection.Window(e.Window),
				Property: selection.Atom(e.Atom),
			}
		case xproto.PropertyDelete:
			return selection.PropertyDeleted{
				Window:   selection.Window(e.Window),
				Property: selection.Atom(e.Atom),
			}
		}

	case xfixes.SelectionNotifyEvent:
		// owner destroyed or disconnected: nothing to fetch from
		if e.Subtype != xfixes.SelectionEventSetSelectionOwner {
			return nil
		}
		return selection.RemoteOwnerChanged{
			Selection: selection.Atom(e.Selection),
			Owner:     selection.Window(e.Owner),
			Time:      uint32(e.SelectionTimestamp),
		}
	}

	return nil
}
