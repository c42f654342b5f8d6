package selection

import (
	"errors"
	"fmt"

	"github.com/berrythewa/clipbridge/internal/types"
)

// ErrAtomResolution is returned when a content kind cannot be mapped to an atom.
var ErrAtomResolution = errors.New("selection: atom resolution failed")

// Registry maps content kinds to platform atoms and back. It is built once
// and never modified.
type Registry struct {
	atoms [types.KindNone]Atom
	kinds map[Atom]types.ContentKind
}

// NewRegistry resolves every content kind's target name with intern.
func NewRegistry(intern func(name string) (Atom, error)) (*Registry, error) {
	r := &Registry{kinds: make(map[Atom]types.ContentKind, types.KindNone)}

	for _, k := range types.Kinds() {
		name := k.TargetName()
		a, err := intern(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAtomResolution, name, err)
		}
		if a == AtomNone {
			return nil, fmt.Errorf("%w: %s resolved to none", ErrAtomResolution, name)
		}
		if prev, dup := r.kinds[a]; dup {
			return nil, fmt.Errorf("%w: %s and %s share atom %d", ErrAtomResolution, prev, k, a)
		}
		r.atoms[k] = a
		r.kinds[a] = k
	}

	return r, nil
}

// KindFor returns the kind registered for a, or KindNone.
func (r *Registry) KindFor(a Atom) types.ContentKind {
	if k, ok := r.kinds[a]; ok {
		return k
	}
	return types.KindNone
}

// AtomFor returns the atom for k. Only kinds the engine produced are passed
// here; anything else yields AtomNone.
func (r *Registry) AtomFor(k types.ContentKind) Atom {
	if !k.Valid() {
		return AtomNone
	}
	return r.atoms[k]
}

// Negotiate picks the highest priority kind present in offered. Priority is
// registry declaration order, not the order of offered.
func (r *Registry) Negotiate(offered []Atom) types.ContentKind {
	best := types.KindNone
	for _, a := range offered {
		if k := r.KindFor(a); k < best {
			best = k
		}
	}
	return best
}
