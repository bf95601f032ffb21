// Package cell implements one lattice position's possibility set, and the
// "book" check-out/check-in protocol library3d.Library3D uses to guard
// concurrent access to it.
package cell

import (
	"errors"
	"math/rand"

	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/orderedset"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

// ErrOvercollapsed is returned when an operation would leave, or found, a
// cell with zero possibilities.
var ErrOvercollapsed = errors.New("cell: overcollapsed")

func protoKey(p *prototype.Prototype) string { return p.ID }

// Cell is one lattice position's current possibility set, plus the
// version/checked-out bookkeeping ("book" protocol) used by library3d for
// optimistic-concurrency check-out/check-in.
type Cell struct {
	position      geom.Vector3
	possibilities *orderedset.Set[string, *prototype.Prototype]
	version       int64
	checkedOut    bool
}

// New creates a Cell at position with the given initial possibilities,
// deduplicated by id and sorted for deterministic iteration.
func New(position geom.Vector3, possibilities []*prototype.Prototype) *Cell {
	return &Cell{
		position:      position,
		possibilities: orderedset.FromSlice(protoKey, possibilities),
	}
}

// Clone returns a deep-enough copy: an independent possibility set, but
// sharing *prototype.Prototype pointers (immutable, so safe to share).
func (c *Cell) Clone() *Cell {
	return &Cell{
		position:      c.position,
		possibilities: c.possibilities.Clone(),
		version:       c.version,
		checkedOut:    c.checkedOut,
	}
}

// Position returns the cell's lattice position.
func (c *Cell) Position() geom.Vector3 { return c.position }

// Possibilities returns the current possibility set, in deterministic
// (ascending prototype id) order. Callers must not mutate the result.
func (c *Cell) Possibilities() []*prototype.Prototype {
	return c.possibilities.Values()
}

// Entropy is the size of the possibility set.
func (c *Cell) Entropy() int { return c.possibilities.Len() }

// Collapsed reports whether the cell's entropy is <= 1.
func (c *Cell) Collapsed() bool { return c.Entropy() <= 1 }

// Overcollapsed reports whether the cell's entropy is 0 - an error state.
func (c *Cell) Overcollapsed() bool { return c.Entropy() == 0 }

// Change replaces the possibility set with newPossibilities, reporting
// whether the cardinality changed. Applying Change twice with the same
// newPossibilities is idempotent: the second call reports changed=false.
func (c *Cell) Change(newPossibilities []*prototype.Prototype) (changed bool) {
	old := c.Entropy()
	c.possibilities = orderedset.FromSlice(protoKey, newPossibilities)
	return c.Entropy() != old
}

// CollapseTo produces a new Cell with possibilities = {prototype}, where
// prototype is either the supplied forced choice or one sampled by weight
// using rng. Returns ErrOvercollapsed if the cell has no possibilities to
// choose from.
func (c *Cell) CollapseTo(rng *rand.Rand, forced *prototype.Prototype) (*Cell, error) {
	chosen := forced
	if chosen == nil {
		var err error
		chosen, err = c.chooseWeighted(rng)
		if err != nil {
			return nil, err
		}
	}

	out := c.Clone()
	out.Change([]*prototype.Prototype{chosen})
	return out, nil
}

// chooseWeighted draws a weighted-random prototype from the current
// possibility set: draw r in [0, sum(weights)), walk the deterministic
// iteration order subtracting weights, and pick the first prototype that
// drives r <= 0. Falls back to the last element on floating-point overflow
// at the boundary, matching the reference implementation.
func (c *Cell) chooseWeighted(rng *rand.Rand) (*prototype.Prototype, error) {
	possibilities := c.Possibilities()
	if len(possibilities) == 0 {
		return nil, ErrOvercollapsed
	}

	var sum float64
	for _, p := range possibilities {
		sum += p.Weight
	}

	r := rng.Float64() * sum
	for _, p := range possibilities {
		r -= p.Weight
		if r <= 0 {
			return p, nil
		}
	}

	return possibilities[len(possibilities)-1], nil
}

// ChangesFrom computes the constraint update this cell (the neighbour)
// would undergo given source (an adjacent, already-updated cell): it keeps
// only the possibilities compatible, in the direction from this cell to
// source, with at least one of source's possibilities.
//
// Returns the updated Cell and true if the possibility set would shrink;
// (nil, false) if nothing changes. If the result would be empty, the
// returned Cell's Overcollapsed() is true - callers (chunk.propagate) treat
// this as a fatal per-chunk error.
func (c *Cell) ChangesFrom(source *Cell) (*Cell, bool) {
	d, ok := geom.DirectionFromDelta(source.position.Sub(c.position))
	if !ok {
		return nil, false
	}

	sourcePossibilities := source.Possibilities()
	current := c.Possibilities()
	kept := make([]*prototype.Prototype, 0, len(current))
	for _, p := range current {
		if prototype.CompatibleWithAny(p, sourcePossibilities, d) {
			kept = append(kept, p)
		}
	}

	if len(kept) == len(current) {
		return nil, false
	}

	out := c.Clone()
	out.Change(kept)
	return out, true
}

// Book protocol, used by library3d.Library3D for optimistic concurrency.

// Version returns the cell's current version token.
func (c *Cell) Version() int64 { return c.version }

// SetVersion stamps a new version token.
func (c *Cell) SetVersion(v int64) { c.version = v }

// IsCheckedOut reports whether the cell is currently checked out.
func (c *Cell) IsCheckedOut() bool { return c.checkedOut }

// CheckOut marks the cell checked out, returning false if it already was.
func (c *Cell) CheckOut() bool {
	if c.checkedOut {
		return false
	}
	c.checkedOut = true
	return true
}

// CheckIn marks the cell checked in, returning false if it wasn't out.
func (c *Cell) CheckIn() bool {
	if !c.checkedOut {
		return false
	}
	c.checkedOut = false
	return true
}
