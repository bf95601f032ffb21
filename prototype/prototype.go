// Package prototype loads and queries the immutable tile catalogue that
// drives collapse and propagation: one Prototype per tile kind, each
// carrying a direction-indexed adjacency list.
package prototype

import (
	"fmt"
	"sort"

	"github.com/willcliffy/live-wave-function-collapse/geom"
)

// EmptyID is the distinguished prototype id denoting the "empty/air" tile.
// It is the unique fill used for unreachable cells during prune, and the
// only tile permitted to appear uncapped along a map edge.
const EmptyID = "p-1"

// emptySlot and emptySlotFlipped are the catalogue's markers for "no
// neighbour required in this direction" on a prototype's slot descriptor.
// Both spellings appear in hand-authored catalogues (original_source used
// both "-1" and "-1f" across tile revisions).
const (
	emptySlot        = "-1"
	emptySlotFlipped = "-1f"
)

// Prototype is one tile kind: a unique id, its six direction-indexed
// adjacency lists (see geom.Direction for index order), a weight for
// weighted collapse, two free-form constraint tags, and an opaque
// mesh/visual reference the core never interprets.
type Prototype struct {
	ID string

	// MeshName, MeshRotation, NoID, NoIDSym are opaque to the engine; they
	// are carried through for the host rendering layer.
	MeshName     string
	MeshRotation int
	NoID         int
	NoIDSym      int

	// Slots are the raw, direction-indexed slot descriptors as loaded from
	// the catalogue, in geom.Direction order (posX/posY/negX/negY/posZ/negZ). Opaque except for the
	// empty-slot markers, used by the validator's prune pass.
	Slots [6]string

	// ConstrainTo and ConstrainFrom are free-form tags, e.g. "BOT".
	ConstrainTo   string
	ConstrainFrom string

	Weight float64

	// ValidNeighbours is the direction-indexed adjacency list: for each of
	// the 6 directions, the set of prototype ids compatible in that
	// direction.
	ValidNeighbours [6][]string
}

// Slot returns the raw slot descriptor in direction d.
func (p *Prototype) Slot(d geom.Direction) string {
	return p.Slots[d]
}

// IsEmptySlot reports whether slot is one of the catalogue's "no neighbour
// required" markers.
func IsEmptySlot(slot string) bool {
	return slot == emptySlot || slot == emptySlotFlipped
}

// Uncapped reports whether p may appear flush against a map edge in
// direction d, i.e. whether its adjacency list for d contains EmptyID.
func (p *Prototype) Uncapped(d geom.Direction) bool {
	for _, id := range p.ValidNeighbours[d] {
		if id == EmptyID {
			return true
		}
	}
	return false
}

// Catalogue is the immutable set of loaded prototypes, shared by reference
// and never mutated after Load returns.
type Catalogue struct {
	byID map[string]*Prototype
	// ids is byID's keys in sorted order, giving deterministic iteration for
	// reproducible, seeded runs.
	ids []string
}

// New builds a Catalogue from an already-parsed set of prototypes, keyed by
// id. It panics if protos is empty or doesn't contain exactly one EmptyID
// entry - both are programmer errors for any caller other than Load.
func New(protos map[string]*Prototype) *Catalogue {
	if len(protos) == 0 {
		panic("prototype: empty catalogue")
	}
	if _, ok := protos[EmptyID]; !ok {
		panic(fmt.Sprintf("prototype: catalogue missing required %q entry", EmptyID))
	}

	ids := make([]string, 0, len(protos))
	for id := range protos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Catalogue{byID: protos, ids: ids}
}

// Get returns the prototype with the given id, or nil if not found.
func (c *Catalogue) Get(id string) *Prototype {
	return c.byID[id]
}

// Empty returns the distinguished empty/air prototype.
func (c *Catalogue) Empty() *Prototype {
	return c.byID[EmptyID]
}

// All returns every prototype in the catalogue, in deterministic
// (lexicographic by id) order. Callers must not mutate the result.
func (c *Catalogue) All() []*Prototype {
	out := make([]*Prototype, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.byID[id]
	}
	return out
}

// Len returns the number of prototypes in the catalogue.
func (c *Catalogue) Len() int {
	return len(c.ids)
}

// Compatible reports whether self is compatible with the prototype
// identified by otherID, in direction d - i.e. whether self's adjacency
// list for d contains otherID. Per invariant I2, when self occupies a cell
// and otherID's cell is the neighbour in direction d, this must hold for
// both cells to be simultaneously collapsed.
func Compatible(self *Prototype, otherID string, d geom.Direction) bool {
	for _, id := range self.ValidNeighbours[d] {
		if id == otherID {
			return true
		}
	}
	return false
}

// CompatibleWithAny reports whether self is compatible, in direction d,
// with at least one of others.
func CompatibleWithAny(self *Prototype, others []*Prototype, d geom.Direction) bool {
	for _, other := range others {
		if Compatible(self, other.ID, d) {
			return true
		}
	}
	return false
}

// RetainUncapped filters list down to the prototypes that are Uncapped in
// direction d. Idempotent: applying it twice in a row yields the same
// result as applying it once.
func RetainUncapped(list []*Prototype, d geom.Direction) []*Prototype {
	out := list[:0:0]
	for _, p := range list {
		if p.Uncapped(d) {
			out = append(out, p)
		}
	}
	return out
}

// RetainNotConstrained filters list down to the prototypes whose
// ConstrainTo does not equal tag. Idempotent, for the same reason as
// RetainUncapped.
func RetainNotConstrained(list []*Prototype, tag string) []*Prototype {
	out := list[:0:0]
	for _, p := range list {
		if p.ConstrainTo != tag {
			out = append(out, p)
		}
	}
	return out
}
