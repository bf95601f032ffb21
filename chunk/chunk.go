// Package chunk implements the WFC kernel that operates over a single
// checked-out library3d.Range: boundary reset, constraint application,
// lowest-entropy collapse, and constraint propagation (§4.4).
//
// A Chunk is deliberately stateless beyond its own bounds - it never holds
// a reference to the map or the library it's cut from. Every operation
// takes the Range (and, where needed, the map size or catalogue) as an
// explicit argument, so ownership flows strictly Library3D -> Range ->
// kernel, with no back-pointer from chunk to map.
package chunk

import (
	"errors"
	"math"
	"math/rand"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

// constrainBot is the free-form ConstrainTo tag restricting a prototype to
// y == 0 cells (e.g. foundation pieces).
const constrainBot = "BOT"

// GroundBias is added to a cell's raw entropy when selecting the next cell
// to collapse, if the cell sits at y == 0 - it deprioritises the ground
// layer so upper layers tend to resolve first.
const GroundBias = 100

// ErrOvercollapsed is returned by Propagate/PropagateAll/CollapseNext when
// constraint propagation would leave a cell with zero possibilities.
var ErrOvercollapsed = errors.New("chunk: overcollapsed")

// Chunk is a fixed cuboid region of the map: the unit the scheduler hands
// out to workers, one at a time, each bound to its own checked-out Range.
type Chunk struct {
	origin geom.Vector3
	size   geom.Vector3
}

// New creates a Chunk occupying [origin, origin+size).
func New(origin, size geom.Vector3) *Chunk {
	return &Chunk{origin: origin, size: size}
}

func (c *Chunk) Origin() geom.Vector3 { return c.origin }

func (c *Chunk) Size() geom.Vector3 { return c.size }

// Bounds returns the chunk's minimum (inclusive) and maximum (exclusive)
// corners.
func (c *Chunk) Bounds() (start, end geom.Vector3) {
	return c.origin, c.origin.Add(c.size)
}

// Contains reports whether position lies within this chunk's own bounds
// (not the possibly-larger Range it may currently be operating over).
func (c *Chunk) Contains(position geom.Vector3) bool {
	start, end := c.Bounds()
	return position.InBox(start, end)
}

// IsOverlapping reports whether the two chunks' cuboids share at least one
// cell. Uses an inclusive bounds comparison matching the reference
// scheduler, so chunks whose bounds merely touch along a face also count
// as overlapping - deliberately conservative, since it feeds the
// scheduler's no-two-Active-chunks-may-overlap rule (I4).
func (c *Chunk) IsOverlapping(other *Chunk) bool {
	selfStart, selfEnd := c.Bounds()
	otherStart, otherEnd := other.Bounds()
	return selfEnd.X >= otherStart.X && selfStart.X <= otherEnd.X &&
		selfEnd.Y >= otherStart.Y && selfStart.Y <= otherEnd.Y &&
		selfEnd.Z >= otherStart.Z && selfStart.Z <= otherEnd.Z
}

// GetOverlapping returns the intersecting cuboid of c and other. ok is
// false if they don't overlap at all.
func (c *Chunk) GetOverlapping(other *Chunk) (start, end geom.Vector3, ok bool) {
	if !c.IsOverlapping(other) {
		return geom.Zero, geom.Zero, false
	}
	selfStart, selfEnd := c.Bounds()
	otherStart, otherEnd := other.Bounds()
	return selfStart.Max(otherStart), selfEnd.Min(otherEnd), true
}

// GetNeighbors returns the positions in other that are not inside c, but
// whose distance to c's cuboid is within n cells on every axis - the
// border cells a newly-scheduled chunk should pull constraints from out of
// an already-resolved neighbouring chunk.
func (c *Chunk) GetNeighbors(other *Chunk, n int) []geom.Vector3 {
	selfStart, selfEnd := c.Bounds()
	margin := geom.New(n, n, n)
	expStart := selfStart.Sub(margin)
	expEnd := selfEnd.Add(margin)

	otherStart, otherEnd := other.Bounds()
	start := otherStart.Max(expStart)
	end := otherEnd.Min(expEnd)

	var neighbors []geom.Vector3
	for y := start.Y; y < end.Y; y++ {
		for x := start.X; x < end.X; x++ {
			for z := start.Z; z < end.Z; z++ {
				pos := geom.New(x, y, z)
				if c.Contains(pos) {
					continue
				}
				neighbors = append(neighbors, pos)
			}
		}
	}
	return neighbors
}

// neighborPositions returns the positions within n cells of position along
// each of the 6 cardinal directions that also fall inside this chunk's own
// bounds (used by Propagate to restrict write targets to the chunk,
// regardless of how large the checked-out Range is).
func (c *Chunk) neighborPositions(position geom.Vector3, n int) []geom.Vector3 {
	var neighbors []geom.Vector3
	for _, d := range geom.Directions() {
		step := d.Vector()
		for i := 1; i <= n; i++ {
			np := position.Add(step.Scale(i))
			if c.Contains(np) {
				neighbors = append(neighbors, np)
			}
		}
	}
	return neighbors
}

// Reset replaces every cell's possibilities with the full catalogue,
// restricted by map-boundary rules: ground-open below at y == 0, "BOT"
// tagged prototypes excluded above y == 0, uncapped-only at the map's top
// and at all four horizontal edges.
func (c *Chunk) Reset(r *library3d.Range[*cell.Cell], catalogue *prototype.Catalogue, mapSize geom.Vector3) {
	for _, cl := range r.Cells() {
		pos := cl.Position()
		list := catalogue.All()

		if pos.X == 0 {
			list = prototype.RetainUncapped(list, geom.NegX)
		} else if pos.X == mapSize.X-1 {
			list = prototype.RetainUncapped(list, geom.PosX)
		}

		if pos.Y == 0 {
			list = prototype.RetainUncapped(list, geom.NegY)
		} else {
			list = prototype.RetainNotConstrained(list, constrainBot)
			if pos.Y == mapSize.Y-1 {
				list = prototype.RetainUncapped(list, geom.PosY)
			}
		}

		if pos.Z == 0 {
			list = prototype.RetainUncapped(list, geom.NegZ)
		} else if pos.Z == mapSize.Z-1 {
			list = prototype.RetainUncapped(list, geom.PosZ)
		}

		cl.Change(list)
	}
}

// ApplyConstraints re-applies the same boundary rules as Reset (but against
// the cell's current possibilities, not the full catalogue), plus a
// "ceiling seam": on the chunk's own top layer, when that layer is below
// the map's top, also retain only uncapped-toward-+y prototypes. This lets
// a chunk above connect cleanly to whatever was left exposed below it.
func (c *Chunk) ApplyConstraints(r *library3d.Range[*cell.Cell], mapSize geom.Vector3) {
	chunkTopY := min(c.origin.Y+c.size.Y, mapSize.Y) - 1

	for _, cl := range r.Cells() {
		pos := cl.Position()
		list := cl.Possibilities()

		if pos.Y == 0 {
			list = prototype.RetainUncapped(list, geom.NegY)
		} else {
			list = prototype.RetainNotConstrained(list, constrainBot)
		}
		if pos.Y == chunkTopY {
			list = prototype.RetainUncapped(list, geom.PosY)
		}

		if pos.X == 0 {
			list = prototype.RetainUncapped(list, geom.NegX)
		}
		if pos.X == mapSize.X-1 {
			list = prototype.RetainUncapped(list, geom.PosX)
		}
		if pos.Z == 0 {
			list = prototype.RetainUncapped(list, geom.NegZ)
		}
		if pos.Z == mapSize.Z-1 {
			list = prototype.RetainUncapped(list, geom.PosZ)
		}

		cl.Change(list)
	}
}

// CollapseNext selects the cell of lowest effective entropy and collapses
// it, then propagates the resulting constraint. done is true when no cell
// qualifies (every cell is already collapsed or overcollapsed) - the chunk
// is finished.
//
// Effective entropy is the possibility count, +100 if the cell sits at
// y == 0. Cells with entropy <= 1 are always skipped; cells whose raw
// entropy already exceeds the running lowest (which may itself carry the
// +100 bias from an earlier y == 0 candidate) are skipped too - this
// mixed-scale comparison matches the reference selection rule. Ties among
// equally-lowest candidates are broken uniformly at random via rng.
func (c *Chunk) CollapseNext(rng *rand.Rand, r *library3d.Range[*cell.Cell]) (done bool, changes []*cell.Cell, err error) {
	lowest := math.MaxInt
	var candidates []geom.Vector3

	for _, cl := range r.Cells() {
		e := cl.Entropy()
		if e <= 1 || e > lowest {
			continue
		}

		effective := e
		if cl.Position().Y == 0 {
			effective += GroundBias
		}

		switch {
		case effective < lowest:
			lowest = effective
			candidates = append(candidates[:0], cl.Position())
		case effective == lowest:
			candidates = append(candidates, cl.Position())
		}
	}

	if len(candidates) == 0 {
		return true, nil, nil
	}

	chosen := candidates[rng.Intn(len(candidates))]
	target := r.Get(chosen)
	collapsed, err := target.CollapseTo(rng, nil)
	if err != nil {
		return false, nil, err
	}
	r.Set(chosen, collapsed)

	changes, err = c.Propagate(r, collapsed)
	if err != nil {
		return false, nil, err
	}
	return false, changes, nil
}

// Propagate recursively pushes the constraint implied by changed into its
// in-chunk neighbours, writing any neighbour whose possibility set shrinks
// back into r and recursing from it. Returns every cell that changed,
// changed itself included, in visitation order. Returns ErrOvercollapsed if
// any neighbour's possibility set would shrink to empty.
func (c *Chunk) Propagate(r *library3d.Range[*cell.Cell], changed *cell.Cell) ([]*cell.Cell, error) {
	changes := []*cell.Cell{changed}

	for _, npos := range c.neighborPositions(changed.Position(), 1) {
		if !r.Contains(npos) {
			continue
		}
		neighbor := r.Get(npos)
		updated, ok := neighbor.ChangesFrom(changed)
		if !ok {
			continue
		}
		if updated.Overcollapsed() {
			return nil, ErrOvercollapsed
		}

		r.Set(npos, updated)
		inner, err := c.Propagate(r, updated)
		if err != nil {
			return nil, err
		}
		changes = append(changes, inner...)
	}

	return changes, nil
}

// PropagateAll runs Propagate from every cell currently in r once - used
// after Reset/ApplyConstraints to flush boundary implications inward.
func (c *Chunk) PropagateAll(r *library3d.Range[*cell.Cell]) ([]*cell.Cell, error) {
	var changes []*cell.Cell
	for _, cl := range r.Cells() {
		inner, err := c.Propagate(r, cl)
		if err != nil {
			return nil, err
		}
		changes = append(changes, inner...)
	}
	return changes, nil
}
