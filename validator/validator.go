// Package validator implements MapValidator, the deadlock-recovery pass
// the worker pool runs once every worker has drained out with nothing left
// to do (§4.8). It floods outward from every collapsed, non-empty boundary
// cell and replaces whatever it can't reach with the empty prototype.
package validator

import (
	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
	"github.com/willcliffy/live-wave-function-collapse/workerpool"
)

// MapValidator checks out the whole map and prunes unreachable collapsed
// cells. It holds no state between calls.
type MapValidator struct {
	library   *library3d.Library3D[*cell.Cell]
	catalogue *prototype.Catalogue
	log       wfclog.Logger
}

// New creates a MapValidator over library, using catalogue's Empty
// prototype as the replacement for pruned cells.
func New(library *library3d.Library3D[*cell.Cell], catalogue *prototype.Catalogue, log wfclog.Logger) *MapValidator {
	return &MapValidator{
		library:   library,
		catalogue: catalogue,
		log:       wfclog.OrDefault(log),
	}
}

// Prune checks out the entire map, seeds a traversal from every collapsed,
// non-empty cell on the outer y == 0 ring, and walks outward through faces
// that aren't marked "empty slot" in the catalogue. Any collapsed,
// non-empty cell left unvisited afterward is unreachable from the seeded
// boundary and is overwritten with the empty prototype. Overcollapsed and
// still-uncollapsed cells are left alone (warned about, not touched).
//
// Satisfies workerpool.Pruner.
func (v *MapValidator) Prune() (changes []*cell.Cell, outcome workerpool.PruneOutcome, err error) {
	size := v.library.Size()
	r, err := v.library.CheckOutRange(geom.Zero, size)
	if err != nil {
		return nil, workerpool.PruneNoEffect, err
	}

	visited := make(map[int]bool)
	var stack []geom.Vector3

	start, end := r.Origin(), r.End()
	seed := func(position geom.Vector3) {
		if v.seedLive(r, position) {
			visited[r.Index(position)] = true
			stack = append(stack, position)
		}
	}
	for x := start.X; x < end.X; x++ {
		seed(geom.New(x, 0, start.Z))
		seed(geom.New(x, 0, end.Z-1))
	}
	for z := start.Z; z < end.Z; z++ {
		seed(geom.New(start.X, 0, z))
		seed(geom.New(end.X-1, 0, z))
	}

	v.walk(r, stack, visited)

	changes = v.sweep(r, visited)

	if cerr := v.library.CheckInRange(r); cerr != nil {
		v.log.Err().Err(cerr).Log("prune: check-in failed")
	}

	v.log.Info().Int("changes", len(changes)).Log("prune complete")

	if len(changes) == 0 {
		return nil, workerpool.PruneNoEffect, nil
	}
	return changes, workerpool.PruneOk, nil
}

// seedLive reports whether position is a collapsed, non-empty cell fit to
// seed the traversal. Overcollapsed boundary cells are warned about, not
// seeded; uncollapsed ones are silently skipped (they simply aren't part
// of the "already resolved" boundary yet).
func (v *MapValidator) seedLive(r *library3d.Range[*cell.Cell], position geom.Vector3) bool {
	cl := r.Get(position)
	if cl.Overcollapsed() {
		v.log.Warning().Stringer("position", position).Log("prune: overcollapsed cell along edge")
		return false
	}
	if !cl.Collapsed() {
		return false
	}
	return cl.Possibilities()[0].ID != prototype.EmptyID
}

// walk drains stack as an explicit DFS, marking visited and pushing every
// in-range, collapsed neighbour reachable through a non-"empty slot" face.
func (v *MapValidator) walk(r *library3d.Range[*cell.Cell], stack []geom.Vector3, visited map[int]bool) {
	for len(stack) > 0 {
		position := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cl := r.Get(position)
		if cl.Entropy() > 1 {
			v.log.Warning().Stringer("position", position).Int("entropy", cl.Entropy()).Log("prune: ignoring uncollapsed cell in traversal list")
			continue
		}
		proto := cl.Possibilities()[0]

		for _, npos := range r.GetNeighbors(position) {
			nIndex := r.Index(npos)
			if visited[nIndex] {
				continue
			}

			neighbor := r.Get(npos)
			if neighbor.Entropy() != 1 {
				continue
			}

			d, ok := geom.DirectionFromDelta(npos.Sub(position))
			if !ok {
				continue
			}
			if prototype.IsEmptySlot(proto.Slot(d)) {
				continue
			}

			visited[nIndex] = true

			if neighbor.Possibilities()[0].ID == prototype.EmptyID {
				v.log.Warning().Stringer("position", position).Stringer("neighbor", npos).Log("prune: traversal reached an already-empty cell")
				continue
			}

			stack = append(stack, npos)
		}
	}
}

// sweep overwrites every unvisited, collapsed, non-empty cell with the
// empty prototype, returning the changed cells.
func (v *MapValidator) sweep(r *library3d.Range[*cell.Cell], visited map[int]bool) []*cell.Cell {
	empty := v.catalogue.Empty()

	var changes []*cell.Cell
	for _, cl := range r.Cells() {
		if visited[r.Index(cl.Position())] {
			continue
		}
		if cl.Overcollapsed() {
			continue
		}
		if cl.Entropy() > 1 {
			continue
		}
		if cl.Possibilities()[0].ID == prototype.EmptyID {
			continue
		}

		cl.Change([]*prototype.Prototype{empty})
		changes = append(changes, cl)
	}
	return changes
}
