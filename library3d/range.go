package library3d

import "github.com/willcliffy/live-wave-function-collapse/geom"

// Range is a rectangular, origin-anchored window of cells checked out of a
// Library3D. It is the unit of work handed to a chunk kernel: the kernel
// mutates cells in place and hands the Range back to CheckInRange.
type Range[T Book[T]] struct {
	origin geom.Vector3
	size   geom.Vector3
	cells  []T
}

// Origin returns the range's minimum corner (inclusive), in library
// coordinates.
func (r *Range[T]) Origin() geom.Vector3 { return r.origin }

// Size returns the range's extent along each axis.
func (r *Range[T]) Size() geom.Vector3 { return r.size }

// End returns the range's maximum corner (exclusive), in library
// coordinates.
func (r *Range[T]) End() geom.Vector3 { return r.origin.Add(r.size) }

// Index returns the position of position within this range's backing
// slice, origin-relative: (position.Y-origin.Y)*(size.X*size.Z) +
// (position.X-origin.X)*size.Z + (position.Z-origin.Z).
func (r *Range[T]) Index(position geom.Vector3) int {
	rel := position.Sub(r.origin)
	return rel.Y*(r.size.X*r.size.Z) + rel.X*r.size.Z + rel.Z
}

// Contains reports whether position lies within [origin, origin+size).
func (r *Range[T]) Contains(position geom.Vector3) bool {
	return position.InBox(r.origin, r.origin.Add(r.size))
}

// Get returns the cell at position. position must be Contains-ed by r: for
// a position outside r, Index may map onto another cell of r (returned
// without error) or past the slice (a panic). Callers are expected to
// check Contains first when position is not already known to be in range.
func (r *Range[T]) Get(position geom.Vector3) T {
	return r.cells[r.Index(position)]
}

// Set replaces the cell at position.
func (r *Range[T]) Set(position geom.Vector3, v T) {
	r.cells[r.Index(position)] = v
}

// Cells returns every cell in the range, in index order. Callers must not
// mutate the slice directly; use Set.
func (r *Range[T]) Cells() []T {
	return r.cells
}

// Len returns the number of cells in the range.
func (r *Range[T]) Len() int {
	return len(r.cells)
}

// GetNeighbors returns the (up to 6) axis-adjacent positions to position
// that are still Contains-ed by this range.
func (r *Range[T]) GetNeighbors(position geom.Vector3) []geom.Vector3 {
	neighbors := make([]geom.Vector3, 0, 6)
	for _, d := range geom.Directions() {
		n := position.Add(d.Vector())
		if r.Contains(n) {
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}
