// Package library3d implements the thread-safe 3D cell store: a single
// mutex-guarded array supporting versioned, atomic range check-out and
// check-in (§4.3).
package library3d

import (
	"errors"
	"fmt"
	"sync"

	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
)

var (
	// ErrCheckedOut is returned by CheckOutRange when any cell in the
	// requested range is already checked out.
	ErrCheckedOut = errors.New("library3d: cell already checked out")

	// ErrVersionMismatch is returned by CheckInRange when a cell's stored
	// version no longer matches the version it had at check-out.
	ErrVersionMismatch = errors.New("library3d: version mismatch at check-in")

	// ErrOutOfBounds is returned by CheckInRange when a cell's position no
	// longer maps to a valid index (should not occur if I3 holds).
	ErrOutOfBounds = errors.New("library3d: index out of bounds at check-in")

	// ErrNotCheckedOut is returned by CheckInRange for a cell that the
	// library does not consider checked out.
	ErrNotCheckedOut = errors.New("library3d: cell not checked out")
)

// Book is the protocol a type must implement to be stored in a Library3D:
// a stable lattice position, a monotone version token, a checked-out flag,
// and the ability to clone itself (so check-out can hand out an
// independent snapshot). T is the concrete book type itself, e.g.
// Library3D[*cell.Cell].
type Book[T any] interface {
	Position() geom.Vector3
	Version() int64
	SetVersion(int64)
	IsCheckedOut() bool
	CheckOut() bool
	CheckIn() bool
	Clone() T
}

// Library3D is the fixed-extent, mutex-guarded 3D store of cells.
type Library3D[T Book[T]] struct {
	size geom.Vector3
	log  wfclog.Logger

	mu      sync.Mutex
	cells   []T
	version int64
}

// New constructs a Library3D of the given size, taking ownership of cells
// (indexed (y*X*Z + x*Z + z), one per lattice position; len(cells) must
// equal size.Volume()).
func New[T Book[T]](size geom.Vector3, cells []T, log wfclog.Logger) (*Library3D[T], error) {
	if len(cells) != size.Volume() {
		return nil, fmt.Errorf("library3d: got %d cells, want %d for size %v", len(cells), size.Volume(), size)
	}
	return &Library3D[T]{
		size:  size,
		cells: cells,
		log:   wfclog.OrDefault(log),
	}, nil
}

// Size returns the library's fixed extent. Read-only after construction.
func (l *Library3D[T]) Size() geom.Vector3 {
	return l.size
}

func (l *Library3D[T]) index(position geom.Vector3) int {
	return position.Y*(l.size.X*l.size.Z) + position.X*l.size.Z + position.Z
}

// CheckOutRange checks out every cell in [start, end) (end is clamped to
// the library's size), atomically: if any cell in the range is already
// checked out, the whole call fails and no cell's checked-out flag is
// touched.
func (l *Library3D[T]) CheckOutRange(start, end geom.Vector3) (*Range[T], error) {
	end = end.Min(l.size)

	l.mu.Lock()
	defer l.mu.Unlock()

	size := end.Sub(start)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return &Range[T]{origin: start, size: geom.Vector3{}, cells: nil}, nil
	}

	indices := make([]int, 0, size.Volume())
	for y := start.Y; y < end.Y; y++ {
		for x := start.X; x < end.X; x++ {
			for z := start.Z; z < end.Z; z++ {
				pos := geom.New(x, y, z)
				idx := l.index(pos)
				if idx < 0 || idx >= len(l.cells) {
					return nil, fmt.Errorf("%w: position %v (index %d)", ErrOutOfBounds, pos, idx)
				}
				if l.cells[idx].IsCheckedOut() {
					return nil, fmt.Errorf("%w: position %v", ErrCheckedOut, pos)
				}
				indices = append(indices, idx)
			}
		}
	}

	cells := make([]T, 0, len(indices))
	for _, idx := range indices {
		l.cells[idx].CheckOut()
		cells = append(cells, l.cells[idx].Clone())
	}

	return &Range[T]{origin: start, size: size, cells: cells}, nil
}

// CheckInRange validates every cell in r against its stored version (pass
// 1, no writes) before stamping fresh versions and writing every cell back
// (pass 2): a version mismatch anywhere aborts the whole check-in with no
// partial writes. The library stores copies of r's cells, so r itself keeps
// its check-out versions and cannot be checked in a second time.
func (l *Library3D[T]) CheckInRange(r *Range[T]) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range r.cells {
		idx := l.index(c.Position())
		if idx < 0 || idx >= len(l.cells) {
			return fmt.Errorf("%w: position %v (index %d)", ErrOutOfBounds, c.Position(), idx)
		}
		current := l.cells[idx]
		if current.Version() != c.Version() {
			return fmt.Errorf("%w: position %v: have %d, checked out at %d", ErrVersionMismatch, c.Position(), current.Version(), c.Version())
		}
		if !current.IsCheckedOut() {
			return fmt.Errorf("%w: position %v", ErrNotCheckedOut, c.Position())
		}
	}

	for _, c := range r.cells {
		idx := l.index(c.Position())
		l.version++
		stored := c.Clone()
		stored.SetVersion(l.version)
		stored.CheckIn()
		l.cells[idx] = stored
	}

	return nil
}
