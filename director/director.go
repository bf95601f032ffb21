// Package director implements MapDirector, the scheduler that owns the
// chunk catalogue and the shared Library3D: it picks the next chunk to
// work on, runs its reset preamble, and tracks each chunk's Ready/Active/
// Collapsed lifecycle (§4.5).
package director

import (
	"math"
	"sync"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/chunk"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

// ChunkState is a chunk's position in its Ready -> Active -> Collapsed
// lifecycle, with the transient Initializing state held only while a
// reset preamble is in flight.
type ChunkState int

const (
	Ready ChunkState = iota
	Initializing
	Active
	Collapsed
)

func (s ChunkState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Initializing:
		return "initializing"
	case Active:
		return "active"
	case Collapsed:
		return "collapsed"
	default:
		return "unknown"
	}
}

// Outcome is what GetNextChunk found.
type Outcome int

const (
	// NoChunksLeft means every chunk has been Collapsed: the map is done.
	NoChunksLeft Outcome = iota
	// NoChunksReady means some chunks remain, but none are currently
	// schedulable (all are blocked by overlap, ground-up ordering, or the
	// interior seed rule).
	NoChunksReady
	// ChunkReady means a chunk was selected, reset, and marked Active.
	ChunkReady
)

type record struct {
	chunk *chunk.Chunk
	state ChunkState
}

// MapDirector owns the fixed chunk layout and the library they share.
type MapDirector struct {
	library   *library3d.Library3D[*cell.Cell]
	catalogue *prototype.Catalogue
	log       wfclog.Logger

	mu      sync.Mutex
	records []record
}

// New creates a MapDirector over the given chunk layout (see LayoutChunks),
// all initially Ready.
func New(library *library3d.Library3D[*cell.Cell], catalogue *prototype.Catalogue, chunks []*chunk.Chunk, log wfclog.Logger) *MapDirector {
	records := make([]record, len(chunks))
	for i, c := range chunks {
		records[i] = record{chunk: c, state: Ready}
	}
	return &MapDirector{
		library:   library,
		catalogue: catalogue,
		log:       wfclog.OrDefault(log),
		records:   records,
	}
}

// ceilDiv returns ceil(a/b) for positive a, b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// LayoutChunks tiles mapSize with chunks of chunkSize, overlapping
// neighbours by overlap cells on each axis. Per axis, the chunk count is
// ceil_div(map_size+overlap, chunk_size-overlap) - the reference
// implementation computed this with a truncating integer division before
// ever calling its ceiling function, silently undercounting; this performs
// the division with a true ceiling (see DESIGN.md's Open Question (c)).
// The stride (chunk_size-overlap) is floored at 1 per axis to avoid a
// degenerate or negative stride when overlap is misconfigured to meet or
// exceed the chunk size on that axis. Chunks whose clamped size would be
// non-positive on any axis (the position fell at or past the map edge)
// are dropped.
func LayoutChunks(mapSize, chunkSize geom.Vector3, overlap int) []*chunk.Chunk {
	stride := geom.New(
		max(chunkSize.X-overlap, 1),
		max(chunkSize.Y-overlap, 1),
		max(chunkSize.Z-overlap, 1),
	)
	countX := ceilDiv(mapSize.X+overlap, stride.X)
	countY := ceilDiv(mapSize.Y+overlap, stride.Y)
	countZ := ceilDiv(mapSize.Z+overlap, stride.Z)

	var chunks []*chunk.Chunk
	for iy := 0; iy < countY; iy++ {
		for ix := 0; ix < countX; ix++ {
			for iz := 0; iz < countZ; iz++ {
				origin := geom.New(ix*stride.X, iy*stride.Y, iz*stride.Z)
				size := chunkSize.Min(mapSize.Sub(origin))
				if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
					continue
				}
				chunks = append(chunks, chunk.New(origin, size))
			}
		}
	}
	return chunks
}

// touchesXZEdge reports whether c's bounds touch one of the map's four
// horizontal (x/z) edges.
func touchesXZEdge(c *chunk.Chunk, mapSize geom.Vector3) bool {
	start, end := c.Bounds()
	return start.X == 0 || start.Z == 0 || end.X == mapSize.X || end.Z == mapSize.Z
}

// GetNextChunk selects, resets, and activates the best Ready chunk.
//
// Candidates are filtered: skip any chunk overlapping an Active chunk
// (I4); skip any chunk with a non-Collapsed chunk strictly below it
// (ground-up ordering); an interior chunk (touching none of the map's x/z
// edges) additionally requires an already-Collapsed overlapping chunk to
// seed from. Among the survivors, the one minimising distance-to-the-
// nearest-xz-edge plus 1000*y wins; ties keep the lowest index encountered.
func (d *MapDirector) GetNextChunk() (outcome Outcome, index int, c *chunk.Chunk, changes []*cell.Cell, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mapSize := d.library.Size()

	var eligible []int
	for i, rec := range d.records {
		if rec.state == Ready {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		for _, rec := range d.records {
			if rec.state != Collapsed {
				return NoChunksReady, 0, nil, nil, nil
			}
		}
		return NoChunksLeft, 0, nil, nil, nil
	}

	best := -1
	bestDistance := math.MaxInt

candidates:
	for _, i := range eligible {
		cand := d.records[i].chunk

		for _, other := range d.records {
			if other.state == Active && cand.IsOverlapping(other.chunk) {
				continue candidates
			}
		}

		for _, other := range d.records {
			if other.state != Collapsed && other.chunk.Origin().Y < cand.Origin().Y {
				continue candidates
			}
		}

		if !touchesXZEdge(cand, mapSize) {
			seeded := false
			for j, other := range d.records {
				if j != i && other.state == Collapsed && cand.IsOverlapping(other.chunk) {
					seeded = true
					break
				}
			}
			if !seeded {
				continue candidates
			}
		}

		start, end := cand.Bounds()
		distance := min(start.X, start.Z, mapSize.X-end.X, mapSize.Z-end.Z)
		distance += 1000 * cand.Origin().Y

		if distance < bestDistance {
			bestDistance = distance
			best = i
		}
	}

	if best < 0 {
		return NoChunksReady, 0, nil, nil, nil
	}

	d.records[best].state = Initializing
	changes, err = d.resetChunk(best)
	if err != nil {
		d.records[best].state = Ready
		return 0, 0, nil, nil, err
	}

	d.records[best].state = Active
	return ChunkReady, best, d.records[best].chunk, changes, nil
}

// CompleteChunk marks a chunk Collapsed: its worker reported Done.
func (d *MapDirector) CompleteChunk(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[index].state = Collapsed
}

// ResetChunk re-runs the reset preamble on an already-Active chunk whose
// worker reported an unrecoverable Error, returning it to Ready either way
// so the scheduler can try it again later.
func (d *MapDirector) ResetChunk(index int) ([]*cell.Cell, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[index].state = Initializing
	changes, err := d.resetChunk(index)
	d.records[index].state = Ready
	return changes, err
}

// State reports a chunk's current lifecycle state. Exposed for tests and
// host introspection.
func (d *MapDirector) State(index int) ChunkState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records[index].state
}

// Len returns the number of chunks in the layout.
func (d *MapDirector) Len() int {
	return len(d.records)
}

// resetChunk runs the three-phase reset preamble (§4.5): reset, apply
// constraints + propagate-all, then propagate-all again over the bounds
// expanded by one cell on each axis to pull in already-resolved neighbour
// constraints. Must be called with d.mu held.
func (d *MapDirector) resetChunk(index int) ([]*cell.Cell, error) {
	c := d.records[index].chunk
	mapSize := d.library.Size()
	var changes []*cell.Cell

	start, end := c.Bounds()

	if err := d.runPhase(start, end, func(r *library3d.Range[*cell.Cell]) ([]*cell.Cell, error) {
		c.Reset(r, d.catalogue, mapSize)
		// Every reset cell counts as changed, matching reset_overlap's
		// Ok(cells_clone) in the original: the host receives each freshly
		// scheduled chunk's boundary-restricted possibility set as it stood
		// straight after the reset.
		return r.Cells(), nil
	}, &changes); err != nil {
		return changes, err
	}

	if err := d.runPhase(start, end, func(r *library3d.Range[*cell.Cell]) ([]*cell.Cell, error) {
		c.ApplyConstraints(r, mapSize)
		return c.PropagateAll(r)
	}, &changes); err != nil {
		return changes, err
	}

	margin := geom.New(1, 1, 1)
	expStart := start.Sub(margin).Max(geom.Zero)
	expEnd := end.Add(margin).Min(mapSize)
	if err := d.runPhase(expStart, expEnd, func(r *library3d.Range[*cell.Cell]) ([]*cell.Cell, error) {
		return c.PropagateAll(r)
	}, &changes); err != nil {
		return changes, err
	}

	return changes, nil
}

// runPhase checks out [start, end), runs fn, and always checks the range
// back in - even if fn errored - before surfacing fn's error, so a failed
// phase never leaks a checked-out range (resource discipline per §5).
func (d *MapDirector) runPhase(start, end geom.Vector3, fn func(*library3d.Range[*cell.Cell]) ([]*cell.Cell, error), changes *[]*cell.Cell) error {
	r, err := d.library.CheckOutRange(start, end)
	if err != nil {
		return err
	}

	phaseChanges, ferr := fn(r)
	*changes = append(*changes, phaseChanges...)

	if cerr := d.library.CheckInRange(r); cerr != nil {
		if ferr != nil {
			return ferr
		}
		return cerr
	}
	return ferr
}
