package director

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/chunk"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

func fixtureCatalogue() *prototype.Catalogue {
	empty := &prototype.Prototype{ID: prototype.EmptyID, Weight: 1}
	floor := &prototype.Prototype{ID: "floor", Weight: 1}
	for i := range empty.ValidNeighbours {
		empty.ValidNeighbours[i] = []string{prototype.EmptyID, "floor"}
		floor.ValidNeighbours[i] = []string{prototype.EmptyID, "floor"}
	}
	return prototype.New(map[string]*prototype.Prototype{
		prototype.EmptyID: empty,
		"floor":           floor,
	})
}

func newFilledLibrary(t *testing.T, mapSize geom.Vector3, catalogue *prototype.Catalogue) *library3d.Library3D[*cell.Cell] {
	t.Helper()
	cells := make([]*cell.Cell, mapSize.Volume())
	i := 0
	for y := 0; y < mapSize.Y; y++ {
		for x := 0; x < mapSize.X; x++ {
			for z := 0; z < mapSize.Z; z++ {
				cells[i] = cell.New(geom.New(x, y, z), catalogue.All())
				i++
			}
		}
	}
	lib, err := library3d.New(mapSize, cells, nil)
	require.NoError(t, err)
	return lib
}

// newDirector builds a director over a single chunk exactly covering
// mapSize (overlap=0 keeps LayoutChunks from producing sliver chunks along
// axes where chunk_size already equals map_size; see the z axis of
// TestLayoutChunksTilesAndClampsRemainder for that behaviour).
func newDirector(t *testing.T, mapSize geom.Vector3) *MapDirector {
	t.Helper()
	catalogue := fixtureCatalogue()
	lib := newFilledLibrary(t, mapSize, catalogue)
	chunks := LayoutChunks(mapSize, mapSize, 0)
	require.Len(t, chunks, 1)
	return New(lib, catalogue, chunks, nil)
}

func TestLayoutChunksSingleChunkNoOverlap(t *testing.T) {
	chunks := LayoutChunks(geom.New(4, 1, 4), geom.New(4, 1, 4), 0)
	require.Len(t, chunks, 1)
	start, end := chunks[0].Bounds()
	assert.Equal(t, geom.New(0, 0, 0), start)
	assert.Equal(t, geom.New(4, 1, 4), end)
}

func TestLayoutChunksTilesAndClampsRemainder(t *testing.T) {
	// stride = chunk_size - overlap = 2 along x: positions 0, 2, 4 - the
	// last one's size is clamped to the 2 cells remaining before map_size.x.
	chunks := LayoutChunks(geom.New(6, 1, 4), geom.New(4, 1, 4), 2)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		start, end := c.Bounds()
		assert.True(t, start.X >= 0 && start.Y >= 0 && start.Z >= 0)
		assert.LessOrEqual(t, end.X, 6)
		assert.LessOrEqual(t, end.Y, 1)
		assert.LessOrEqual(t, end.Z, 4)
		size := c.Size()
		assert.Greater(t, size.X, 0)
		assert.Greater(t, size.Y, 0)
		assert.Greater(t, size.Z, 0)
	}
	// every chunk starting at x=4 must have been clamped to width 2.
	for _, c := range chunks {
		start, _ := c.Bounds()
		if start.X == 4 {
			assert.Equal(t, 2, c.Size().X)
		}
	}
}

func TestGetNextChunkSingleChunkMap(t *testing.T) {
	d := newDirector(t, geom.New(4, 1, 4))
	require.Equal(t, 1, d.Len())

	outcome, index, c, _, err := d.GetNextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkReady, outcome)
	assert.Equal(t, 0, index)
	assert.NotNil(t, c)
	assert.Equal(t, Active, d.State(0))

	// no other chunks to hand out while this one is Active.
	outcome2, _, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	assert.Equal(t, NoChunksReady, outcome2)

	d.CompleteChunk(0)
	outcome3, _, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	assert.Equal(t, NoChunksLeft, outcome3)
}

func TestGetNextChunkChangesIncludeResetSnapshot(t *testing.T) {
	// GetNextChunk's initial_changes must include every cell touched by the
	// reset preamble's Phase A (the boundary-restricted possibility set a
	// freshly scheduled chunk starts with) - matching reset_overlap's
	// Ok(cells_clone) in the original, which returns every reset cell.
	mapSize := geom.New(4, 1, 4)
	d := newDirector(t, mapSize)

	outcome, _, _, changes, err := d.GetNextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkReady, outcome)

	seen := make(map[geom.Vector3]bool, len(changes))
	for _, c := range changes {
		seen[c.Position()] = true
	}
	for y := 0; y < mapSize.Y; y++ {
		for x := 0; x < mapSize.X; x++ {
			for z := 0; z < mapSize.Z; z++ {
				assert.True(t, seen[geom.New(x, y, z)], "missing reset snapshot for %v", geom.New(x, y, z))
			}
		}
	}
}

func TestGetNextChunkTwoChunkOverlapOrdering(t *testing.T) {
	// Two hand-built chunks sharing a 2-cell-wide seam along x. The
	// edge-preferring distance metric should hand out the chunk touching
	// x=0 before the other becomes schedulable (it overlaps the first
	// while the first is Active).
	mapSize := geom.New(6, 1, 4)
	catalogue := fixtureCatalogue()
	lib := newFilledLibrary(t, mapSize, catalogue)
	chunks := []*chunk.Chunk{
		chunk.New(geom.New(0, 0, 0), geom.New(4, 1, 4)),
		chunk.New(geom.New(2, 0, 0), geom.New(4, 1, 4)),
	}
	d := New(lib, catalogue, chunks, nil)

	outcome, index, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkReady, outcome)
	assert.Equal(t, 0, index)

	// chunk 1 overlaps chunk 0 (still Active): not yet schedulable.
	outcome2, _, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	assert.Equal(t, NoChunksReady, outcome2)

	d.CompleteChunk(0)

	outcome3, index3, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	assert.Equal(t, ChunkReady, outcome3)
	assert.Equal(t, 1, index3)
}

func TestResetChunkReturnsToReadyOnSuccess(t *testing.T) {
	d := newDirector(t, geom.New(4, 1, 4))

	_, _, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	require.Equal(t, Active, d.State(0))

	_, err = d.ResetChunk(0)
	require.NoError(t, err)
	assert.Equal(t, Ready, d.State(0))
}

func TestInteriorChunkRequiresSeed(t *testing.T) {
	// A 3x3 grid of 1x1x1 chunks over a 3x1x3 map: the centre chunk
	// touches none of the map's x/z edges, so it must wait for a Collapsed
	// overlapping neighbour before it can be scheduled.
	mapSize := geom.New(3, 1, 3)
	catalogue := fixtureCatalogue()
	lib := newFilledLibrary(t, mapSize, catalogue)

	var chunks []*chunk.Chunk
	centreIndex := -1
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			if x == 1 && z == 1 {
				centreIndex = len(chunks)
			}
			chunks = append(chunks, chunk.New(geom.New(x, 0, z), geom.New(1, 1, 1)))
		}
	}
	require.Equal(t, 4, centreIndex)

	d := New(lib, catalogue, chunks, nil)
	require.Equal(t, 9, d.Len())

	// first pick must be an edge chunk, never the interior one.
	outcome, index, _, _, err := d.GetNextChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkReady, outcome)
	assert.NotEqual(t, centreIndex, index)
}
