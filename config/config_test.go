package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

const sampleParameters = `{
  // a small demo map, two 4x1x4 chunks overlapping by 2 on x
  "map_size": {"x": 6, "y": 1, "z": 4},
  "chunk_size": {"x": 4, "y": 1, "z": 4},
  "chunk_overlap": 2,
  "pool_size": 2,
  "catalogue_path": "prototype_data.json",
}
`

func writeDoc(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine_parameters.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeDoc(t, sampleParameters)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, geom.New(6, 1, 4), p.MapSize)
	assert.Equal(t, geom.New(4, 1, 4), p.ChunkSize)
	assert.Equal(t, 2, p.ChunkOverlap)
	assert.Equal(t, 2, p.PoolSize)
	assert.Equal(t, "prototype_data.json", p.CataloguePath)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeDoc(t, `{
		"map_size": {"x": 4, "y": 1, "z": 4},
		"chunk_size": {"x": 4, "y": 1, "z": 4},
		"catalogue_path": "data.json",
	}`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkOverlap, p.ChunkOverlap)
	assert.Equal(t, DefaultPoolSize, p.PoolSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadRejectsOverlapTooLarge(t *testing.T) {
	path := writeDoc(t, `{
		"map_size": {"x": 4, "y": 1, "z": 4},
		"chunk_size": {"x": 4, "y": 1, "z": 4},
		"chunk_overlap": 4,
		"catalogue_path": "data.json",
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsZeroMapSize(t *testing.T) {
	path := writeDoc(t, `{
		"map_size": {"x": 0, "y": 1, "z": 4},
		"chunk_size": {"x": 4, "y": 1, "z": 4},
		"catalogue_path": "data.json",
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingCataloguePath(t *testing.T) {
	path := writeDoc(t, `{
		"map_size": {"x": 4, "y": 1, "z": 4},
		"chunk_size": {"x": 4, "y": 1, "z": 4},
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

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

func TestBuildLibraryPopulatesFullCatalogueEverywhere(t *testing.T) {
	p := &EngineParameters{
		MapSize:       geom.New(2, 1, 2),
		ChunkSize:     geom.New(2, 1, 2),
		ChunkOverlap:  1,
		PoolSize:      1,
		CataloguePath: "unused.json",
	}
	catalogue := fixtureCatalogue()

	lib, err := p.BuildLibrary(catalogue, wfclog.Noop())
	require.NoError(t, err)
	assert.Equal(t, p.MapSize, lib.Size())

	r, err := lib.CheckOutRange(geom.New(0, 0, 0), p.MapSize)
	require.NoError(t, err)
	for _, c := range r.Cells() {
		assert.Equal(t, catalogue.Len(), c.Entropy())
	}
}

func TestBuildChunksMatchesDirectorLayout(t *testing.T) {
	p := &EngineParameters{
		MapSize:      geom.New(6, 1, 4),
		ChunkSize:    geom.New(4, 1, 4),
		ChunkOverlap: 2,
	}
	chunks := p.BuildChunks()
	assert.Len(t, chunks, 2)
}
