// Package config loads EngineParameters (§6) from a hujson document -
// comments and trailing commas tolerated, matching the catalogue loader in
// the prototype package - and builds the initial Library3D and chunk
// layout those parameters describe.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/chunk"
	"github.com/willcliffy/live-wave-function-collapse/director"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
)

// Defaults applied by Load for any field the document omits (or leaves 0).
const (
	DefaultChunkOverlap = 1
	DefaultPoolSize     = 1
)

// EngineParameters is the engine's full configuration surface: the map and
// chunk geometry and the pool size, plus the path to the prototype
// catalogue file those dimensions get populated from.
type EngineParameters struct {
	MapSize       geom.Vector3 `json:"map_size"`
	ChunkSize     geom.Vector3 `json:"chunk_size"`
	ChunkOverlap  int          `json:"chunk_overlap"`
	PoolSize      int          `json:"pool_size"`
	CataloguePath string       `json:"catalogue_path"`
}

// rawVector3 mirrors the document's {"x":.., "y":.., "z":..} shape for a
// vector field.
type rawVector3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v rawVector3) toVector3() geom.Vector3 { return geom.New(v.X, v.Y, v.Z) }

type rawEngineParameters struct {
	MapSize       rawVector3 `json:"map_size"`
	ChunkSize     rawVector3 `json:"chunk_size"`
	ChunkOverlap  int        `json:"chunk_overlap"`
	PoolSize      int        `json:"pool_size"`
	CataloguePath string     `json:"catalogue_path"`
}

// Load reads and parses an engine-parameters document at path. Defaults to
// ChunkOverlap=1 and PoolSize=1, if 0 (or absent) in the document -
// matching microbatch.BatcherConfig's "defaults to ..., if 0" style. A
// missing or malformed file is a hard error; there is no per-field skip
// policy here, unlike the catalogue loader, since a malformed engine
// parameter silently changes the whole run's geometry rather than merely
// dropping one tile kind.
func Load(path string) (*EngineParameters, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var doc rawEngineParameters
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return nil, fmt.Errorf("config: %s does not match the engine-parameters shape: %w", path, err)
	}

	params := &EngineParameters{
		MapSize:       doc.MapSize.toVector3(),
		ChunkSize:     doc.ChunkSize.toVector3(),
		ChunkOverlap:  doc.ChunkOverlap,
		PoolSize:      doc.PoolSize,
		CataloguePath: doc.CataloguePath,
	}
	if params.ChunkOverlap == 0 {
		params.ChunkOverlap = DefaultChunkOverlap
	}
	if params.PoolSize == 0 {
		params.PoolSize = DefaultPoolSize
	}

	return params, params.Validate()
}

// Validate reports whether p describes a usable engine run: positive map
// and chunk extents, a catalogue path, and an overlap that's at least 1 and
// strictly less than every chunk-size axis (per §6, "chunk_overlap: int
// (>= 1, < min(chunk_size))").
func (p *EngineParameters) Validate() error {
	if p.MapSize.Volume() <= 0 {
		return fmt.Errorf("config: map_size must be positive on every axis, got %v", p.MapSize)
	}
	if p.ChunkSize.Volume() <= 0 {
		return fmt.Errorf("config: chunk_size must be positive on every axis, got %v", p.ChunkSize)
	}
	if p.CataloguePath == "" {
		return fmt.Errorf("config: catalogue_path is required")
	}
	if p.ChunkOverlap < 1 {
		return fmt.Errorf("config: chunk_overlap must be >= 1, got %d", p.ChunkOverlap)
	}
	minChunk := min(p.ChunkSize.X, p.ChunkSize.Y, p.ChunkSize.Z)
	if p.ChunkOverlap >= minChunk {
		return fmt.Errorf("config: chunk_overlap (%d) must be < min(chunk_size) (%d)", p.ChunkOverlap, minChunk)
	}
	if p.PoolSize < 1 {
		return fmt.Errorf("config: pool_size must be >= 1, got %d", p.PoolSize)
	}
	return nil
}

// BuildLibrary populates one Cell per lattice position in p.MapSize with
// the full catalogue (Chunk.Reset applies the boundary restrictions once a
// chunk actually checks a position out, per §4.4 - the library itself just
// needs every possibility present to start).
func (p *EngineParameters) BuildLibrary(catalogue *prototype.Catalogue, log wfclog.Logger) (*library3d.Library3D[*cell.Cell], error) {
	cells := make([]*cell.Cell, 0, p.MapSize.Volume())
	for y := 0; y < p.MapSize.Y; y++ {
		for x := 0; x < p.MapSize.X; x++ {
			for z := 0; z < p.MapSize.Z; z++ {
				cells = append(cells, cell.New(geom.New(x, y, z), catalogue.All()))
			}
		}
	}
	return library3d.New(p.MapSize, cells, log)
}

// BuildChunks lays out the chunk grid for p.MapSize/ChunkSize/ChunkOverlap,
// delegating to director.LayoutChunks (§9 Open Question (c): ceiling
// division, clamped at construction).
func (p *EngineParameters) BuildChunks() []*chunk.Chunk {
	return director.LayoutChunks(p.MapSize, p.ChunkSize, p.ChunkOverlap)
}
