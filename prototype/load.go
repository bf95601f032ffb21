package prototype

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
)

// rawPrototype mirrors the catalogue file's per-entry JSON shape (see
// spec.md §6). Fields use the json tags of the original key names; the
// struct itself is not exported since callers only ever see Prototype.
type rawPrototype struct {
	MeshName       string      `json:"mesh_name"`
	MeshRotation   int         `json:"mesh_rotation"`
	PosX           string      `json:"posX"`
	NegX           string      `json:"negX"`
	PosY           string      `json:"posY"`
	NegY           string      `json:"negY"`
	PosZ           string      `json:"posZ"`
	NegZ           string      `json:"negZ"`
	ConstrainTo    string      `json:"constrain_to"`
	ConstrainFrom  string      `json:"constrain_from"`
	Weight         float64     `json:"weight"`
	NoID           int         `json:"no_id"`
	NoIDSym        int         `json:"no_id_sym"`
	ValidNeighbors [][]string `json:"valid_neighbours"`
}

// Load reads and parses a prototype catalogue file at path. The file is a
// JSON object keyed by prototype id (hujson-flavored: comments and trailing
// commas are tolerated, matching the rest of this engine's config files).
//
// Per §7's error policy, an entry that fails to parse is skipped and
// warned about via log, rather than aborting the whole load; a structurally
// invalid top-level document (not an object) is a hard error.
func Load(path string, log wfclog.Logger) (*Catalogue, error) {
	log = wfclog.OrDefault(log)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prototype: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("prototype: parse %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(standardized, &doc); err != nil {
		return nil, fmt.Errorf("prototype: %s is not a JSON object of prototypes: %w", path, err)
	}

	protos := make(map[string]*Prototype, len(doc))
	for id, entry := range doc {
		p, err := parseEntry(id, entry)
		if err != nil {
			log.Warning().Str("id", id).Err(err).Log("prototype: skipping malformed entry")
			continue
		}
		protos[id] = p
	}

	if len(protos) == 0 {
		return nil, fmt.Errorf("prototype: %s yielded no usable prototypes", path)
	}
	if _, ok := protos[EmptyID]; !ok {
		return nil, fmt.Errorf("prototype: %s is missing the required %q entry", path, EmptyID)
	}

	return New(protos), nil
}

func parseEntry(id string, data json.RawMessage) (*Prototype, error) {
	var raw rawPrototype
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.ValidNeighbors) != 6 {
		return nil, fmt.Errorf("valid_neighbours must have exactly 6 direction entries, got %d", len(raw.ValidNeighbors))
	}

	p := &Prototype{
		ID:            id,
		MeshName:      raw.MeshName,
		MeshRotation:  raw.MeshRotation,
		NoID:          raw.NoID,
		NoIDSym:       raw.NoIDSym,
		ConstrainTo:   raw.ConstrainTo,
		ConstrainFrom: raw.ConstrainFrom,
		Weight:        raw.Weight,
		Slots:         [6]string{raw.PosX, raw.PosY, raw.NegX, raw.NegY, raw.PosZ, raw.NegZ},
	}
	for i := range raw.ValidNeighbors {
		p.ValidNeighbours[i] = append([]string(nil), raw.ValidNeighbors[i]...)
	}

	if p.Weight <= 0 {
		return nil, fmt.Errorf("weight must be positive, got %v", p.Weight)
	}

	return p, nil
}
