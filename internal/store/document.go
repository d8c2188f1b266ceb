package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/skeletor-js/medulla/internal/types"
)

// document is the full CRDT state: one record map per entity kind, a
// relations map keyed by composite key, and the _meta sequence counters.
type document struct {
	Clock     uint64                        `json:"clock"`
	Kinds     map[string]map[string]*record `json:"kinds"`
	Relations map[string]*record            `json:"relations"`
	Meta      meta                          `json:"_meta"`
}

// meta carries document-level state that must survive merges.
type meta struct {
	// TypeSequences maps kind -> highest sequence number ever assigned.
	// Merged by max so merged branches never reissue a number.
	TypeSequences map[string]uint32 `json:"type_sequences"`
}

func newDocument() *document {
	kinds := make(map[string]map[string]*record, len(types.Kinds))
	for _, k := range types.Kinds {
		kinds[string(k)] = map[string]*record{}
	}
	return &document{
		Kinds:     kinds,
		Relations: map[string]*record{},
		Meta:      meta{TypeSequences: map[string]uint32{}},
	}
}

// kindMap returns the record map for kind, creating it when a snapshot
// from an older schema did not carry it.
func (d *document) kindMap(kind types.Kind) map[string]*record {
	m, ok := d.Kinds[string(kind)]
	if !ok {
		m = map[string]*record{}
		d.Kinds[string(kind)] = m
	}
	return m
}

// encode serialises the document to the snapshot blob. encoding/json
// orders map keys, so equal documents produce equal bytes.
func (d *document) encode() ([]byte, error) {
	blob, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return blob, nil
}

// decodeDocument parses a snapshot blob. An empty blob decodes to an
// empty document (a fresh init writes one before any commit).
func decodeDocument(blob []byte) (*document, error) {
	if len(blob) == 0 {
		return newDocument(), nil
	}
	doc := newDocument()
	if err := json.Unmarshal(blob, doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if doc.Kinds == nil {
		doc.Kinds = newDocument().Kinds
	}
	if doc.Relations == nil {
		doc.Relations = map[string]*record{}
	}
	if doc.Meta.TypeSequences == nil {
		doc.Meta.TypeSequences = map[string]uint32{}
	}
	return doc, nil
}

// version is the opaque content identity of the document: the SHA-256 of
// the canonical encoding with the clock zeroed out. Two documents with
// the same semantic content report the same version even when their
// clocks diverged.
func (d *document) version() string {
	shadow := *d
	shadow.Clock = 0
	blob, err := json.Marshal(&shadow)
	if err != nil {
		// Marshal of a document cannot fail with these field types;
		// fall back to an always-dirty version rather than panic.
		return fmt.Sprintf("unencodable-%d", d.Clock)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// merge folds other into d: registers by stamp, element sets by union,
// tombstones win over older updates, sequence counters by max.
func (d *document) merge(other *document) {
	for kind, theirs := range other.Kinds {
		mine, ok := d.Kinds[kind]
		if !ok {
			mine = map[string]*record{}
			d.Kinds[kind] = mine
		}
		for id, rec := range theirs {
			if have, ok := mine[id]; ok {
				mine[id] = mergeRecords(have, rec)
			} else {
				mine[id] = rec.clone()
			}
		}
	}
	for key, rec := range other.Relations {
		if have, ok := d.Relations[key]; ok {
			d.Relations[key] = mergeRecords(have, rec)
		} else {
			d.Relations[key] = rec.clone()
		}
	}
	for kind, seq := range other.Meta.TypeSequences {
		if seq > d.Meta.TypeSequences[kind] {
			d.Meta.TypeSequences[kind] = seq
		}
	}
	if other.Clock > d.Clock {
		d.Clock = other.Clock
	}
}
