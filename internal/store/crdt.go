// Package store implements the primary conflict-free replicated data store.
//
// The document is organised into top-level maps per entity kind plus a
// relations map and a _meta map. Scalar fields are last-writer-wins
// registers ordered by (lamport, actor); list fields are ordered element
// sets with tombstones so concurrent edits merge element-wise; deleted
// entities and relations leave tombstones so a merge cannot resurrect
// them. The whole document round-trips through a single snapshot blob,
// and merging two snapshots is commutative and idempotent.
package store

import (
	"encoding/json"
	"sort"
)

// Stamp is a logical timestamp: a lamport counter with the writing
// actor's id as tie-break. Stamps totally order concurrent writes.
type Stamp struct {
	Lamport uint64 `json:"l"`
	Actor   string `json:"a"`
}

// Less reports whether s happened before o in the total order.
func (s Stamp) Less(o Stamp) bool {
	if s.Lamport != o.Lamport {
		return s.Lamport < o.Lamport
	}
	return s.Actor < o.Actor
}

// register is a last-writer-wins scalar cell.
type register struct {
	Value json.RawMessage `json:"v"`
	Stamp Stamp           `json:"s"`
}

// merge keeps the register with the greater stamp.
func (r register) merge(o register) register {
	if r.Stamp.Less(o.Stamp) {
		return o
	}
	return r
}

// element is one entry of an ordered element set. The stamp id is unique
// across replicas; tombstoned elements stay in the set so a merge can
// tell "removed" apart from "never seen".
type element struct {
	ID    Stamp  `json:"id"`
	Value string `json:"v"`
	Dead  bool   `json:"dead,omitempty"`
}

// elemList is an ordered element set. Live order is insertion order,
// which after a merge is stamp order.
type elemList struct {
	Elems []element `json:"elems,omitempty"`
}

// values returns the live elements in order.
func (l *elemList) values() []string {
	out := []string{}
	for _, e := range l.Elems {
		if !e.Dead {
			out = append(out, e.Value)
		}
	}
	return out
}

// add appends a live element stamped with id.
func (l *elemList) add(id Stamp, value string) {
	l.Elems = append(l.Elems, element{ID: id, Value: value})
}

// remove tombstones every live element equal to value.
func (l *elemList) remove(value string) {
	for i := range l.Elems {
		if !l.Elems[i].Dead && l.Elems[i].Value == value {
			l.Elems[i].Dead = true
		}
	}
}

// clear tombstones every live element.
func (l *elemList) clear() {
	for i := range l.Elems {
		l.Elems[i].Dead = true
	}
}

// merge unions two element sets by stamp id. A tombstone on either side
// wins; elements seen by only one side are kept, ordered by stamp.
func mergeLists(a, b elemList) elemList {
	byID := make(map[Stamp]element, len(a.Elems)+len(b.Elems))
	for _, e := range a.Elems {
		byID[e.ID] = e
	}
	for _, e := range b.Elems {
		if have, ok := byID[e.ID]; ok {
			if e.Dead {
				have.Dead = true
			}
			byID[e.ID] = have
			continue
		}
		byID[e.ID] = e
	}
	merged := make([]element, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID.Less(merged[j].ID) })
	return elemList{Elems: merged}
}

// record is one entity or relation: LWW fields plus element-set lists.
// Updated tracks the latest write to any part of the record; Deleted is
// the tombstone stamp. A record is dead when its tombstone is at least
// as new as its latest update.
type record struct {
	Fields  map[string]register `json:"fields"`
	Lists   map[string]elemList `json:"lists,omitempty"`
	Updated Stamp               `json:"updated"`
	Deleted *Stamp              `json:"deleted,omitempty"`
}

func newRecord() *record {
	return &record{Fields: map[string]register{}, Lists: map[string]elemList{}}
}

func (r *record) dead() bool {
	return r.Deleted != nil && !r.Deleted.Less(r.Updated)
}

func (r *record) setField(name string, value any, st Stamp) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.Fields[name] = register{Value: raw, Stamp: st}
	if r.Updated.Less(st) {
		r.Updated = st
	}
	return nil
}

// getString decodes a string field, returning "" for missing fields so
// snapshots written by newer schemas still load.
func (r *record) getString(name string) string {
	reg, ok := r.Fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(reg.Value, &s); err != nil {
		return ""
	}
	return s
}

func (r *record) getUint32(name string) uint32 {
	reg, ok := r.Fields[name]
	if !ok {
		return 0
	}
	var n uint32
	if err := json.Unmarshal(reg.Value, &n); err != nil {
		return 0
	}
	return n
}

func (r *record) list(name string) []string {
	l, ok := r.Lists[name]
	if !ok {
		return []string{}
	}
	return l.values()
}

func (r *record) clone() *record {
	c := newRecord()
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	for k, v := range r.Lists {
		elems := make([]element, len(v.Elems))
		copy(elems, v.Elems)
		c.Lists[k] = elemList{Elems: elems}
	}
	c.Updated = r.Updated
	if r.Deleted != nil {
		d := *r.Deleted
		c.Deleted = &d
	}
	return c
}

// mergeRecords folds b into a copy of a, field by field and list by list.
func mergeRecords(a, b *record) *record {
	out := a.clone()
	for name, reg := range b.Fields {
		if have, ok := out.Fields[name]; ok {
			out.Fields[name] = have.merge(reg)
		} else {
			out.Fields[name] = reg
		}
	}
	for name, l := range b.Lists {
		if have, ok := out.Lists[name]; ok {
			out.Lists[name] = mergeLists(have, l)
		} else {
			elems := make([]element, len(l.Elems))
			copy(elems, l.Elems)
			out.Lists[name] = elemList{Elems: elems}
		}
	}
	if out.Updated.Less(b.Updated) {
		out.Updated = b.Updated
	}
	if b.Deleted != nil && (out.Deleted == nil || out.Deleted.Less(*b.Deleted)) {
		d := *b.Deleted
		out.Deleted = &d
	}
	return out
}
