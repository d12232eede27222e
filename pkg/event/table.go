/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"cmp"
	"math"
	"slices"
)

// table maps IDs to records. Callers hold the base lock.
type table struct {
	last    ID
	max     int
	records map[ID]*record
	user    int
}

func newTable(max int) *table {
	return &table{
		max:     max,
		records: make(map[ID]*record),
	}
}

// add assigns a fresh ID to r and stores it. On failure the table is unchanged.
func (t *table) add(r *record) (ID, error) {
	if t.max > 0 && !r.internal && t.user >= t.max {
		return 0, ErrResourceExhausted
	}
	if t.last == math.MaxUint64 {
		return 0, ErrResourceExhausted
	}
	t.last++
	r.id = t.last
	r.state = StateArmed
	t.records[r.id] = r
	if !r.internal {
		t.user++
	}
	return r.id, nil
}

// remove detaches id and marks it cancelled. Removing an absent ID is a no-op.
func (t *table) remove(id ID) (*record, bool) {
	r, ok := t.records[id]
	if !ok {
		return nil, false
	}
	delete(t.records, id)
	if !r.internal {
		t.user--
	}
	r.state = StateCancelled
	return r, true
}

func (t *table) lookup(id ID) (*record, bool) {
	r, ok := t.records[id]
	return r, ok
}

// issued reports whether id was ever handed out by this table.
func (t *table) issued(id ID) bool {
	return id != 0 && id <= t.last
}

// len counts every live record, internal ones included.
func (t *table) len() int {
	return len(t.records)
}

func (t *table) ids() []ID {
	ids := make([]ID, 0, t.user)
	for id, r := range t.records {
		if !r.internal {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// drain removes every record and returns them in ID order.
func (t *table) drain() []*record {
	out := make([]*record, 0, len(t.records))
	for _, r := range t.records {
		r.state = StateCancelled
		out = append(out, r)
	}
	clear(t.records)
	t.user = 0
	slices.SortFunc(out, func(a, b *record) int { return cmp.Compare(a.id, b.id) })
	return out
}
