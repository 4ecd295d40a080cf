package netlist

import (
	"sort"

	"nmwifi/gonetworkmanager"
)

// Row is the view-side identity of a network. A Row pointer is created once
// per key and survives every later update of that key.
type Row struct {
	ID                 uint64
	DetailsInitialized bool
	Expanded           bool
	Active             bool
	NeedsPassword      bool
}

// Entry is one live network in the table.
type Entry struct {
	Key string
	AP  gonetworkmanager.AccessPoint
	Row *Row
}

// Table maps bssid to Entry. It is not safe for concurrent use; it belongs
// to whichever goroutine processes scan results.
type Table struct {
	entries  map[string]*Entry
	nextRow  uint64
	expanded string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Get returns the entry for key.
func (t *Table) Get(key string) (*Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Len returns the number of live networks.
func (t *Table) Len() int { return len(t.entries) }

// Keys returns all keys in lexical order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply folds a diff into the table. Added keys get a fresh Row, updated
// keys keep theirs.
func (t *Table) Apply(d Diff) {
	for _, key := range d.ToRemove {
		delete(t.entries, key)
		if t.expanded == key {
			t.expanded = ""
		}
	}
	for _, u := range d.ToUpdate {
		if e, ok := t.entries[u.Key]; ok {
			e.AP = u.AP
		}
	}
	for _, ap := range d.ToAdd {
		key := ap.BSSID
		if _, ok := t.entries[key]; ok {
			continue
		}
		t.nextRow++
		t.entries[key] = &Entry{Key: key, AP: ap, Row: &Row{ID: t.nextRow}}
	}
}

// Order returns every key sorted by strength, strongest first. Equal
// strengths keep their relative position in prior; keys missing from prior
// follow in lexical order.
func (t *Table) Order(prior []string) []string {
	rank := make(map[string]int, len(prior))
	for i, k := range prior {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	keys := t.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := t.entries[keys[i]], t.entries[keys[j]]
		if a.AP.Strength != b.AP.Strength {
			return a.AP.Strength > b.AP.Strength
		}
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return false
		}
	})
	return keys
}

// Expand opens the row for key and closes the previously open one, which
// is returned. At most one row is expanded at a time.
func (t *Table) Expand(key string) (collapsed string, ok bool) {
	e, ok := t.entries[key]
	if !ok {
		return "", false
	}
	if t.expanded == key {
		return "", true
	}
	if prev, found := t.entries[t.expanded]; found {
		prev.Row.Expanded = false
		collapsed = prev.Key
	}
	e.Row.Expanded = true
	e.Row.DetailsInitialized = true
	t.expanded = key
	return collapsed, true
}

// Collapse closes the expanded row, if any, and returns its key.
func (t *Table) Collapse() string {
	key := t.expanded
	if e, ok := t.entries[key]; ok {
		e.Row.Expanded = false
	}
	t.expanded = ""
	return key
}

// Expanded returns the key of the open row, or "".
func (t *Table) Expanded() string { return t.expanded }
