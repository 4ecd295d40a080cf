package netlist

import (
	"sort"

	"nmwifi/gonetworkmanager"
)

// Update pairs an existing key with its latest sighting.
type Update struct {
	Key string
	AP  gonetworkmanager.AccessPoint
}

// Diff partitions a snapshot against the table.
type Diff struct {
	ToAdd    []gonetworkmanager.AccessPoint
	ToUpdate []Update
	ToRemove []string
}

// Empty reports whether applying d would change nothing.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// ComputeDiff compares snapshot with the table. Keys are normalized bssids;
// a bssid seen twice in one snapshot keeps its strongest sighting. Every
// key present in both is reported as an update, changed or not.
//
// An empty snapshot yields a diff removing everything. Callers that must
// not flap the list on a transient empty read check for that first.
func ComputeDiff(t *Table, snapshot []gonetworkmanager.AccessPoint) Diff {
	seen := make(map[string]int, len(snapshot))
	var unique []gonetworkmanager.AccessPoint
	for _, ap := range snapshot {
		ap.BSSID = gonetworkmanager.NormalizeBSSID(ap.BSSID)
		if ap.BSSID == "" {
			continue
		}
		if i, dup := seen[ap.BSSID]; dup {
			if ap.Strength > unique[i].Strength {
				unique[i] = ap
			}
			continue
		}
		seen[ap.BSSID] = len(unique)
		unique = append(unique, ap)
	}

	var d Diff
	for _, ap := range unique {
		if _, ok := t.entries[ap.BSSID]; ok {
			d.ToUpdate = append(d.ToUpdate, Update{Key: ap.BSSID, AP: ap})
		} else {
			d.ToAdd = append(d.ToAdd, ap)
		}
	}
	for key := range t.entries {
		if _, ok := seen[key]; !ok {
			d.ToRemove = append(d.ToRemove, key)
		}
	}
	sort.Strings(d.ToRemove)
	return d
}
