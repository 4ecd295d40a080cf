package netlist

import (
	"math/rand"
	"reflect"
	"testing"

	"nmwifi/gonetworkmanager"
)

func ap(bssid string, strength uint8) gonetworkmanager.AccessPoint {
	return gonetworkmanager.AccessPoint{BSSID: bssid, SSID: []byte("net-" + bssid), Strength: strength}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		strength uint8
		want     Tier
	}{
		{100, TierExcellent},
		{75, TierExcellent},
		{74, TierGood},
		{50, TierGood},
		{49, TierOk},
		{25, TierOk},
		{24, TierWeak},
		{0, TierWeak},
	}
	for _, tt := range tests {
		if got := Classify(tt.strength); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.strength, got, tt.want)
		}
	}
}

func TestComputeDiffPartition(t *testing.T) {
	table := NewTable()
	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 10), ap("b", 20)}))

	snapshot := []gonetworkmanager.AccessPoint{ap("B", 30), ap("c", 40), ap("c", 45)}
	d := ComputeDiff(table, snapshot)

	if len(d.ToAdd) != 1 || d.ToAdd[0].BSSID != "c" || d.ToAdd[0].Strength != 45 {
		t.Errorf("ToAdd = %+v, want single c with strongest sighting", d.ToAdd)
	}
	if len(d.ToUpdate) != 1 || d.ToUpdate[0].Key != "b" {
		t.Errorf("ToUpdate = %+v, want b", d.ToUpdate)
	}
	if !reflect.DeepEqual(d.ToRemove, []string{"a"}) {
		t.Errorf("ToRemove = %v, want [a]", d.ToRemove)
	}

	// added keys plus surviving keys must equal the snapshot keys
	got := map[string]bool{}
	for _, a := range d.ToAdd {
		got[a.BSSID] = true
	}
	removed := map[string]bool{}
	for _, k := range d.ToRemove {
		removed[k] = true
	}
	for _, k := range table.Keys() {
		if !removed[k] {
			got[k] = true
		}
	}
	if !reflect.DeepEqual(got, map[string]bool{"b": true, "c": true}) {
		t.Errorf("resulting keys = %v", got)
	}
}

func TestUnchangedSightingIsStillUpdated(t *testing.T) {
	table := NewTable()
	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 10)}))
	d := ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 10)})
	if len(d.ToUpdate) != 1 || len(d.ToAdd) != 0 || len(d.ToRemove) != 0 {
		t.Errorf("diff = %+v, want one update", d)
	}
}

func TestRowIdentityAcrossSnapshots(t *testing.T) {
	table := NewTable()
	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 80), ap("b", 30)}))
	before, _ := table.Get("b")
	row := before.Row

	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("b", 90)}))

	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}
	if _, ok := table.Get("a"); ok {
		t.Error("a should have been removed")
	}
	after, ok := table.Get("b")
	if !ok {
		t.Fatal("b missing")
	}
	if after.Row != row {
		t.Error("row identity of b changed across snapshots")
	}
	if after.AP.Strength != 90 {
		t.Errorf("strength = %d, want 90", after.AP.Strength)
	}
}

func TestOrderStableTies(t *testing.T) {
	table := NewTable()
	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{
		ap("a", 50), ap("b", 50), ap("c", 70), ap("d", 50),
	}))
	got := table.Order([]string{"d", "b", "a"})
	want := []string{"c", "d", "b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestAccordion(t *testing.T) {
	table := NewTable()
	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 50), ap("b", 40)}))

	if _, ok := table.Expand("a"); !ok {
		t.Fatal("Expand(a) failed")
	}
	collapsed, _ := table.Expand("b")
	if collapsed != "a" {
		t.Errorf("Expand(b) collapsed %q, want a", collapsed)
	}
	a, _ := table.Get("a")
	b, _ := table.Get("b")
	if a.Row.Expanded || !b.Row.Expanded || !a.Row.DetailsInitialized {
		t.Errorf("rows a=%+v b=%+v", a.Row, b.Row)
	}
	if table.Expanded() != "b" {
		t.Errorf("Expanded() = %q", table.Expanded())
	}
	if _, ok := table.Expand("zz"); ok {
		t.Error("Expand of unknown key should fail")
	}

	table.Apply(ComputeDiff(table, []gonetworkmanager.AccessPoint{ap("a", 50)}))
	if table.Expanded() != "" {
		t.Error("removing the expanded row should clear the accordion")
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		desired []string
		maxOps  int
	}{
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 0},
		{"from empty", nil, []string{"a", "b"}, 2},
		{"to empty", []string{"a", "b"}, nil, 2},
		{"swap", []string{"a", "b"}, []string{"b", "a"}, 1},
		{"rotate", []string{"a", "b", "c", "d"}, []string{"d", "a", "b", "c"}, 1},
		{"reverse", []string{"a", "b", "c", "d"}, []string{"d", "c", "b", "a"}, 3},
		{"mixed", []string{"a", "x", "b", "c"}, []string{"c", "n", "a", "b"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := Reconcile(tt.current, tt.desired)
			if len(ops) > tt.maxOps {
				t.Errorf("Reconcile() emitted %d ops, want at most %d: %v", len(ops), tt.maxOps, ops)
			}
			got := ApplyOps(tt.current, ops)
			if len(got) == 0 && len(tt.desired) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.desired) {
				t.Errorf("ApplyOps() = %v, want %v", got, tt.desired)
			}
			if again := Reconcile(got, tt.desired); len(again) != 0 {
				t.Errorf("second Reconcile() = %v, want no ops", again)
			}
		})
	}
}

func TestReconcileScenario(t *testing.T) {
	ops := Reconcile([]string{"a", "b"}, []string{"b"})
	want := []Op{{Kind: OpRemove, Key: "a"}}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("Reconcile() = %v, want %v", ops, want)
	}
}

func TestReconcileRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < 200; i++ {
		current := pick(rng, keys)
		desired := pick(rng, keys)
		ops := Reconcile(current, desired)
		if len(ops) > len(current)+len(desired) {
			t.Fatalf("Reconcile(%v, %v) emitted %d ops", current, desired, len(ops))
		}
		got := ApplyOps(current, ops)
		if len(got) != len(desired) || (len(got) > 0 && !reflect.DeepEqual(got, desired)) {
			t.Fatalf("ApplyOps(%v, %v) = %v, want %v", current, ops, got, desired)
		}
	}
}

func pick(rng *rand.Rand, keys []string) []string {
	perm := rng.Perm(len(keys))
	n := rng.Intn(len(keys) + 1)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = keys[perm[i]]
	}
	return out
}
