package netlist

import "fmt"

// OpKind is a list mutation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpMove
	OpRemove
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpMove:
		return "move"
	case OpRemove:
		return "remove"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one mutation addressed by key. For inserts and moves After names the
// row the key goes behind; "" means the head of the list.
type Op struct {
	Kind  OpKind
	Key   string
	After string
}

func (o Op) String() string {
	switch o.Kind {
	case OpInsert, OpMove:
		after := o.After
		if after == "" {
			after = "^"
		}
		return fmt.Sprintf("%s %s after %s", o.Kind, o.Key, after)
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.Key)
	}
}

// Reconcile returns the structural ops that turn current into desired.
// Rows missing from desired are removed, the longest subsequence of current
// that is already in desired order stays put, and every other row is moved
// (or inserted) directly behind its desired predecessor. Ops must be applied
// in order. Already ordered input produces no ops.
func Reconcile(current, desired []string) []Op {
	want := make(map[string]int, len(desired))
	for i, k := range desired {
		want[k] = i
	}

	var ops []Op
	kept := make([]string, 0, len(current))
	for _, k := range current {
		if _, ok := want[k]; ok {
			kept = append(kept, k)
		} else {
			ops = append(ops, Op{Kind: OpRemove, Key: k})
		}
	}

	positions := make([]int, len(kept))
	for i, k := range kept {
		positions[i] = want[k]
	}
	stable := make(map[string]bool, len(kept))
	for _, i := range longestIncreasing(positions) {
		stable[kept[i]] = true
	}
	present := make(map[string]bool, len(kept))
	for _, k := range kept {
		present[k] = true
	}

	prev := ""
	for _, k := range desired {
		switch {
		case stable[k]:
		case present[k]:
			ops = append(ops, Op{Kind: OpMove, Key: k, After: prev})
		default:
			ops = append(ops, Op{Kind: OpInsert, Key: k, After: prev})
		}
		prev = k
	}
	return ops
}

// longestIncreasing returns the indexes of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}
	// tails[l] is the index of the smallest tail of an increasing run of length l+1.
	tails := make([]int, 0, len(seq))
	parent := make([]int, len(seq))
	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			parent[i] = tails[lo-1]
		} else {
			parent[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	out := make([]int, len(tails))
	for i, k := len(tails)-1, tails[len(tails)-1]; i >= 0; i-- {
		out[i] = k
		k = parent[k]
	}
	return out
}

// ApplyOps replays ops against order and returns the result. Update ops
// leave the order unchanged.
func ApplyOps(order []string, ops []Op) []string {
	out := append([]string(nil), order...)
	for _, op := range ops {
		switch op.Kind {
		case OpRemove:
			out = without(out, op.Key)
		case OpMove, OpInsert:
			out = without(out, op.Key)
			at := 0
			if op.After != "" {
				for i, k := range out {
					if k == op.After {
						at = i + 1
						break
					}
				}
			}
			out = append(out, "")
			copy(out[at+1:], out[at:])
			out[at] = op.Key
		}
	}
	return out
}

func without(order []string, key string) []string {
	for i, k := range order {
		if k == key {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
