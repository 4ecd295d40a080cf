package ui

import "nmwifi/netlist"

// board receives orchestrator output between renders. The model owns it
// through a pointer so it survives bubbletea's value-copy of the model.
type board struct {
	order    []string
	status   string
	triggers bool
	dirty    bool
	settled  bool
}

func newBoard() *board {
	return &board{triggers: true}
}

func (b *board) Status(text string) { b.status = text }

func (b *board) Mutate(op netlist.Op) {
	b.order = netlist.ApplyOps(b.order, []netlist.Op{op})
	b.dirty = true
}

func (b *board) SetTriggersEnabled(enabled bool) {
	b.triggers = enabled
	if enabled {
		b.settled = true
	}
}

// takeSettled reports, once, that an attempt finished since the last call.
func (b *board) takeSettled() bool {
	s := b.settled
	b.settled = false
	return s
}
