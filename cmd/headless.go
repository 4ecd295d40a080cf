package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"nmwifi/netlist"
	"nmwifi/session"
)

// lineSink prints each new status line. List mutations are not shown;
// the scan command prints the final table instead.
type lineSink struct {
	w    io.Writer
	last string
}

func (s *lineSink) Status(text string) {
	if text == "" || text == s.last {
		return
	}
	s.last = text
	fmt.Fprintln(s.w, text)
}

func (s *lineSink) Mutate(netlist.Op)       {}
func (s *lineSink) SetTriggersEnabled(bool) {}

// starter begins the operation once the first scan has settled.
type starter func(o *session.Orchestrator) (tea.Cmd, error)

// headless drives an orchestrator without a UI: an optional scan first,
// then at most one connect or disconnect, then quit.
type headless struct {
	orch     *session.Orchestrator
	scan     bool
	start    starter
	started  bool
	err      error
	finished bool
}

func (h *headless) Init() tea.Cmd {
	if h.scan {
		return h.orch.Refresh(false)
	}
	return h.begin()
}

func (h *headless) begin() tea.Cmd {
	if h.start == nil {
		return h.finish(nil)
	}
	h.started = true
	cmd, err := h.start(h.orch)
	if err != nil {
		return h.finish(err)
	}
	return cmd
}

func (h *headless) finish(err error) tea.Cmd {
	h.err = err
	h.finished = true
	return tea.Quit
}

func (h *headless) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if h.finished {
		return h, nil
	}
	cmd := h.orch.Update(msg)
	switch {
	case !h.started && !h.orch.Scanning():
		return h, h.begin()
	case h.started && !h.orch.Busy():
		out, _ := h.orch.LastOutcome()
		return h, h.finish(out.Err)
	}
	return h, cmd
}

func (h *headless) View() string { return "" }

func runHeadless(h *headless) error {
	defer h.orch.Close()
	program := tea.NewProgram(h, tea.WithoutRenderer(), tea.WithInput(nil), tea.WithOutput(io.Discard))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return h.err
}
