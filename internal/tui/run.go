package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/enipcfg/internal/discovery"
)

// Run starts the auto-browse loop on orch and renders the live table until
// the user quits. The orchestrator is owned by the caller; Run only borrows
// its registry and scan controls.
func Run(ctx context.Context, adapterName string, orch *discovery.Orchestrator) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	browseErr := make(chan error, 1)
	go func() {
		browseErr <- orch.Run(ctx)
	}()

	model := NewModel(adapterName, orch.Registry().Events(),
		func() error { return orch.ScanNow(ctx) },
		orch.ClearDevices)

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()

	cancel()
	if berr := <-browseErr; berr != nil && !errors.Is(berr, context.Canceled) {
		if err == nil {
			err = berr
		}
	}
	return err
}
