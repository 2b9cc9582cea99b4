package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/discovery"
	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/tui"
)

type watchFlags struct {
	adapterName string
}

func newWatchCmd(globals *globalFlags) *cobra.Command {
	flags := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously browse the subnet with a live device table",
		Long: `Run auto-browse scans on the chosen adapter and show the results in a live
terminal table. Devices that stop answering are evicted after three missed
cycles; address conflicts and link-local fallback addresses are highlighted.

Keys: up/down select a device, c copies it to the clipboard, s forces an
immediate scan, x clears the table, q quits.`,
		Example: `  # Watch the default adapter
  enipcfg watch

  # Watch a specific adapter
  enipcfg watch --adapter eth1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(globals, flags)
		},
	}

	cmd.Flags().StringVar(&flags.adapterName, "adapter", "", "Network adapter (default: first usable)")
	return cmd
}

func runWatch(globals *globalFlags, flags *watchFlags) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	defer log.Close()

	// The TUI owns the terminal; keep log output away from it.
	if globals.logFile == "" && cfg.LogFile == "" {
		log.SetLevel(logging.LogLevelSilent)
	}

	adapterName := flags.adapterName
	if adapterName == "" {
		adapterName = cfg.Adapter
	}
	adapter, err := pickAdapter(adapterName)
	if err != nil {
		return err
	}

	orch, err := discovery.NewOrchestrator(adapter, cfg.Discovery, log)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, adapter.DisplayName, orch)
}
