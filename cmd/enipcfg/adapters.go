package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/netdetect"
)

func newAdaptersCmd(globals *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List network adapters usable for discovery",
		Long: `List the network adapters on this machine along with their IPv4 address,
subnet mask and MAC address. Discovery and BootP need an adapter with an
IPv4 address; adapters without one are shown but marked unusable.`,
		Example: `  # List adapters
  enipcfg adapters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapters(globals)
		},
	}
}

func runAdapters(globals *globalFlags) error {
	adapters, err := netdetect.ListAdapters()
	if err != nil {
		return fmt.Errorf("list adapters: %w", err)
	}

	if len(adapters) == 0 {
		fmt.Fprintf(os.Stdout, "No adapters found\n")
		return nil
	}

	for i, a := range adapters {
		fmt.Fprintf(os.Stdout, "Adapter %d: %s\n", i+1, a.DisplayName)
		fmt.Fprintf(os.Stdout, "  Interface:  %s\n", a.Name)
		if a.Description != "" {
			fmt.Fprintf(os.Stdout, "  Description: %s\n", a.Description)
		}
		if a.HasIPv4() {
			fmt.Fprintf(os.Stdout, "  IPv4:       %s\n", a.IP)
			fmt.Fprintf(os.Stdout, "  Mask:       %s\n", netIPString(a))
			fmt.Fprintf(os.Stdout, "  Broadcast:  %s\n", a.SubnetBroadcast())
		} else {
			fmt.Fprintf(os.Stdout, "  IPv4:       none (not usable for discovery)\n")
		}
		if a.MAC != nil {
			fmt.Fprintf(os.Stdout, "  MAC:        %s\n", a.MAC)
		}
		fmt.Fprintf(os.Stdout, "  Up:         %v\n", a.IsUp)
		if i < len(adapters)-1 {
			fmt.Fprintf(os.Stdout, "\n")
		}
	}
	return nil
}

func netIPString(a netdetect.Adapter) string {
	if a.Mask == nil {
		return "-"
	}
	return fmt.Sprintf("%d.%d.%d.%d", a.Mask[0], a.Mask[1], a.Mask[2], a.Mask[3])
}
