package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/discovery"
	"github.com/tturner/enipcfg/internal/netdetect"
)

type discoverFlags struct {
	adapterName string
	window      time.Duration
	output      string
}

func newDiscoverCmd(globals *globalFlags) *cobra.Command {
	flags := &discoverFlags{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the subnet for EtherNet/IP devices",
		Long: `Broadcast a List Identity request on the chosen adapter and report every
device that answers within the scan window.

The scan sends to both the limited broadcast address and the subnet-directed
broadcast, and listens on an ephemeral port plus (best effort) UDP 44818, so
it coexists with other tools that hold the standard port. Each device's MAC
address is resolved through the ARP table after its reply arrives.`,
		Example: `  # One scan on the default adapter
  enipcfg discover

  # Scan a specific adapter with a longer window
  enipcfg discover --adapter eth1 --window 5s

  # Output results as JSON
  enipcfg discover --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(globals, flags)
		},
	}

	cmd.Flags().StringVar(&flags.adapterName, "adapter", "", "Network adapter (default: first usable)")
	cmd.Flags().DurationVar(&flags.window, "window", 0, "Scan window (default from config, 3s)")
	cmd.Flags().StringVar(&flags.output, "output", "text", "Output format: text|json")

	return cmd
}

func runDiscover(globals *globalFlags, flags *discoverFlags) error {
	if flags.output != "text" && flags.output != "json" {
		return fmt.Errorf("invalid output format %q; must be 'text' or 'json'", flags.output)
	}

	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	defer log.Close()

	if flags.window > 0 {
		cfg.Discovery.ScanWindowMs = int(flags.window / time.Millisecond)
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

	if err := orch.ScanNow(context.Background()); err != nil {
		return err
	}

	devices := orch.Registry().Snapshot()
	if flags.output == "json" {
		return printDevicesJSON(devices)
	}
	printDevicesText(devices)
	return nil
}

// pickAdapter resolves the adapter by name; an empty name selects the first
// usable one.
func pickAdapter(name string) (netdetect.Adapter, error) {
	return netdetect.FindAdapter(name)
}

// deviceJSON is the stable JSON shape for one discovered device.
type deviceJSON struct {
	MAC          string `json:"mac"`
	IP           string `json:"ip"`
	VendorID     uint16 `json:"vendor_id"`
	VendorName   string `json:"vendor_name,omitempty"`
	DeviceType   uint16 `json:"device_type"`
	ProductCode  uint16 `json:"product_code"`
	ProductName  string `json:"product_name"`
	SerialNumber string `json:"serial_number"`
	Firmware     string `json:"firmware"`
	Status       string `json:"status"`
}

func printDevicesJSON(devices []device.Device) error {
	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{
			MAC:          d.MACAddress,
			IP:           d.IPAddress.String(),
			VendorID:     d.VendorID,
			VendorName:   d.VendorName,
			DeviceType:   d.DeviceType,
			ProductCode:  d.ProductCode,
			ProductName:  d.ProductName,
			SerialNumber: fmt.Sprintf("0x%08X", d.SerialNumber),
			Firmware:     d.FirmwareRevision,
			Status:       d.Status.String(),
		})
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s\n", jsonData)
	return nil
}

func printDevicesText(devices []device.Device) {
	if len(devices) == 0 {
		fmt.Fprintf(os.Stdout, "No devices discovered\n")
		return
	}

	fmt.Fprintf(os.Stdout, "Discovered %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(os.Stdout, "Device %d:\n", i+1)
		fmt.Fprintf(os.Stdout, "  IP:           %s\n", d.IPAddress)
		if d.MACAddress != "" {
			fmt.Fprintf(os.Stdout, "  MAC:          %s\n", d.MACAddress)
		} else {
			fmt.Fprintf(os.Stdout, "  MAC:          (unresolved)\n")
		}
		fmt.Fprintf(os.Stdout, "  Vendor:       %s (0x%04X)\n", orUnknown(d.VendorName), d.VendorID)
		fmt.Fprintf(os.Stdout, "  Product:      %s (code 0x%04X)\n", d.ProductName, d.ProductCode)
		fmt.Fprintf(os.Stdout, "  Serial:       0x%08X\n", d.SerialNumber)
		fmt.Fprintf(os.Stdout, "  Firmware:     %s\n", d.FirmwareRevision)
		fmt.Fprintf(os.Stdout, "  Status:       %s\n", d.Status)
		if i < len(devices)-1 {
			fmt.Fprintf(os.Stdout, "\n")
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
