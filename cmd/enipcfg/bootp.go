package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/bootp"
	"github.com/tturner/enipcfg/internal/session"
)

type bootpFlags struct {
	adapterName string
	ip          string
	mask        string
	gateway     string
	disableDHCP bool
	assumeYes   bool
}

func newBootPCmd(globals *globalFlags) *cobra.Command {
	flags := &bootpFlags{}

	cmd := &cobra.Command{
		Use:   "bootp",
		Short: "Answer BootP requests from factory-default devices",
		Long: `Listen for BootP requests from devices that have no IP address yet and
assign them the address given with --ip. Each request is presented for
confirmation before a reply goes out; requests from other devices keep
queueing while one is pending.

Binding the BootP port needs elevated privileges on most systems
(sudo / administrator).

With --disable-dhcp the device is switched to static addressing over CIP
after the assignment, so it keeps the address across power cycles.`,
		Example: `  # Assign 192.168.1.100 to the first device that asks
  sudo enipcfg bootp --ip 192.168.1.100 --mask 255.255.255.0

  # Assign and make permanent without prompting
  sudo enipcfg bootp --ip 192.168.1.100 --mask 255.255.255.0 --disable-dhcp --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootP(globals, flags)
		},
	}

	cmd.Flags().StringVar(&flags.adapterName, "adapter", "", "Network adapter (default: first usable)")
	cmd.Flags().StringVar(&flags.ip, "ip", "", "IP address to assign (required)")
	cmd.Flags().StringVar(&flags.mask, "mask", "", "Subnet mask, dotted form (required)")
	cmd.Flags().StringVar(&flags.gateway, "gateway", "", "Router handed out in the reply")
	cmd.Flags().BoolVar(&flags.disableDHCP, "disable-dhcp", false, "Switch the device to static addressing after the reply")
	cmd.Flags().BoolVarP(&flags.assumeYes, "yes", "y", false, "Accept the first request without prompting")
	cmd.MarkFlagRequired("ip")
	cmd.MarkFlagRequired("mask")

	return cmd
}

func runBootP(globals *globalFlags, flags *bootpFlags) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	defer log.Close()

	assignment, err := buildAssignment(flags)
	if err != nil {
		return err
	}

	adapterName := flags.adapterName
	if adapterName == "" {
		adapterName = cfg.Adapter
	}
	adapter, err := pickAdapter(adapterName)
	if err != nil {
		return err
	}

	writer := session.NewWriter(cfg.Write, log, nil)
	server := bootp.NewServer(adapter, cfg.BootP, writer, log)
	if err := server.Listen(); err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stdout, "Waiting for BootP requests on %s (ctrl-c to stop)...\n", adapter.DisplayName)

	for {
		var req bootp.Request
		select {
		case <-ctx.Done():
			return nil
		case req = <-server.Requests():
		}

		accept := flags.assumeYes
		if !accept {
			accept, err = confirmRequest(req, assignment)
			if err != nil {
				return err
			}
		}

		result, err := server.Resolve(ctx, req, bootp.Decision{
			Accept:      accept,
			Assignment:  assignment,
			DisableDHCP: flags.disableDHCP && cfg.BootP.DisableDHCP,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if !result.ReplySent {
			fmt.Fprintf(os.Stdout, "Ignored request from %s\n", req.ClientMAC)
			continue
		}

		fmt.Fprintf(os.Stdout, "Assigned %s to %s\n", result.AssignedIP, req.ClientMAC)
		switch {
		case result.DHCPDisabled:
			fmt.Fprintf(os.Stdout, "Device switched to static addressing.\n")
		case result.DisableFailure != "":
			fmt.Fprintf(os.Stdout, "Address assigned, but switching to static addressing failed: %s\n", result.DisableFailure)
			fmt.Fprintf(os.Stdout, "The device may request a new address again after a power cycle.\n")
		}
		return nil
	}
}

func buildAssignment(flags *bootpFlags) (bootp.Assignment, error) {
	var a bootp.Assignment

	a.IP = net.ParseIP(flags.ip)
	if a.IP == nil || a.IP.To4() == nil {
		return a, fmt.Errorf("--ip %q is not an IPv4 address", flags.ip)
	}

	mask := net.ParseIP(flags.mask)
	if mask == nil || mask.To4() == nil {
		return a, fmt.Errorf("--mask %q is not a valid dotted mask", flags.mask)
	}
	a.SubnetMask = net.IPMask(mask.To4())

	if flags.gateway != "" {
		a.Router = net.ParseIP(flags.gateway)
		if a.Router == nil {
			return a, fmt.Errorf("--gateway %q is not a valid address", flags.gateway)
		}
	}
	return a, nil
}

// confirmRequest asks whether to answer one pending request.
func confirmRequest(req bootp.Request, assignment bootp.Assignment) (bool, error) {
	accept := true
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("BootP request from %s (xid 0x%08X)", req.ClientMAC, req.XID)).
			Description(fmt.Sprintf("Assign %s?", assignment.IP)).
			Affirmative("Assign").
			Negative("Ignore").
			Value(&accept),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return accept, nil
}
