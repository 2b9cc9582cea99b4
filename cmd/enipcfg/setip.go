package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/enip"
	"github.com/tturner/enipcfg/internal/session"
)

type setIPFlags struct {
	target   string
	ip       string
	mask     string
	gateway  string
	hostname string
	dns      string
}

func newSetIPCmd(globals *globalFlags) *cobra.Command {
	flags := &setIPFlags{}

	cmd := &cobra.Command{
		Use:   "set-ip",
		Short: "Write network configuration to a device",
		Long: `Write a new network configuration to the device at --target over a CIP
session. Attributes go out one at a time in a fixed order: IP address,
subnet mask, then gateway, hostname and DNS server when given. The order
matters — changing the IP last keeps the device reachable for the writes
before it fails, and the first failed write stops the sequence.

Most devices only apply the new address after a power cycle.`,
		Example: `  # Set address and mask
  enipcfg set-ip --target 192.168.1.50 --ip 192.168.1.100 --mask 255.255.255.0

  # Full configuration
  enipcfg set-ip --target 192.168.1.50 --ip 192.168.1.100 --mask 255.255.255.0 \
      --gateway 192.168.1.1 --hostname press-7 --dns 192.168.1.53`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetIP(globals, flags)
		},
	}

	cmd.Flags().StringVar(&flags.target, "target", "", "Current IP address of the device (required)")
	cmd.Flags().StringVar(&flags.ip, "ip", "", "New IP address (required)")
	cmd.Flags().StringVar(&flags.mask, "mask", "", "New subnet mask, dotted form (required)")
	cmd.Flags().StringVar(&flags.gateway, "gateway", "", "New default gateway")
	cmd.Flags().StringVar(&flags.hostname, "hostname", "", "New hostname (ASCII, max 64 chars)")
	cmd.Flags().StringVar(&flags.dns, "dns", "", "New DNS server")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("ip")
	cmd.MarkFlagRequired("mask")

	return cmd
}

func runSetIP(globals *globalFlags, flags *setIPFlags) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	defer log.Close()

	target := net.ParseIP(flags.target)
	if target == nil || target.To4() == nil {
		return fmt.Errorf("--target %q is not an IPv4 address", flags.target)
	}

	conf, err := buildConfiguration(flags)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := func(step, total int, attribute string) {
		fmt.Fprintf(os.Stdout, "[%d/%d] Writing %s...\n", step, total, attribute)
	}

	writer := session.NewWriter(cfg.Write, log, progress)
	addr := net.JoinHostPort(target.String(), strconv.Itoa(enip.Port))
	key := device.Key{IP: target.String()}

	result, err := writer.Apply(ctx, addr, key, conf)
	printWriteResult(result)
	if err != nil {
		return err
	}
	if !result.OverallSuccess() {
		return fmt.Errorf("configuration write failed")
	}

	fmt.Fprintf(os.Stdout, "\nDone. Power cycle the device to apply the new address.\n")
	return nil
}

func buildConfiguration(flags *setIPFlags) (device.Configuration, error) {
	conf := device.Configuration{Hostname: flags.hostname}

	conf.IPAddress = net.ParseIP(flags.ip)
	if conf.IPAddress == nil {
		return conf, fmt.Errorf("--ip %q is not a valid address", flags.ip)
	}

	mask := net.ParseIP(flags.mask)
	if mask == nil || mask.To4() == nil {
		return conf, fmt.Errorf("--mask %q is not a valid dotted mask", flags.mask)
	}
	conf.SubnetMask = net.IPMask(mask.To4())

	if flags.gateway != "" {
		conf.Gateway = net.ParseIP(flags.gateway)
		if conf.Gateway == nil {
			return conf, fmt.Errorf("--gateway %q is not a valid address", flags.gateway)
		}
	}
	if flags.dns != "" {
		conf.DNSServer = net.ParseIP(flags.dns)
		if conf.DNSServer == nil {
			return conf, fmt.Errorf("--dns %q is not a valid address", flags.dns)
		}
	}
	return conf, nil
}

func printWriteResult(result device.ConfigurationWriteResult) {
	for _, res := range result.Results {
		switch {
		case res.Skipped:
			fmt.Fprintf(os.Stdout, "  %-22s skipped\n", res.Name)
		case res.Success:
			fmt.Fprintf(os.Stdout, "  %-22s ok\n", res.Name)
		default:
			fmt.Fprintf(os.Stdout, "  %-22s FAILED (status 0x%02X: %s)\n", res.Name, res.StatusCode, res.ErrorMessage)
		}
	}

	succeeded, failed, skipped := result.Counts()
	fmt.Fprintf(os.Stdout, "\n%d succeeded, %d failed, %d skipped\n", succeeded, failed, skipped)
}
