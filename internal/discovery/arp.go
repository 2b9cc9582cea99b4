package discovery

// MAC resolution for discovered devices. ListIdentity replies do not carry
// the MAC, so the candidate is pinged to prime the OS ARP cache, then the
// table is read back. When the table misses and the adapter supports packet
// capture, an active ARP probe is the fallback.

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/netdetect"
)

// MACResolver resolves an IPv4 address to a MAC string. Failure returns an
// error; callers treat an unresolved MAC as non-fatal.
type MACResolver interface {
	Resolve(ctx context.Context, ip net.IP) (string, error)
}

// SystemResolver primes the ARP cache with a ping and reads the OS table.
type SystemResolver struct {
	Adapter     netdetect.Adapter
	PingTimeout time.Duration
	Settle      time.Duration
	Log         *logging.Logger
}

// Resolve pings ip, waits for the ARP cache to settle, then queries the OS
// table. When the table has no entry, an active ARP probe on the adapter is
// tried before giving up.
func (r *SystemResolver) Resolve(ctx context.Context, ip net.IP) (string, error) {
	pingHost(ctx, ip, r.PingTimeout)

	select {
	case <-time.After(r.Settle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if mac, err := lookupARPTable(ip); err == nil {
		return mac, nil
	}

	mac, err := activeResolve(r.Adapter, ip, r.PingTimeout)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ip, err)
	}
	return mac.String(), nil
}

// pingHost sends a single ping purely for its ARP side effect; the exit
// status does not matter.
func pingHost(ctx context.Context, ip net.IP, timeout time.Duration) {
	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", strconv.Itoa(seconds*1000), ip.String())
	case "darwin":
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-t", strconv.Itoa(seconds), ip.String())
	default:
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(seconds), ip.String())
	}
	_ = cmd.Run()
}

// lookupARPTable reads the OS ARP table for ip.
func lookupARPTable(ip net.IP) (string, error) {
	if runtime.GOOS == "linux" {
		content, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return "", err
		}
		if mac := parseProcNetARP(string(content), ip); mac != "" {
			return mac, nil
		}
		return "", fmt.Errorf("no ARP entry for %s", ip)
	}

	out, err := exec.Command("arp", "-a").Output()
	if err != nil {
		return "", err
	}
	if mac := parseArpACommand(string(out), ip); mac != "" {
		return mac, nil
	}
	return "", fmt.Errorf("no ARP entry for %s", ip)
}

// parseProcNetARP finds ip in /proc/net/arp content. An incomplete entry
// (all-zero MAC) does not count.
func parseProcNetARP(content string, ip net.IP) string {
	want := ip.String()
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != want {
			continue
		}
		mac := strings.ToLower(fields[3])
		if mac == "00:00:00:00:00:00" {
			continue
		}
		return mac
	}
	return ""
}

// parseArpACommand finds ip in `arp -a` output. BSD and Windows formats
// differ; both parenthesize or lead with the IP and carry the MAC in the
// following fields.
func parseArpACommand(output string, ip net.IP) string {
	want := ip.String()
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, want) {
			continue
		}
		// Reject substring matches like 10.0.0.1 inside 10.0.0.10.
		if !strings.Contains(line, "("+want+")") && !strings.Contains(line, want+" ") {
			continue
		}
		for _, field := range strings.Fields(line) {
			normalized := strings.ToLower(strings.ReplaceAll(field, "-", ":"))
			if hw, err := net.ParseMAC(normalized); err == nil {
				return hw.String()
			}
		}
	}
	return ""
}

// activeResolve sends an ARP request on the adapter and waits for the reply.
func activeResolve(adapter netdetect.Adapter, targetIP net.IP, timeout time.Duration) (net.HardwareAddr, error) {
	if adapter.MAC == nil || adapter.IP == nil {
		return nil, fmt.Errorf("adapter %s cannot send ARP probes", adapter.Name)
	}

	handle, err := pcap.OpenLive(adapter.Name, 65535, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open adapter for arp: %w", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return nil, fmt.Errorf("set arp filter: %w", err)
	}

	eth := &layers.Ethernet{
		SrcMAC:       adapter.MAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(adapter.MAC),
		SourceProtAddress: []byte(adapter.IP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(targetIP.To4()),
	}

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buffer, opts, eth, arp); err != nil {
		return nil, fmt.Errorf("serialize arp: %w", err)
	}
	if err := handle.WritePacketData(buffer.Bytes()); err != nil {
		return nil, fmt.Errorf("send arp: %w", err)
	}

	expire := time.After(timeout)
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		select {
		case pkt := <-source.Packets():
			if pkt == nil {
				continue
			}
			layer := pkt.Layer(layers.LayerTypeARP)
			if layer == nil {
				continue
			}
			reply := layer.(*layers.ARP)
			if reply.Operation != layers.ARPReply {
				continue
			}
			if !net.IP(reply.SourceProtAddress).Equal(targetIP.To4()) {
				continue
			}
			return net.HardwareAddr(reply.SourceHwAddress), nil
		case <-expire:
			return nil, fmt.Errorf("no ARP reply from %s", targetIP)
		}
	}
}
