package netdetect

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/pcap"
)

// Adapter represents a network adapter usable for discovery.
type Adapter struct {
	Name        string // System interface name (e.g., "en0", "eth0", "\Device\NPF_{GUID}")
	DisplayName string // Human-readable name for display
	Description string
	IP          net.IP     // First IPv4 address, nil when the adapter has none
	Mask        net.IPMask // Mask of that address
	MAC         net.HardwareAddr
	IsUp        bool
	IsLoopback  bool
}

// HasIPv4 reports whether the adapter carries a usable IPv4 address.
func (a Adapter) HasIPv4() bool {
	return a.IP != nil
}

// SubnetBroadcast computes the subnet-directed broadcast address
// (ip | ^mask per octet).
func (a Adapter) SubnetBroadcast() net.IP {
	return SubnetBroadcast(a.IP, a.Mask)
}

// SubnetBroadcast computes the directed broadcast for an IPv4 address/mask.
func SubnetBroadcast(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || len(mask) != 4 {
		return nil
	}
	broadcast := make(net.IP, 4)
	for i := range ip4 {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}

// ListAdapters returns all adapters suitable for discovery. pcap supplies the
// capture-capable device list; the net package fills in flags, MAC and
// addressing.
func ListAdapters() ([]Adapter, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find network devices: %w", err)
	}

	var adapters []Adapter
	for _, device := range devices {
		adapter := Adapter{
			Name:        device.Name,
			DisplayName: device.Name,
			Description: device.Description,
		}

		for _, addr := range device.Addresses {
			if addr.IP == nil {
				continue
			}
			if addr.IP.IsLoopback() {
				adapter.IsLoopback = true
			}
			if ip4 := addr.IP.To4(); ip4 != nil && adapter.IP == nil {
				adapter.IP = ip4
				adapter.Mask = net.IPMask(addr.Netmask)
			}
		}

		if iface, err := net.InterfaceByName(device.Name); err == nil {
			adapter.IsUp = (iface.Flags & net.FlagUp) != 0
			adapter.MAC = iface.HardwareAddr
			if iface.Name != "" && iface.Name != device.Name {
				adapter.DisplayName = iface.Name
			}
		}

		// Windows pcap names are GUIDs; the description reads better there.
		if adapter.Description != "" && isGUIDName(adapter.Name) {
			adapter.DisplayName = adapter.Description
		}

		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

// FindAdapter returns the adapter with the given name, matching either the
// system name or the display name. An empty name selects the first up,
// non-loopback adapter with an IPv4 address.
func FindAdapter(name string) (Adapter, error) {
	adapters, err := ListAdapters()
	if err != nil {
		return Adapter{}, err
	}

	if name == "" {
		for _, a := range adapters {
			if a.IsUp && !a.IsLoopback && a.HasIPv4() {
				return a, nil
			}
		}
		return Adapter{}, fmt.Errorf("no usable adapter found; specify one with --adapter")
	}

	for _, a := range adapters {
		if a.Name == name || a.DisplayName == name {
			if !a.HasIPv4() {
				return Adapter{}, fmt.Errorf("adapter %s has no IPv4 address", name)
			}
			return a, nil
		}
	}
	return Adapter{}, fmt.Errorf("adapter %s not found", name)
}

// isGUIDName checks if a name looks like a Windows GUID-style interface name.
func isGUIDName(name string) bool {
	return len(name) > 20 && (strings.Contains(name, "{") || strings.HasPrefix(name, "\\Device\\"))
}
