package device

// Device and configuration value objects shared by the discovery and
// configuration paths. The engine hands these out by value; consumers never
// see registry internals.

import (
	"fmt"
	"net"
	"strings"
)

// Status summarizes the addressing health of a discovered device.
type Status int

const (
	StatusOK Status = iota
	StatusLinkLocal
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusLinkLocal:
		return "LinkLocal"
	case StatusConflict:
		return "Conflict"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Key identifies a device by (MAC, IP). Multi-port devices share one MAC
// across several IPs, so the MAC alone is not unique.
type Key struct {
	MAC string
	IP  string
}

// Device is one discovered EtherNet/IP device.
type Device struct {
	MACAddress        string
	IPAddress         net.IP
	SubnetMask        net.IPMask
	Gateway           net.IP
	VendorID          uint16
	VendorName        string
	DeviceType        uint16
	ProductCode       uint16
	ProductName       string
	SerialNumber      uint32
	FirmwareRevision  string
	Status            Status
	MissedScanCount   int
	DiscoverySequence int
}

// Key returns the (MAC, IP) identity of the device.
func (d Device) Key() Key {
	return Key{MAC: d.MACAddress, IP: d.IPAddress.String()}
}

// IsLinkLocal reports whether the device sits in 169.254/16, meaning it fell
// back to automatic private addressing and needs commissioning.
func (d Device) IsLinkLocal() bool {
	ip4 := d.IPAddress.To4()
	return ip4 != nil && ip4[0] == 169 && ip4[1] == 254
}

// Configuration holds the target values for one configuration write. It is
// transient: nothing here is persisted.
type Configuration struct {
	IPAddress  net.IP     // required
	SubnetMask net.IPMask // required
	Gateway    net.IP
	Hostname   string
	DNSServer  net.IP
}

// Validate checks the required fields and basic shape of a configuration.
func (c Configuration) Validate() error {
	if c.IPAddress == nil || c.IPAddress.To4() == nil {
		return fmt.Errorf("IP address is required and must be IPv4")
	}
	if c.SubnetMask == nil || len(c.SubnetMask) != 4 {
		return fmt.Errorf("subnet mask is required and must be IPv4")
	}
	if ones, bits := c.SubnetMask.Size(); bits == 0 {
		return fmt.Errorf("subnet mask %s is not contiguous", net.IP(c.SubnetMask))
	} else if ones == 0 {
		return fmt.Errorf("subnet mask must not be empty")
	}
	if c.Gateway != nil && c.Gateway.To4() == nil {
		return fmt.Errorf("gateway must be IPv4")
	}
	if c.DNSServer != nil && c.DNSServer.To4() == nil {
		return fmt.Errorf("DNS server must be IPv4")
	}
	if strings.ContainsAny(c.Hostname, " \t") {
		return fmt.Errorf("hostname must not contain whitespace")
	}
	return nil
}

// AttributeWriteResult records the outcome of one attribute write.
type AttributeWriteResult struct {
	Name         string
	Success      bool
	Skipped      bool
	StatusCode   uint8
	ErrorMessage string
}

// ConfigurationWriteResult aggregates the ordered per-attribute outcomes of a
// configuration write.
type ConfigurationWriteResult struct {
	Target  Key
	Results []AttributeWriteResult
}

// Counts returns the number of succeeded, failed and skipped writes.
func (r ConfigurationWriteResult) Counts() (succeeded, failed, skipped int) {
	for _, res := range r.Results {
		switch {
		case res.Skipped:
			skipped++
		case res.Success:
			succeeded++
		default:
			failed++
		}
	}
	return
}

// OverallSuccess reports whether every attempted write succeeded and at least
// one write was attempted.
func (r ConfigurationWriteResult) OverallSuccess() bool {
	succeeded, failed, _ := r.Counts()
	return failed == 0 && succeeded > 0
}
