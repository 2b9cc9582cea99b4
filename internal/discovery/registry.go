package discovery

// Device registry. Reconciliation is the single writer; external readers get
// snapshots or change events, never mid-update visibility.

import (
	"sort"
	"sync"

	"github.com/tturner/enipcfg/internal/device"
)

// EventType classifies a registry change.
type EventType int

const (
	EventAdded EventType = iota
	EventUpdated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event is one device change notification.
type Event struct {
	Type   EventType
	Device device.Device
}

// Registry holds the known devices for one adapter.
type Registry struct {
	mu      sync.RWMutex
	devices map[device.Key]*device.Device
	nextSeq int
	events  chan Event
}

// NewRegistry creates an empty registry. Events are delivered on a buffered
// channel; a slow consumer loses events rather than stalling reconciliation.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[device.Key]*device.Device),
		events:  make(chan Event, 64),
	}
}

// Events returns the change notification channel.
func (r *Registry) Events() <-chan Event {
	return r.events
}

func (r *Registry) notify(t EventType, d device.Device) {
	select {
	case r.events <- Event{Type: t, Device: d}:
	default:
	}
}

// Snapshot returns all devices ordered by discovery sequence.
func (r *Registry) Snapshot() []device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DiscoverySequence < out[j].DiscoverySequence
	})
	return out
}

// Len returns the device count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Clear drops every device, emitting a removal event for each so event-fed
// views empty out with the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	removed := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		removed = append(removed, *d)
	}
	r.devices = make(map[device.Key]*device.Device)
	r.nextSeq = 0
	r.mu.Unlock()

	for _, d := range removed {
		r.notify(EventRemoved, d)
	}
}

// BumpMisses increments every device's missed-scan counter. Auto-browse
// calls this before a cycle; devices that answer get reset in Upsert.
func (r *Registry) BumpMisses() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		d.MissedScanCount++
	}
}

// Upsert reconciles one discovered device. A known (MAC, IP) is updated in
// place with its miss counter reset; a new key is inserted with the next
// discovery sequence. Returns true when the device was newly inserted.
func (r *Registry) Upsert(candidate device.Device) bool {
	r.mu.Lock()

	key := candidate.Key()
	existing, known := r.devices[key]
	if known {
		seq := existing.DiscoverySequence
		*existing = candidate
		existing.DiscoverySequence = seq
		existing.MissedScanCount = 0
		refreshConflicts(r.devices)
		updated := *existing
		r.mu.Unlock()
		r.notify(EventUpdated, updated)
		return false
	}

	r.nextSeq++
	candidate.DiscoverySequence = r.nextSeq
	candidate.MissedScanCount = 0
	stored := candidate
	r.devices[key] = &stored
	refreshConflicts(r.devices)
	added := stored
	r.mu.Unlock()
	r.notify(EventAdded, added)
	return true
}

// EvictStale removes devices whose miss counter reached the threshold and
// returns them.
func (r *Registry) EvictStale(threshold int) []device.Device {
	r.mu.Lock()

	var removed []device.Device
	for key, d := range r.devices {
		if d.MissedScanCount >= threshold {
			removed = append(removed, *d)
			delete(r.devices, key)
		}
	}
	if len(removed) > 0 {
		refreshConflicts(r.devices)
	}
	r.mu.Unlock()

	for _, d := range removed {
		r.notify(EventRemoved, d)
	}
	return removed
}

// refreshConflicts rederives each device's status. An IP claimed by more
// than one MAC is a conflict; 169.254/16 devices are link-local; the rest
// are healthy. Caller holds the write lock.
func refreshConflicts(devices map[device.Key]*device.Device) {
	claims := make(map[string]int)
	for _, d := range devices {
		if d.MACAddress != "" {
			claims[d.IPAddress.String()]++
		}
	}
	for _, d := range devices {
		switch {
		case d.MACAddress != "" && claims[d.IPAddress.String()] > 1:
			d.Status = device.StatusConflict
		case d.IsLinkLocal():
			d.Status = device.StatusLinkLocal
		default:
			d.Status = device.StatusOK
		}
	}
}
