package discovery

import (
	"net"
	"testing"

	"github.com/tturner/enipcfg/internal/device"
)

func sampleDevice(mac, ip string) device.Device {
	return device.Device{
		MACAddress:  mac,
		IPAddress:   net.ParseIP(ip),
		VendorID:    1,
		ProductName: "Test Adapter",
	}
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	r := NewRegistry()

	if !r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10")) {
		t.Fatal("first upsert should insert")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}

	// Same (mac, ip) again: update in place, count unchanged.
	updated := sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10")
	updated.ProductName = "Renamed Adapter"
	if r.Upsert(updated) {
		t.Error("re-discovery should update, not insert")
	}
	if r.Len() != 1 {
		t.Errorf("len after re-discovery = %d, want 1", r.Len())
	}

	snap := r.Snapshot()
	if snap[0].ProductName != "Renamed Adapter" {
		t.Errorf("product name = %q, want updated value", snap[0].ProductName)
	}
	if snap[0].DiscoverySequence != 1 {
		t.Errorf("sequence = %d, want original 1", snap[0].DiscoverySequence)
	}
}

func TestMultiPortDeviceGetsTwoEntries(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.2.10"))

	if r.Len() != 2 {
		t.Errorf("len = %d, want 2 (same MAC, two IPs)", r.Len())
	}
}

func TestMissCountingAndEviction(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))

	// Cycle 1: silent.
	r.BumpMisses()
	if removed := r.EvictStale(3); len(removed) != 0 {
		t.Fatal("one miss must not evict at threshold 3")
	}

	// Cycle 2: the device answers; its counter resets to 0.
	r.BumpMisses()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	if snap := r.Snapshot(); snap[0].MissedScanCount != 0 {
		t.Errorf("miss count after response = %d, want 0", snap[0].MissedScanCount)
	}

	// Three more silent cycles reach the threshold.
	r.BumpMisses()
	r.EvictStale(3)
	r.BumpMisses()
	r.EvictStale(3)
	if r.Len() != 1 {
		t.Fatal("device evicted too early")
	}
	r.BumpMisses()
	removed := r.EvictStale(3)
	if len(removed) != 1 {
		t.Fatalf("removed = %d, want 1 after three consecutive misses", len(removed))
	}
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0", r.Len())
	}
}

func TestConflictStatus(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:02", "192.168.1.10"))

	for _, d := range r.Snapshot() {
		if d.Status != device.StatusConflict {
			t.Errorf("device %s status = %s, want Conflict", d.MACAddress, d.Status)
		}
	}

	// Conflict clears when one claimant leaves.
	r.BumpMisses()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.EvictStale(1)
	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len = %d, want 1", len(snap))
	}
	if snap[0].Status != device.StatusOK {
		t.Errorf("status after conflict cleared = %s, want OK", snap[0].Status)
	}
}

func TestLinkLocalStatus(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:03", "169.254.12.34"))
	if snap := r.Snapshot(); snap[0].Status != device.StatusLinkLocal {
		t.Errorf("status = %s, want LinkLocal", snap[0].Status)
	}
}

func TestEventsEmitted(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.BumpMisses()
	r.EvictStale(1)

	want := []EventType{EventAdded, EventUpdated, EventRemoved}
	for i, wantType := range want {
		select {
		case ev := <-r.Events():
			if ev.Type != wantType {
				t.Errorf("event %d = %s, want %s", i, ev.Type, wantType)
			}
		default:
			t.Fatalf("missing event %d (%s)", i, wantType)
		}
	}
}

func TestClearEmitsRemovalEvents(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:02", "192.168.1.11"))
	for len(r.Events()) > 0 {
		<-r.Events()
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", r.Len())
	}

	got := 0
	for len(r.Events()) > 0 {
		ev := <-r.Events()
		if ev.Type != EventRemoved {
			t.Errorf("clear emitted %s, want removed", ev.Type)
		}
		got++
	}
	if got != 2 {
		t.Errorf("clear emitted %d events, want one per device (2)", got)
	}
}

func TestSnapshotOrderedBySequence(t *testing.T) {
	r := NewRegistry()
	r.Upsert(sampleDevice("aa:bb:cc:00:00:01", "192.168.1.10"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:02", "192.168.1.11"))
	r.Upsert(sampleDevice("aa:bb:cc:00:00:03", "192.168.1.12"))

	snap := r.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i].DiscoverySequence <= snap[i-1].DiscoverySequence {
			t.Errorf("snapshot not ordered: seq[%d]=%d, seq[%d]=%d",
				i-1, snap[i-1].DiscoverySequence, i, snap[i].DiscoverySequence)
		}
	}
}
