package tui

import (
	"net"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/discovery"
)

func testDevice(mac, ip string, seq int) device.Device {
	return device.Device{
		MACAddress:        mac,
		IPAddress:         net.ParseIP(ip),
		VendorName:        "Rockwell Automation/Allen-Bradley",
		ProductName:       "1766-L32BXB B/11.00",
		FirmwareRevision:  "11.0",
		SerialNumber:      0x0042ABCD,
		DiscoverySequence: seq,
	}
}

func TestApplyEventKeepsDiscoveryOrder(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)

	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: testDevice("aa:00:00:00:00:02", "192.168.1.60", 2)})
	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: testDevice("aa:00:00:00:00:01", "192.168.1.50", 1)})

	if len(m.order) != 2 {
		t.Fatalf("got %d rows, want 2", len(m.order))
	}
	if m.order[0].IP != "192.168.1.50" {
		t.Errorf("first row is %s, want the lower discovery sequence first", m.order[0].IP)
	}
}

func TestApplyEventUpdateDoesNotDuplicate(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)
	d := testDevice("aa:00:00:00:00:01", "192.168.1.50", 1)

	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: d})
	d.FirmwareRevision = "12.0"
	m.applyEvent(discovery.Event{Type: discovery.EventUpdated, Device: d})

	if len(m.order) != 1 {
		t.Fatalf("got %d rows, want 1", len(m.order))
	}
	if got := m.devices[m.order[0]].FirmwareRevision; got != "12.0" {
		t.Errorf("firmware = %q, want updated value", got)
	}
}

func TestApplyEventRemoveClampsCursor(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)
	a := testDevice("aa:00:00:00:00:01", "192.168.1.50", 1)
	b := testDevice("aa:00:00:00:00:02", "192.168.1.60", 2)

	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: a})
	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: b})
	m.cursor = 1

	m.applyEvent(discovery.Event{Type: discovery.EventRemoved, Device: b})

	if len(m.order) != 1 {
		t.Fatalf("got %d rows, want 1", len(m.order))
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestCursorKeys(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)
	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: testDevice("aa:00:00:00:00:01", "192.168.1.50", 1)})
	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: testDevice("aa:00:00:00:00:02", "192.168.1.60", 2)})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor after down = %d, want 1", m.cursor)
	}

	// Down at the bottom stays put.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor after second down = %d, want 1", m.cursor)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != 0 {
		t.Errorf("cursor after up = %d, want 0", m.cursor)
	}
}

func TestViewListsDevices(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)
	m.applyEvent(discovery.Event{Type: discovery.EventAdded, Device: testDevice("aa:bb:cc:dd:ee:ff", "192.168.1.50", 1)})

	view := m.View()
	if !strings.Contains(view, "192.168.1.50") {
		t.Error("view does not contain the device IP")
	}
	if !strings.Contains(view, "aa:bb:cc:dd:ee:ff") {
		t.Error("view does not contain the device MAC")
	}
	if !strings.Contains(view, "eth0") {
		t.Error("view does not name the adapter")
	}
}

func TestFlashLifecycle(t *testing.T) {
	m := NewModel("eth0", nil, nil, nil)

	next, cmd := m.Update(clipboardCopiedMsg{target: "192.168.1.50"})
	m = next.(Model)
	if !strings.Contains(m.View(), "copied 192.168.1.50") {
		t.Error("flash not shown after copy")
	}
	if cmd == nil {
		t.Fatal("no expiry tick scheduled")
	}

	next, _ = m.Update(flashExpiredMsg{})
	m = next.(Model)
	if strings.Contains(m.View(), "copied") {
		t.Error("flash still shown after expiry")
	}
}

func TestScanAndClearBindings(t *testing.T) {
	var scanned, cleared bool
	m := NewModel("eth0", nil,
		func() error { scanned = true; return nil },
		func() { cleared = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("s did not schedule a scan command")
	}
	if msg, ok := cmd().(scanDoneMsg); !ok || msg.err != nil {
		t.Errorf("scan command returned %v", msg)
	}
	if !scanned {
		t.Error("s did not trigger a scan")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	_ = next
	if !cleared {
		t.Error("x did not clear the registry")
	}
}

func TestScanRejectionShowsFlash(t *testing.T) {
	m := NewModel("eth0", nil,
		func() error { return discovery.ErrScanInProgress },
		nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("s did not schedule a scan command")
	}

	next, cmd = m.Update(cmd())
	m = next.(Model)
	if !strings.Contains(m.View(), "scan skipped") {
		t.Error("rejected scan not surfaced in the flash line")
	}
	if cmd == nil {
		t.Error("no expiry tick scheduled for the flash")
	}
}
