// Package tui renders the live device table for the watch command. It is a
// thin consumer layer: it subscribes to registry change events and displays
// Device value objects, never touching the wire itself.
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/discovery"
)

// deviceEventMsg carries one registry change into the update loop.
type deviceEventMsg discovery.Event

// clipboardCopiedMsg is sent after a clipboard copy attempt.
type clipboardCopiedMsg struct {
	target string
	err    error
}

// scanDoneMsg reports the outcome of a manual scan request.
type scanDoneMsg struct {
	err error
}

// flashExpiredMsg clears the transient footer notice.
type flashExpiredMsg struct{}

// Model is the bubbletea model for the watch view.
type Model struct {
	adapterName string
	events      <-chan discovery.Event
	scanNow     func() error // nil disables the manual-scan binding
	clear       func()

	styles  Styles
	devices map[device.Key]device.Device
	order   []device.Key
	cursor  int
	flash   string
	width   int
	quit    bool
}

// NewModel builds a watch model fed by events. scanNow and clear are
// invoked from key bindings and may be nil.
func NewModel(adapterName string, events <-chan discovery.Event, scanNow func() error, clear func()) Model {
	return Model{
		adapterName: adapterName,
		events:      events,
		scanNow:     scanNow,
		clear:       clear,
		styles:      NewStyles(DefaultTheme),
		devices:     make(map[device.Key]device.Device),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// waitForEvent blocks on the registry event channel and feeds the result
// back into Update.
func waitForEvent(events <-chan discovery.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return deviceEventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case deviceEventMsg:
		m.applyEvent(discovery.Event(msg))
		return m, waitForEvent(m.events)

	case clipboardCopiedMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.flash = fmt.Sprintf("copied %s", msg.target)
		}
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return flashExpiredMsg{} })

	case scanDoneMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("scan skipped: %v", msg.err)
			return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return flashExpiredMsg{} })
		}
		return m, nil

	case flashExpiredMsg:
		m.flash = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.order)-1 {
				m.cursor++
			}
		case "c":
			if d, ok := m.selected(); ok {
				return m, copyDevice(d)
			}
		case "s":
			if m.scanNow != nil {
				return m, runScan(m.scanNow)
			}
		case "x":
			if m.clear != nil {
				m.clear()
			}
		}
	}
	return m, nil
}

// applyEvent folds one registry event into the table.
func (m *Model) applyEvent(ev discovery.Event) {
	key := ev.Device.Key()
	switch ev.Type {
	case discovery.EventRemoved:
		delete(m.devices, key)
	default:
		m.devices[key] = ev.Device
	}
	m.reorder()
	if m.cursor >= len(m.order) && m.cursor > 0 {
		m.cursor = len(m.order) - 1
	}
}

// reorder keeps rows in discovery order, matching the registry snapshots.
func (m *Model) reorder() {
	m.order = m.order[:0]
	for key := range m.devices {
		m.order = append(m.order, key)
	}
	sort.Slice(m.order, func(i, j int) bool {
		return m.devices[m.order[i]].DiscoverySequence < m.devices[m.order[j]].DiscoverySequence
	})
}

func (m Model) selected() (device.Device, bool) {
	if m.cursor < 0 || m.cursor >= len(m.order) {
		return device.Device{}, false
	}
	return m.devices[m.order[m.cursor]], true
}

// runScan triggers a manual scan and reports whether it was accepted. The
// scan itself blocks for its collection window, so it runs off the update
// loop as a command.
func runScan(scan func() error) tea.Cmd {
	return func() tea.Msg {
		return scanDoneMsg{err: scan()}
	}
}

// copyDevice copies the selected device's summary line to the clipboard.
func copyDevice(d device.Device) tea.Cmd {
	return func() tea.Msg {
		text := fmt.Sprintf("%s\t%s\t%s\t%s\tSN %08X",
			d.IPAddress, d.MACAddress, d.VendorName, d.ProductName, d.SerialNumber)
		return clipboardCopiedMsg{
			target: d.IPAddress.String(),
			err:    clipboard.WriteAll(text),
		}
	}
}

const rowFormat = "%-15s  %-17s  %-18s  %-24s  %-9s  %-8s"

func (m Model) View() string {
	if m.quit {
		return ""
	}

	var rows []string
	rows = append(rows, m.styles.Title.Render(fmt.Sprintf("enipcfg watch — %s (%d devices)", m.adapterName, len(m.order))))
	rows = append(rows, m.styles.Header.Render(fmt.Sprintf(rowFormat,
		"IP ADDRESS", "MAC ADDRESS", "VENDOR", "PRODUCT", "FIRMWARE", "STATUS")))

	for i, key := range m.order {
		d := m.devices[key]
		line := fmt.Sprintf(rowFormat,
			d.IPAddress.String(),
			orDash(d.MACAddress),
			truncate(orDash(d.VendorName), 18),
			truncate(d.ProductName, 24),
			d.FirmwareRevision,
			d.Status.String())

		style := m.styles.Row
		if i == m.cursor {
			style = m.styles.Selected
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			style.Render(line), "  ", m.statusStyle(d.Status).Render(statusGlyph(d.Status))))
	}

	if len(m.order) == 0 {
		rows = append(rows, m.styles.Footer.Render("waiting for devices..."))
	}

	footer := "q quit · up/down select · c copy · s scan now · x clear"
	if m.flash != "" {
		rows = append(rows, m.styles.Flash.Render(m.flash))
	}
	rows = append(rows, m.styles.Footer.Render(footer))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) statusStyle(s device.Status) lipgloss.Style {
	switch s {
	case device.StatusOK:
		return m.styles.StatusOK
	case device.StatusLinkLocal:
		return m.styles.StatusWn
	default:
		return m.styles.StatusEr
	}
}

func statusGlyph(s device.Status) string {
	if s == device.StatusOK {
		return "●"
	}
	return "▲"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
