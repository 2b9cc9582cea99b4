package discovery

// Scan cycle orchestration: Idle -> Scanning -> Reconciling -> Idle.

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/tturner/enipcfg/internal/config"
	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/enip"
	enipcfgerrors "github.com/tturner/enipcfg/internal/errors"
	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/netdetect"
)

// ErrScanInProgress is returned when a scan is requested while one runs.
// Scans are rejected, never queued.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Orchestrator drives scan cycles against one adapter. It is the only
// writer of its registry.
type Orchestrator struct {
	adapter  netdetect.Adapter
	socket   *Socket
	registry *Registry
	resolver MACResolver
	cfg      config.DiscoveryConfig
	log      *logging.Logger
	scanning atomic.Bool
}

// NewOrchestrator opens the discovery socket pair on the adapter and wires
// the orchestrator. The socket pair is owned exclusively; switching adapters
// means Close and a new orchestrator.
func NewOrchestrator(adapter netdetect.Adapter, cfg config.DiscoveryConfig, log *logging.Logger) (*Orchestrator, error) {
	socket, err := OpenSocket(adapter, log)
	if err != nil {
		return nil, enipcfgerrors.WrapTransportError(err, adapter.IP.String(), 0)
	}

	return &Orchestrator{
		adapter:  adapter,
		socket:   socket,
		registry: NewRegistry(),
		resolver: &SystemResolver{
			Adapter:     adapter,
			PingTimeout: cfg.PingTimeout(),
			Settle:      cfg.ArpSettle(),
			Log:         log,
		},
		cfg: cfg,
		log: log,
	}, nil
}

// Registry exposes the device registry for snapshots and events.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Close tears down the socket pair.
func (o *Orchestrator) Close() {
	o.socket.Close()
}

// ClearDevices empties the registry.
func (o *Orchestrator) ClearDevices() {
	o.registry.Clear()
}

// ScanNow runs one manual scan cycle. Unlike auto-browse it does not
// penalize devices that happen to be absent from this one cycle.
func (o *Orchestrator) ScanNow(ctx context.Context) error {
	return o.scan(ctx, false)
}

// Run performs auto-browse: repeated cycles with miss counting and
// staleness eviction, until ctx is cancelled. A cycle that collides with a
// manual scan is skipped, not fatal; the next tick retries.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := time.Duration(o.cfg.AutoBrowseMs) * time.Millisecond
	for {
		err := o.scan(ctx, true)
		switch {
		case err == nil:
		case errors.Is(err, ErrScanInProgress):
			o.log.Verbose("auto-browse cycle skipped: manual scan in progress")
		case errors.Is(err, context.Canceled):
		default:
			return err
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) scan(ctx context.Context, autoBrowse bool) error {
	if !o.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer o.scanning.Store(false)

	if autoBrowse {
		o.registry.BumpMisses()
	}

	packet := enip.BuildListIdentity(enip.NextSenderContext())
	if err := o.socket.Broadcast(packet); err != nil {
		return enipcfgerrors.WrapTransportError(err, o.adapter.IP.String(), enip.Port)
	}

	responses := o.socket.Collect(ctx, o.cfg.ScanWindow())
	added, updated := o.reconcile(ctx, responses)

	removed := 0
	if autoBrowse {
		removed = len(o.registry.EvictStale(o.cfg.MissThreshold))
	}

	o.log.LogScanCycle(o.adapter.DisplayName, len(responses), added, updated, removed)
	return ctx.Err()
}

// reconcile folds collected responses into the registry. A malformed
// response is dropped and logged, never fatal to the cycle.
func (o *Orchestrator) reconcile(ctx context.Context, responses []Response) (added, updated int) {
	for _, resp := range responses {
		if resp.Source.IP.Equal(o.adapter.IP) {
			continue // self-echo of our own broadcast
		}

		items, err := enip.ParseListIdentity(resp.Payload)
		if err != nil {
			o.log.Warn("dropping malformed response from %s: %v", resp.Source.IP, err)
			continue
		}

		for _, item := range items {
			candidate := o.buildDevice(ctx, item, resp.Source.IP)
			if o.registry.Upsert(candidate) {
				added++
			} else {
				updated++
			}
		}
	}
	return added, updated
}

// buildDevice turns an identity item into a Device candidate. The source
// endpoint is the ground truth for reachability; the advertised socket
// address is not trusted for it. MAC resolution failure does not block
// insertion.
func (o *Orchestrator) buildDevice(ctx context.Context, item enip.IdentityItem, source net.IP) device.Device {
	d := device.Device{
		IPAddress:        source,
		VendorID:         item.VendorID,
		VendorName:       device.VendorName(item.VendorID),
		DeviceType:       item.DeviceType,
		ProductCode:      item.ProductCode,
		ProductName:      item.ProductName,
		SerialNumber:     item.SerialNumber,
		FirmwareRevision: item.FirmwareRevision(),
	}

	mac, err := o.resolver.Resolve(ctx, source)
	if err != nil {
		o.log.Verbose("MAC unresolved for %s: %v", source, err)
	} else {
		d.MACAddress = mac
	}

	return d
}
