package bootp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tturner/enipcfg/internal/cip"
	"github.com/tturner/enipcfg/internal/config"
	"github.com/tturner/enipcfg/internal/enip"
	uferrors "github.com/tturner/enipcfg/internal/errors"
	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/netdetect"
	"github.com/tturner/enipcfg/internal/session"
)

// Decision resolves a pending request. Ignore leaves the device untouched;
// accept assigns the address and optionally switches the device to static
// addressing afterwards.
type Decision struct {
	Accept      bool
	Assignment  Assignment
	DisableDHCP bool
}

// Result reports what happened to an accepted request. DisableDHCP failure
// never invalidates the address assignment itself; it is carried alongside.
type Result struct {
	ReplySent      bool
	AssignedIP     net.IP
	DHCPDisabled   bool
	DisableFailure string
}

// Server listens for BOOTREQUEST broadcasts and queues them for the caller
// to accept or ignore. The listener keeps receiving while decisions are
// pending; repeat requests from a MAC already in the queue are dropped.
type Server struct {
	adapter netdetect.Adapter
	cfg     config.BootPConfig
	writer  *session.Writer
	log     *logging.Logger

	listenAddr string
	replyPort  int
	cipPort    int

	conn     *net.UDPConn
	requests chan Request

	mu      sync.Mutex
	pending map[string]struct{} // MACs queued or awaiting a decision
	closed  bool
}

// NewServer builds a server for the given adapter. Call Listen to bind and
// start receiving.
func NewServer(adapter netdetect.Adapter, cfg config.BootPConfig, writer *session.Writer, log *logging.Logger) *Server {
	return &Server{
		adapter:    adapter,
		cfg:        cfg,
		writer:     writer,
		log:        log,
		listenAddr: fmt.Sprintf(":%d", ListenPort),
		replyPort:  ReplyPort,
		cipPort:    enip.Port,
		requests:   make(chan Request, cfg.PendingQueue),
		pending:    make(map[string]struct{}),
	}
}

// Listen binds the request port and starts the receive loop. Binding this
// port needs elevated privileges on most systems; a permission failure is
// surfaced as a distinct privilege error.
func (s *Server) Listen() error {
	addr, err := net.ResolveUDPAddr("udp4", s.listenAddr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return uferrors.WrapPrivilegeError(err, addr.Port)
		}
		return uferrors.WrapTransportError(err, "", addr.Port)
	}

	s.conn = conn
	s.log.Info("BootP listener started on %s", conn.LocalAddr())
	go s.receiveLoop()
	return nil
}

// Requests returns the queue of pending requests awaiting a decision.
func (s *Server) Requests() <-chan Request {
	return s.requests
}

// Close stops the listener. Pending requests still queued are abandoned.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Server) receiveLoop() {
	buf := make([]byte, 1500)
	for {
		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.Error("BootP receive: %v", err)
			}
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.processDatagram(data, src)
	}
}

// processDatagram parses one datagram and queues it unless the MAC already
// has a request pending or the queue is full.
func (s *Server) processDatagram(data []byte, src *net.UDPAddr) {
	req, err := ParseRequest(data, src)
	if err != nil {
		s.log.Warn("dropping malformed BootP packet from %s: %v", src, err)
		return
	}

	mac := req.ClientMAC.String()

	s.mu.Lock()
	if _, dup := s.pending[mac]; dup {
		s.mu.Unlock()
		s.log.Debug("BootP request from %s already pending, dropped", mac)
		return
	}
	s.pending[mac] = struct{}{}
	s.mu.Unlock()

	select {
	case s.requests <- req:
		s.log.Info("BootP request from %s (xid 0x%08X) queued", mac, req.XID)
	default:
		s.mu.Lock()
		delete(s.pending, mac)
		s.mu.Unlock()
		s.log.Warn("BootP request queue full, dropped request from %s", mac)
	}
}

// Resolve applies the caller's decision to a queued request. On accept it
// sends the BOOTREPLY, waits the settle delay, and when asked switches the
// device's Configuration Control to static over a fresh session at the new
// address. That follow-up failing is recorded in the result, not returned
// as an error: the address assignment already happened on the wire.
func (s *Server) Resolve(ctx context.Context, req Request, decision Decision) (Result, error) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ClientMAC.String())
		s.mu.Unlock()
	}()

	if !decision.Accept {
		s.log.Info("BootP request from %s ignored", req.ClientMAC)
		return Result{}, nil
	}

	reply, err := BuildReply(req, decision.Assignment, s.adapter.IP)
	if err != nil {
		return Result{}, err
	}

	dest := &net.UDPAddr{IP: decision.Assignment.IP, Port: s.replyPort}
	if req.WantsBroadcast() {
		dest.IP = net.IPv4bcast
	}
	if _, err := s.conn.WriteToUDP(reply, dest); err != nil {
		return Result{}, uferrors.WrapTransportError(err, dest.IP.String(), dest.Port)
	}

	result := Result{ReplySent: true, AssignedIP: decision.Assignment.IP}
	s.log.Info("BOOTREPLY sent to %s: %s assigned to %s", dest, decision.Assignment.IP, req.ClientMAC)

	if !decision.DisableDHCP {
		return result, nil
	}

	select {
	case <-time.After(s.cfg.Settle()):
	case <-ctx.Done():
		result.DisableFailure = ctx.Err().Error()
		return result, nil
	}

	addr := net.JoinHostPort(decision.Assignment.IP.String(), fmt.Sprintf("%d", s.cipPort))
	res, err := s.writer.WriteAttribute(ctx, addr, cip.AttrConfigControl, cip.EncodeConfigControl(0))
	switch {
	case err != nil:
		result.DisableFailure = err.Error()
	case !res.Success:
		result.DisableFailure = res.ErrorMessage
	default:
		result.DHCPDisabled = true
	}
	if result.DisableFailure != "" {
		s.log.Warn("switching %s to static addressing failed: %s", decision.Assignment.IP, result.DisableFailure)
	}
	return result, nil
}
