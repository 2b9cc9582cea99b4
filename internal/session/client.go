// Package session implements explicit-messaging sessions over TCP:
// RegisterSession, SendRRData exchanges, UnregisterSession. Discovery is
// sessionless and lives elsewhere; everything that writes to a device goes
// through a Client from this package.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	uferrors "github.com/tturner/enipcfg/internal/errors"

	"github.com/tturner/enipcfg/internal/enip"
	"github.com/tturner/enipcfg/internal/logging"
)

// Client is one registered session on one TCP connection. It is not safe for
// concurrent use; the protocol is strictly request/reply.
type Client struct {
	conn    net.Conn
	handle  uint32
	timeout time.Duration // per request/reply exchange
	target  string
	log     *logging.Logger
}

// Connect dials addr (host:port), registers a session and returns a ready
// client. The caller must Close the client; Close unregisters best-effort
// before dropping the connection.
func Connect(ctx context.Context, addr string, connectTimeout, exchangeTimeout time.Duration, log *logging.Logger) (*Client, error) {
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		host, port := splitTarget(addr)
		return nil, uferrors.WrapTransportError(fmt.Errorf("connect: %w", err), host, port)
	}

	c := &Client{
		conn:    conn,
		timeout: exchangeTimeout,
		target:  addr,
		log:     log,
	}

	if err := c.register(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Handle returns the session handle assigned by the device.
func (c *Client) Handle() uint32 {
	return c.handle
}

// register performs the RegisterSession exchange. The device assigns the
// handle; a zero handle or a non-zero encapsulation status is a failure.
func (c *Client) register() error {
	senderContext := enip.NextSenderContext()
	header, _, err := c.exchange(enip.BuildRegisterSession(senderContext), senderContext)
	if err != nil {
		return err
	}

	if header.Command != enip.CommandRegisterSession {
		return uferrors.WrapProtocolError(
			fmt.Errorf("reply command 0x%04X, want RegisterSession", header.Command), c.target)
	}
	if header.Status != enip.StatusSuccess {
		return uferrors.WrapProtocolError(
			fmt.Errorf("RegisterSession rejected with status 0x%08X", header.Status), c.target)
	}
	if header.SessionHandle == 0 {
		return uferrors.WrapProtocolError(
			fmt.Errorf("RegisterSession returned a zero session handle"), c.target)
	}

	c.handle = header.SessionHandle
	c.log.Verbose("session registered with %s, handle 0x%08X", c.target, c.handle)
	return nil
}

// SendRRData sends a CIP payload as an unconnected message and returns the
// CIP payload of the reply.
func (c *Client) SendRRData(ctx context.Context, cipData []byte) ([]byte, error) {
	if c.handle == 0 {
		return nil, fmt.Errorf("session not registered")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	senderContext := enip.NextSenderContext()
	header, payload, err := c.exchange(enip.BuildSendRRData(c.handle, senderContext, cipData), senderContext)
	if err != nil {
		return nil, err
	}

	if header.Command != enip.CommandSendRRData {
		return nil, uferrors.WrapProtocolError(
			fmt.Errorf("reply command 0x%04X, want SendRRData", header.Command), c.target)
	}
	if header.Status != enip.StatusSuccess {
		return nil, uferrors.WrapProtocolError(
			fmt.Errorf("SendRRData rejected with status 0x%08X", header.Status), c.target)
	}

	reply, err := enip.UnwrapSendRRData(payload)
	if err != nil {
		return nil, uferrors.WrapProtocolError(err, c.target)
	}
	return reply, nil
}

// Close unregisters the session (best-effort, no reply expected) and closes
// the connection.
func (c *Client) Close() error {
	if c.handle != 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
		if _, err := c.conn.Write(enip.BuildUnregisterSession(c.handle, enip.NextSenderContext())); err != nil {
			c.log.Debug("unregister session on %s: %v", c.target, err)
		}
		c.handle = 0
	}
	return c.conn.Close()
}

// exchange writes one packet and reads one framed reply. A sender context
// mismatch in the reply is logged but not treated as an error; some stacks
// do not echo the context.
func (c *Client) exchange(packet []byte, senderContext [8]byte) (enip.Header, []byte, error) {
	deadline := time.Now().Add(c.timeout)

	c.conn.SetWriteDeadline(deadline)
	c.log.LogHex("send", packet)
	if _, err := c.conn.Write(packet); err != nil {
		host, port := splitTarget(c.target)
		return enip.Header{}, nil, uferrors.WrapTransportError(fmt.Errorf("write: %w", err), host, port)
	}

	c.conn.SetReadDeadline(deadline)
	header, payload, err := c.readPacket()
	if err != nil {
		return enip.Header{}, nil, err
	}
	c.log.LogHex("recv", payload)

	if !bytes.Equal(header.SenderContext[:], senderContext[:]) {
		c.log.Warn("sender context mismatch in reply from %s (sent %X, got %X)",
			c.target, senderContext, header.SenderContext)
	}
	return header, payload, nil
}

// readPacket reads one encapsulated packet: the fixed 24-byte header first,
// then exactly Length more bytes.
func (c *Client) readPacket() (enip.Header, []byte, error) {
	raw := make([]byte, enip.HeaderSize)
	if _, err := io.ReadFull(c.conn, raw); err != nil {
		host, port := splitTarget(c.target)
		return enip.Header{}, nil, uferrors.WrapTransportError(fmt.Errorf("read header: %w", err), host, port)
	}

	header, _, err := enip.Decode(raw)
	if err != nil {
		return enip.Header{}, nil, uferrors.WrapProtocolError(err, c.target)
	}

	var payload []byte
	if header.Length > 0 {
		payload = make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			host, port := splitTarget(c.target)
			return enip.Header{}, nil, uferrors.WrapTransportError(fmt.Errorf("read payload: %w", err), host, port)
		}
	}
	return header, payload, nil
}

func splitTarget(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, enip.Port
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = enip.Port
	}
	return host, port
}
