package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine failures so callers can decide how to react without
// string matching.
type Kind int

const (
	KindUnknown        Kind = iota
	KindTransport           // connect/read/write timeout or refusal; never auto-retried
	KindProtocolFormat      // malformed or truncated packet
	KindCIPStatus           // well-formed reply with a non-zero CIP status
	KindPrivilege           // operation needs elevated privileges (BootP port 68)
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Kind    Kind
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, walking the wrap chain.
func KindOf(err error) Kind {
	var ufe UserFriendlyError
	if errors.As(err, &ufe) {
		return ufe.Kind
	}
	return KindUnknown
}

// WrapTransportError wraps connect/read/write failures against a device.
func WrapTransportError(err error, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Kind:    KindTransport,
		Message: fmt.Sprintf("Failed to communicate with device at %s:%d", ip, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Device may not be an EtherNet/IP device, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("enipcfg discover, then verify %s appears in the device list", ip),
		Err:     err,
	}
}

// WrapProtocolError wraps malformed-packet failures.
func WrapProtocolError(err error, context string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Kind:    KindProtocolFormat,
		Message: fmt.Sprintf("Malformed %s packet", context),
		Reason:  err.Error(),
		Hint:    "The peer sent a packet that does not follow the EtherNet/IP encapsulation rules; some device firmware is not fully compliant",
		Err:     err,
	}
}

// WrapCIPStatusError wraps a well-formed reply carrying a non-zero CIP status.
func WrapCIPStatusError(err error, attribute string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Kind:    KindCIPStatus,
		Message: fmt.Sprintf("Device rejected %s write", attribute),
		Reason:  err.Error(),
		Hint:    "The device may be in DHCP mode, write-protected, or may not support this attribute",
		Try:     "Check whether the device requires Configuration Control to be set to static first",
		Err:     err,
	}
}

// WrapPrivilegeError wraps failures caused by missing OS privileges.
func WrapPrivilegeError(err error, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Kind:    KindPrivilege,
		Message: fmt.Sprintf("Cannot bind UDP port %d", port),
		Reason:  "Binding ports below 1024 requires elevated privileges on most operating systems",
		Hint:    "BootP listens on port 68 to hear factory-default devices",
		Try:     "Re-run with sudo (or as Administrator on Windows)",
		Err:     err,
	}
}

// WrapConfigError wraps configuration file errors.
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Config values override the built-in defaults; remove the file to restore them",
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - device may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - device may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or device unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - device closed the connection unexpectedly"
	}

	return errStr
}
