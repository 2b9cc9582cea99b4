package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapTransportError(t *testing.T) {
	base := stderrors.New("dial tcp 192.168.1.10:44818: i/o timeout")
	err := WrapTransportError(base, "192.168.1.10", 44818)

	if KindOf(err) != KindTransport {
		t.Errorf("KindOf = %d, want KindTransport", KindOf(err))
	}
	if !strings.Contains(err.Error(), "Connection timeout") {
		t.Errorf("missing timeout reason: %s", err.Error())
	}
	if !stderrors.Is(err, base) {
		t.Error("wrapped error should unwrap to the base error")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if WrapTransportError(nil, "10.0.0.1", 44818) != nil {
		t.Error("WrapTransportError(nil) should be nil")
	}
	if WrapPrivilegeError(nil, 68) != nil {
		t.Error("WrapPrivilegeError(nil) should be nil")
	}
	if WrapProtocolError(nil, "encapsulation") != nil {
		t.Error("WrapProtocolError(nil) should be nil")
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"privilege", WrapPrivilegeError(stderrors.New("bind: permission denied"), 68), KindPrivilege},
		{"protocol", WrapProtocolError(stderrors.New("packet too short"), "encapsulation"), KindProtocolFormat},
		{"cip", WrapCIPStatusError(stderrors.New("status 0x05"), "IPAddress"), KindCIPStatus},
		{"plain", stderrors.New("anything"), KindUnknown},
		{"wrapped deeper", fmt.Errorf("outer: %w", WrapCIPStatusError(stderrors.New("status 0x05"), "IPAddress")), KindCIPStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExtractNetworkReason(t *testing.T) {
	tests := []struct {
		errStr string
		want   string
	}{
		{"dial tcp: connection refused", "Connection refused"},
		{"read tcp: connection reset by peer", "Connection reset"},
		{"dial tcp: no route to host", "No route to host"},
		{"something else entirely", "something else entirely"},
	}

	for _, tt := range tests {
		got := extractNetworkReason(stderrors.New(tt.errStr))
		if !strings.Contains(got, tt.want) {
			t.Errorf("extractNetworkReason(%q) = %q, want containing %q", tt.errStr, got, tt.want)
		}
	}
}
