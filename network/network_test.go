package network

import (
	"context"
	"errors"
	"testing"
)

func TestNewManagerKeysHostDevByID(t *testing.T) {
	m := NewManager("abcd1234")
	if m.hostDev != "veth-abcd1234" {
		t.Errorf("hostDev = %q, want %q", m.hostDev, "veth-abcd1234")
	}
}

func TestCloseNoopWhenNeverUp(t *testing.T) {
	m := NewManager("neverup")
	// Should not attempt to run "ip link delete" (and thus not panic or
	// hang) when Setup was never called.
	m.Close(context.Background())
}

func TestSetupFailureWrapsErrNetwork(t *testing.T) {
	// Setup runs the host's real ip/nsenter tools. Where they are missing or
	// a step fails (no privileges, device already present, ...), the error
	// must come back wrapped in *ErrNetwork so callers can warn-and-continue.
	m := NewManager("failcase")
	m.hostDev = "veth-failcase"

	err := m.Setup(context.Background(), 1)
	if err == nil {
		t.Skip("environment has a working ip/nsenter toolchain; nothing to assert")
	}

	var netErr *ErrNetwork
	if !errors.As(err, &netErr) {
		t.Errorf("error is not *ErrNetwork: %v (%T)", err, err)
	}
}
