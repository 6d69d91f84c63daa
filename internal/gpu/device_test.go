//go:build !nogpu

package gpu

import "testing"

func TestNewDevice(t *testing.T) {
	d, err := NewDevice()
	if err != nil {
		t.Logf("gpu: no adapter available in this environment: %v", err)
		return
	}
	defer d.Close()

	if !d.IsInitialized() {
		t.Fatal("expected device to be initialized")
	}
	if d.HAL() == nil {
		t.Fatal("expected non-nil hal.Device")
	}
	if d.Queue() == nil {
		t.Fatal("expected non-nil hal.Queue")
	}
}

func TestDeviceCloseIdempotent(t *testing.T) {
	d, err := NewDevice()
	if err != nil {
		t.Logf("gpu: no adapter available in this environment: %v", err)
		return
	}
	d.Close()
	d.Close() // must not panic
	if d.IsInitialized() {
		t.Fatal("expected device to report uninitialized after Close")
	}
}
