//go:build !nogpu

package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func testDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice()
	if err != nil {
		t.Skipf("gpu: no adapter available in this environment: %v", err)
	}
	return d
}

func TestMemoryManagerAllocAndFree(t *testing.T) {
	d := testDevice(t)
	defer d.Close()

	mgr := NewMemoryManager(d, MemoryManagerConfig{MaxMemoryMB: MinMemoryMB})
	defer mgr.Close()

	tex, err := mgr.AllocTexture(TextureConfig{
		Width: 64, Height: 64,
		Format: TextureFormatRGBA8,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		Label:  "test-texture",
	})
	if err != nil {
		t.Fatalf("AllocTexture: %v", err)
	}

	stats := mgr.Stats()
	if stats.TextureCount != 1 {
		t.Fatalf("expected 1 tracked texture, got %d", stats.TextureCount)
	}
	if !mgr.Contains(tex) {
		t.Fatal("expected manager to contain allocated texture")
	}

	if err := mgr.FreeTexture(tex); err != nil {
		t.Fatalf("FreeTexture: %v", err)
	}
	if mgr.Contains(tex) {
		t.Fatal("expected texture to be untracked after free")
	}
}

func TestMemoryManagerEvictsLRU(t *testing.T) {
	d := testDevice(t)
	defer d.Close()

	// Budget of MinMemoryMB (16 MB) holds 1024 64x64 RGBA8 textures (16384
	// bytes each), so the 1025th allocation forces eviction of the first.
	mgr := NewMemoryManager(d, MemoryManagerConfig{MaxMemoryMB: MinMemoryMB})
	defer mgr.Close()

	cfg := TextureConfig{
		Width: 64, Height: 64,
		Format: TextureFormatRGBA8,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}

	first, err := mgr.AllocTexture(cfg)
	if err != nil {
		t.Fatalf("first AllocTexture: %v", err)
	}

	// Allocate until eviction has occurred at least once.
	for i := 0; i < 4096; i++ {
		if _, err := mgr.AllocTexture(cfg); err != nil {
			t.Fatalf("AllocTexture[%d]: %v", i, err)
		}
		if mgr.Stats().EvictionCount > 0 {
			break
		}
	}

	if mgr.Stats().EvictionCount == 0 {
		t.Fatal("expected at least one eviction under budget pressure")
	}
	if mgr.Contains(first) {
		t.Fatal("expected least-recently-used texture to have been evicted")
	}
}

func TestMemoryManagerRejectsOversizedAllocation(t *testing.T) {
	d := testDevice(t)
	defer d.Close()

	mgr := NewMemoryManager(d, MemoryManagerConfig{MaxMemoryMB: MinMemoryMB})
	defer mgr.Close()

	_, err := mgr.AllocTexture(TextureConfig{
		Width: 1 << 16, Height: 1 << 16,
		Format: TextureFormatRGBA32Float,
		Usage:  gputypes.TextureUsageTextureBinding,
	})
	if err == nil {
		t.Fatal("expected oversized allocation to fail")
	}
}

func TestMemoryManagerClosedRejectsOperations(t *testing.T) {
	d := testDevice(t)
	defer d.Close()

	mgr := NewMemoryManager(d, MemoryManagerConfig{MaxMemoryMB: MinMemoryMB})
	mgr.Close()
	mgr.Close() // idempotent

	_, err := mgr.AllocTexture(TextureConfig{
		Width: 4, Height: 4,
		Format: TextureFormatRGBA8,
		Usage:  gputypes.TextureUsageTextureBinding,
	})
	if err == nil {
		t.Fatal("expected AllocTexture on closed manager to fail")
	}
}
