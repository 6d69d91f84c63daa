package quant

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quant/internal/gpu"
)

// packRGBA8 renders pixels into a tightly packed RGBA8 byte buffer for
// Texture.Upload.
func packRGBA8(pixels []Pixel) []byte {
	out := make([]byte, len(pixels)*4)
	for i, p := range pixels {
		out[i*4+0] = p.R
		out[i*4+1] = p.G
		out[i*4+2] = p.B
		out[i*4+3] = p.A
	}
	return out
}

// unpackRGBA8 parses a tightly packed RGBA8 byte buffer (as produced by
// Texture.Download) into Pixels.
func unpackRGBA8(raw []byte, n int) []Pixel {
	out := make([]Pixel, n)
	for i := 0; i < n; i++ {
		off := i * 4
		out[i] = Pixel{R: raw[off+0], G: raw[off+1], B: raw[off+2], A: raw[off+3]}
	}
	return out
}

// floatsToPixels converts a tightly packed vec4<f32> buffer (as produced
// by ColorReverter/Resize) into 8-bit pixels, clamping to [0,255] and
// carrying alpha from alpha (nil means fully opaque).
func floatsToPixels(raw []byte, n int, alpha []uint8) []Pixel {
	out := make([]Pixel, n)
	for i := 0; i < n; i++ {
		off := i * 16
		r := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+0:]))
		g := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4:]))
		b := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+8:]))
		a := uint8(255)
		if alpha != nil {
			a = alpha[i]
		}
		out[i] = Pixel{R: clampToByte(r), G: clampToByte(g), B: clampToByte(b), A: a}
	}
	return out
}

func clampToByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}

// uploadImage creates an RGBA8 Texture holding img's pixels, allocated
// through mem so the working set it occupies counts against the budget
// mem enforces.
func uploadImage(device *gpu.Device, mem *gpu.MemoryManager, img *Image) (*gpu.Texture, error) {
	tex, err := mem.AllocTexture(gpu.TextureConfig{
		Width:  uint32(img.Width),
		Height: uint32(img.Height),
		Format: gpu.TextureFormatRGBA8,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		Label:  "input_texture",
	})
	if err != nil {
		return nil, err
	}
	if err := tex.Upload(device.Queue(), packRGBA8(img.Pixels)); err != nil {
		_ = mem.FreeTexture(tex)
		return nil, err
	}
	return tex, nil
}

// shrinkDimensions scales (w, h) down to fit within maxDim on its longer
// side, preserving aspect ratio. Returns (w, h) unchanged when already
// within bounds.
func shrinkDimensions(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

// resizeToTexture runs the Resize kernel from src into a newly allocated
// dstW x dstH texture, round-tripping through a float buffer and the CPU
// since Resize's destination is a storage buffer but ColorConvert's
// source must be a sampleable texture.
func resizeToTexture(device *gpu.Device, mem *gpu.MemoryManager, modules *Modules, src *gpu.Texture, srcW, srcH, dstW, dstH int) (*gpu.Texture, error) {
	if srcW == dstW && srcH == dstH {
		return src, nil
	}

	dstBuf, err := device.HAL().CreateBuffer(&hal.BufferDescriptor{
		Label: "resize_dst",
		Size:  uint64(dstW) * uint64(dstH) * 16,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer device.HAL().DestroyBuffer(dstBuf)

	if err := modules.Resize(src, dstBuf, uint32(srcW), uint32(srcH), uint32(dstW), uint32(dstH)); err != nil {
		return nil, err
	}

	raw, err := modules.disp.ReadBuffer(dstBuf, uint64(dstW)*uint64(dstH)*16)
	if err != nil {
		return nil, err
	}
	pixels := floatsToPixels(raw, dstW*dstH, nil)

	dstTex, err := mem.AllocTexture(gpu.TextureConfig{
		Width:  uint32(dstW),
		Height: uint32(dstH),
		Format: gpu.TextureFormatRGBA8,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		Label:  "resized_texture",
	})
	if err != nil {
		return nil, err
	}
	if err := dstTex.Upload(device.Queue(), packRGBA8(pixels)); err != nil {
		_ = mem.FreeTexture(dstTex)
		return nil, err
	}
	return dstTex, nil
}
