//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// PreferNativeSPIRV selects how WGSL shader modules are built: by default
// (false) the WGSL source is handed to the backend's own compiler via
// hal.ShaderSource.WGSL. Set to true when running against the pure-Go
// native Vulkan backend, which has no built-in WGSL front end and needs
// SPIR-V compiled ahead of time.
var PreferNativeSPIRV = false

// compileToSPIRV compiles WGSL source to a SPIR-V word stream. naga.Compile
// returns little-endian SPIR-V bytes, regrouped here into the uint32 words
// hal.ShaderSource.SPIRV wants.
func compileToSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile WGSL to SPIR-V: %w", err)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// newShaderModule builds a shader module from WGSL source using whichever
// front end PreferNativeSPIRV selects.
func newShaderModule(device hal.Device, label, wgsl string) (hal.ShaderModule, error) {
	if PreferNativeSPIRV {
		spirv, err := compileToSPIRV(wgsl)
		if err != nil {
			return nil, err
		}
		return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  label,
			Source: hal.ShaderSource{SPIRV: spirv},
		})
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: wgsl},
	})
}
