package wgpugfx

import (
	// Per-OS hardware backends and the software renderer.
	_ "github.com/gogpu/wgpu/hal/allbackends"

	// allbackends leaves Vulkan out on Android.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)
