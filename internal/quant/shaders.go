package quant

import _ "embed"

//go:embed shaders/color_convert.wgsl
var colorConvertWGSL string

//go:embed shaders/resize.wgsl
var resizeWGSL string

//go:embed shaders/plusplus_init.wgsl
var plusPlusInitWGSL string

//go:embed shaders/find_centroid.wgsl
var findCentroidWGSL string

//go:embed shaders/choose_centroid.wgsl
var chooseCentroidWGSL string

//go:embed shaders/swap.wgsl
var swapWGSL string

//go:embed shaders/mix_colors.wgsl
var mixColorsWGSL string
