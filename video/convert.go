package video

import (
	"fmt"
	"math"
)

// BT.601 coefficients for normalized [0,1] samples.
const (
	crToR = 1.402
	cbToG = 0.344
	crToG = 0.714
	cbToB = 1.772
)

// YUVToRGB converts one BT.601 sample to RGB.
//
//	R = Y + 1.402·(V−0.5)
//	G = Y − 0.344·(U−0.5) − 0.714·(V−0.5)
//	B = Y + 1.772·(U−0.5)
func YUVToRGB(y, u, v uint8) (r, g, b uint8) {
	yf := float64(y) / 255
	uf := float64(u)/255 - 0.5
	vf := float64(v)/255 - 0.5

	return toByte(yf + crToR*vf),
		toByte(yf - cbToG*uf - crToG*vf),
		toByte(yf + cbToB*uf)
}

func toByte(x float64) uint8 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 255
	default:
		return uint8(math.Round(x * 255))
	}
}

// RGBToYUV420 converts a packed RGB24 image to a planar YUV420 buffer.
// Chroma is sampled from the top-left pixel of each 2x2 block.
func RGBToYUV420(rgb []byte, width, height int) ([]byte, error) {
	return packedToYUV420(rgb, width, height, 3)
}

// RGBAToYUV420 converts a packed RGBA32 image to a planar YUV420 buffer,
// ignoring alpha.
func RGBAToYUV420(rgba []byte, width, height int) ([]byte, error) {
	return packedToYUV420(rgba, width, height, 4)
}

func packedToYUV420(src []byte, width, height, bpp int) ([]byte, error) {
	if width < 1 || height < 1 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(src) != width*height*bpp {
		return nil, fmt.Errorf("%w: %dx%d at %d bytes per pixel needs %d bytes, got %d",
			ErrInvalidFrameSize, width, height, bpp, width*height*bpp, len(src))
	}

	out := make([]byte, ExpectedSize(width, height))
	yPlane := out[:width*height]
	cw, ch := ChromaSize(width, height)
	uPlane := out[width*height : width*height+cw*ch]
	vPlane := out[width*height+cw*ch:]

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := (row*width + col) * bpp
			r, g, b := float64(src[i]), float64(src[i+1]), float64(src[i+2])
			yPlane[row*width+col] = clamp8(0.299*r + 0.587*g + 0.114*b)
		}
	}

	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			i := (row*2*width + col*2) * bpp
			r, g, b := float64(src[i]), float64(src[i+1]), float64(src[i+2])
			uPlane[row*cw+col] = clamp8(-0.169*r - 0.331*g + 0.500*b + 128)
			vPlane[row*cw+col] = clamp8(0.500*r - 0.419*g - 0.081*b + 128)
		}
	}

	return out, nil
}

func clamp8(x float64) uint8 {
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	default:
		return uint8(math.Round(x))
	}
}
