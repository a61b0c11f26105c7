package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYUVToRGB(t *testing.T) {
	tests := []struct {
		name    string
		y, u, v uint8
		r, g, b uint8
	}{
		{"white", 255, 128, 128, 255, 255, 255},
		{"black", 0, 128, 128, 0, 0, 0},
		{"mid gray", 128, 128, 128, 128, 128, 128},
		{"red", 76, 85, 255, 255, 0, 0},
		{"green", 150, 44, 21, 0, 255, 0},
		{"blue", 29, 255, 107, 0, 0, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := YUVToRGB(tt.y, tt.u, tt.v)
			assert.InDelta(t, int(tt.r), int(r), 3)
			assert.InDelta(t, int(tt.g), int(g), 3)
			assert.InDelta(t, int(tt.b), int(b), 3)
		})
	}
}

func TestYUVToRGBClamps(t *testing.T) {
	r, g, b := YUVToRGB(255, 255, 255)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(255), b)
	assert.LessOrEqual(t, g, uint8(255))

	r, _, b = YUVToRGB(0, 0, 0)
	assert.Equal(t, uint8(0), r)
	assert.Equal(t, uint8(0), b)
}

func TestRGBToYUV420(t *testing.T) {
	const w, h = 4, 4
	white := make([]byte, w*h*3)
	for i := range white {
		white[i] = 255
	}

	data, err := RGBToYUV420(white, w, h)
	require.NoError(t, err)
	require.Len(t, data, ExpectedSize(w, h))

	f := Frame{Width: w, Height: h, Data: data}
	require.NoError(t, f.Validate())
	y, u, v := f.Planes()
	for _, b := range y {
		assert.Equal(t, uint8(255), b)
	}
	for i := range u {
		assert.InDelta(t, 128, int(u[i]), 1)
		assert.InDelta(t, 128, int(v[i]), 1)
	}

	black := make([]byte, w*h*4)
	data, err = RGBAToYUV420(black, w, h)
	require.NoError(t, err)
	y, u, v = Frame{Width: w, Height: h, Data: data}.Planes()
	assert.Equal(t, uint8(0), y[0])
	assert.Equal(t, uint8(128), u[0])
	assert.Equal(t, uint8(128), v[0])
}

func TestRGBToYUV420RoundTrip(t *testing.T) {
	// A 2x2 orange image survives conversion to YUV420 and back.
	rgb := []byte{
		230, 120, 30, 230, 120, 30,
		230, 120, 30, 230, 120, 30,
	}
	data, err := RGBToYUV420(rgb, 2, 2)
	require.NoError(t, err)

	p := NewPipeline(LocalSource(), nil)
	require.True(t, p.Submit(Frame{Source: LocalSource(), Width: 2, Height: 2, Data: data}).Rendered)

	px := p.Image().RGBAAt(1, 1)
	assert.InDelta(t, 230, int(px.R), 4)
	assert.InDelta(t, 120, int(px.G), 4)
	assert.InDelta(t, 30, int(px.B), 4)
}

func TestRGBToYUV420RejectsBadInput(t *testing.T) {
	_, err := RGBToYUV420(make([]byte, 10), 2, 2)
	assert.ErrorIs(t, err, ErrInvalidFrameSize)

	_, err = RGBAToYUV420(nil, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestOddDimensionsConvert(t *testing.T) {
	rgb := make([]byte, 3*3*3)
	data, err := RGBToYUV420(rgb, 3, 3)
	require.NoError(t, err)
	assert.Len(t, data, ExpectedSize(3, 3))
}
