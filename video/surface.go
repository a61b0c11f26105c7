package video

import (
	"image"
)

// Surface is the render target of one Pipeline. It holds three
// single-channel plane backings and the RGBA image they are composited
// into, all sized to the last frame seen.
type Surface struct {
	width  int
	height int

	y *image.Gray
	u *image.Gray
	v *image.Gray

	target *image.RGBA

	allocations int
}

// ensure sizes the backings for a width x height frame and reports whether
// they had to be reallocated.
func (s *Surface) ensure(width, height int) bool {
	if s.target != nil && s.width == width && s.height == height {
		return false
	}
	cw, ch := ChromaSize(width, height)
	s.y = image.NewGray(image.Rect(0, 0, width, height))
	s.u = image.NewGray(image.Rect(0, 0, cw, ch))
	s.v = image.NewGray(image.Rect(0, 0, cw, ch))
	s.target = image.NewRGBA(image.Rect(0, 0, width, height))
	s.width, s.height = width, height
	s.allocations++
	return true
}

// upload copies the plane byte ranges into their backings.
func (s *Surface) upload(y, u, v []byte) {
	copy(s.y.Pix, y)
	copy(s.u.Pix, u)
	copy(s.v.Pix, v)
}

// draw composites the planes into the RGBA target. Every output pixel
// samples chroma at (x/2, y/2).
func (s *Surface) draw() {
	cw := s.u.Stride
	for row := 0; row < s.height; row++ {
		yRow := s.y.Pix[row*s.y.Stride : row*s.y.Stride+s.width]
		cRow := (row / 2) * cw
		out := s.target.Pix[row*s.target.Stride : row*s.target.Stride+s.width*4]
		for col, yv := range yRow {
			ci := cRow + col/2
			r, g, b := YUVToRGB(yv, s.u.Pix[ci], s.v.Pix[ci])
			o := col * 4
			out[o] = r
			out[o+1] = g
			out[o+2] = b
			out[o+3] = 0xff
		}
	}
}

// release drops every backing.
func (s *Surface) release() {
	s.y, s.u, s.v, s.target = nil, nil, nil, nil
	s.width, s.height = 0, 0
}

// Size returns the current surface dimensions.
func (s *Surface) Size() (int, int) { return s.width, s.height }

// Allocations returns how many times the backings were (re)allocated.
func (s *Surface) Allocations() int { return s.allocations }
