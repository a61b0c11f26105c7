package video

import (
	"fmt"
	"strconv"
)

// MaxDimension bounds frame width and height.
const MaxDimension = 8192

// Source identifies the stream a frame belongs to.
type Source struct {
	Local  bool
	PeerID uint32
}

// LocalSource returns the source of the local capture preview.
func LocalSource() Source { return Source{Local: true} }

// RemoteSource returns the source of a remote peer's stream.
func RemoteSource(peerID uint32) Source { return Source{PeerID: peerID} }

// String returns "local" or "peer:<id>".
func (s Source) String() string {
	if s.Local {
		return "local"
	}
	return "peer:" + strconv.FormatUint(uint64(s.PeerID), 10)
}

// Frame is a planar YUV420 video frame.
type Frame struct {
	Source Source
	Width  int
	Height int
	// Data holds the Y plane followed by the U and V planes.
	Data []byte
}

// ChromaSize returns the dimensions of each chroma plane for a frame of
// the given size.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// ExpectedSize returns the planar buffer length for a width x height frame.
func ExpectedSize(width, height int) int {
	cw, ch := ChromaSize(width, height)
	return width*height + 2*cw*ch
}

// Validate checks the frame dimensions and buffer length.
func (f Frame) Validate() error {
	if f.Width < 2 || f.Height < 2 || f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, f.Width, f.Height)
	}
	if want := ExpectedSize(f.Width, f.Height); len(f.Data) != want {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrInvalidFrameSize, f.Width, f.Height, want, len(f.Data))
	}
	return nil
}

// Planes splits Data into its Y, U and V ranges. The frame must be valid.
func (f Frame) Planes() (y, u, v []byte) {
	ySize := f.Width * f.Height
	cw, ch := ChromaSize(f.Width, f.Height)
	cSize := cw * ch
	return f.Data[:ySize], f.Data[ySize : ySize+cSize], f.Data[ySize+cSize : ySize+2*cSize]
}
