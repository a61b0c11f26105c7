package video

import (
	"encoding/binary"
	"fmt"
)

const wireHeaderSize = 4

// EncodeWire packs a frame as [width:2 LE][height:2 LE][planar data].
func EncodeWire(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	data := make([]byte, wireHeaderSize+len(f.Data))
	binary.LittleEndian.PutUint16(data[0:2], uint16(f.Width))
	binary.LittleEndian.PutUint16(data[2:4], uint16(f.Height))
	copy(data[wireHeaderSize:], f.Data)
	return data, nil
}

// DecodeWire unpacks a wire frame for source. Only the header is checked;
// a payload that does not match the dimensions is left for Pipeline.Submit
// to drop. The planar data is copied so the result does not alias data.
func DecodeWire(source Source, data []byte) (Frame, error) {
	if len(data) < wireHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrWireTooShort, len(data))
	}
	f := Frame{
		Source: source,
		Width:  int(binary.LittleEndian.Uint16(data[0:2])),
		Height: int(binary.LittleEndian.Uint16(data[2:4])),
		Data:   append([]byte(nil), data[wireHeaderSize:]...),
	}
	return f, nil
}
