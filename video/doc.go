// Package video converts planar YUV420 frames into displayable RGB images.
//
// Each video stream (the local capture preview and every remote peer) owns
// one Pipeline. A Pipeline validates incoming frames, uploads the Y, U and V
// planes into single-channel backings held by its Surface, and draws the
// full surface with a BT.601 color conversion:
//
//	Frame (Y|U|V bytes) → Validate → Surface.ensure(w,h) → upload → draw → *image.RGBA
//
// The Surface reallocates its plane backings only when the frame
// dimensions change between consecutive frames.
//
// # Frames
//
// A Frame carries one contiguous buffer: the Y plane (width*height bytes)
// followed by the U and V planes (ceil(width/2)*ceil(height/2) bytes each).
// A buffer of any other length is rejected for that frame only:
//
//	p := video.NewPipeline(video.RemoteSource(peerID), metrics)
//	res := p.Submit(frame)
//	if res.Err != nil {
//	    // frame dropped, the stream continues
//	}
//
// # Registry
//
// Registry keeps one Pipeline per Source. Pipelines never share surfaces,
// so the local and remote streams may be rendered concurrently.
//
// # Wire Format
//
// EncodeWire and DecodeWire implement the compact frame format
// [width:2 LE][height:2 LE][Y][U][V] used by binary frame envelopes.
package video
