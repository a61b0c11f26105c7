// Package bridge funnels backend call signaling and video frames into the
// call controller and the video pipelines.
//
// Every inbound message is decoded into one Event variant and dispatched by
// an exhaustive type switch. Signaling events are applied by a single
// goroutine in arrival order. Video frames are routed to one ordered worker
// per frame source, so the local preview and each remote stream render
// concurrently without ever reordering frames within a stream.
//
// # Deduplication
//
// An Envelope may carry a per-stream sequence number. Envelopes whose
// sequence is not greater than the last one seen on the same stream are
// dropped. A zero sequence disables the check.
//
// # Sources
//
// WebSocketSource reads a backend event socket: text messages are JSON
// signaling envelopes
//
//	{"op":"incoming_call","d":{"friend_number":7,"audio_enabled":true},"seq":12}
//
// and binary messages are CBOR frame envelopes carrying the compact frame
// wire format of package video. ChanSource feeds envelopes from a channel.
//
// # Load shedding
//
// Frame queues are bounded. When a source's worker falls behind, new frames
// for that source are dropped rather than queued, since a late frame is
// worthless to a live view. Signaling is never shed.
package bridge
