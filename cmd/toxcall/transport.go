package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

// dryRunTransport logs call and device commands instead of sending them.
type dryRunTransport struct{}

func (dryRunTransport) log(op string, fields logrus.Fields) error {
	fields["function"] = op
	logrus.WithFields(fields).Info("Dry-run transport request")
	return nil
}

func (t dryRunTransport) PlaceCall(_ context.Context, peerID uint32, withVideo bool) error {
	return t.log("PlaceCall", logrus.Fields{"peer_id": peerID, "with_video": withVideo})
}

func (t dryRunTransport) Answer(_ context.Context, peerID uint32, withVideo bool) error {
	return t.log("Answer", logrus.Fields{"peer_id": peerID, "with_video": withVideo})
}

func (t dryRunTransport) Hangup(_ context.Context, peerID uint32) error {
	return t.log("Hangup", logrus.Fields{"peer_id": peerID})
}

func (t dryRunTransport) SetMuted(_ context.Context, peerID uint32, muted bool) error {
	return t.log("SetMuted", logrus.Fields{"peer_id": peerID, "muted": muted})
}

func (t dryRunTransport) SetVideoEnabled(_ context.Context, peerID uint32, enabled bool) error {
	return t.log("SetVideoEnabled", logrus.Fields{"peer_id": peerID, "enabled": enabled})
}

func (t dryRunTransport) SetAudioInput(_ context.Context, id string) error {
	return t.log("SetAudioInput", logrus.Fields{"device_id": id})
}

func (t dryRunTransport) SetAudioOutput(_ context.Context, id string) error {
	return t.log("SetAudioOutput", logrus.Fields{"device_id": id})
}

func (t dryRunTransport) SetVideoInput(_ context.Context, id string) error {
	return t.log("SetVideoInput", logrus.Fields{"device_id": id})
}
