package video

import (
	"image"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKeepsOnePipelinePerSource(t *testing.T) {
	r := NewRegistry(nil)

	local := r.Get(LocalSource())
	assert.Same(t, local, r.Get(LocalSource()))
	remote := r.Get(RemoteSource(7))
	assert.NotSame(t, local, remote)

	r.Get(RemoteSource(2))
	assert.Equal(t, []Source{LocalSource(), RemoteSource(2), RemoteSource(7)}, r.Sources())

	_, ok := r.Lookup(RemoteSource(99))
	assert.False(t, ok)
}

func TestRegistryRemoveReleasesSurface(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRegistry(m)

	p := r.Get(RemoteSource(7))
	require.True(t, p.Submit(solidFrame(RemoteSource(7), 4, 2, 1, 2, 3)).Rendered)

	r.Remove(RemoteSource(7))
	_, ok := r.Lookup(RemoteSource(7))
	assert.False(t, ok)
	assert.False(t, p.HasRendered())
	assert.Nil(t, p.Image())

	n, err := testutil.GatherAndCount(reg, "toxcall_video_frames_rendered_total")
	require.NoError(t, err)
	assert.Zero(t, n)

	r.Remove(RemoteSource(7))
}

func TestRegistryInstallsFrameCallback(t *testing.T) {
	r := NewRegistry(nil)
	var seen []Source
	r.OnFrame(func(s Source, _ *image.RGBA) { seen = append(seen, s) })

	r.Get(LocalSource()).Submit(solidFrame(LocalSource(), 2, 2, 1, 2, 3))
	r.Get(RemoteSource(1)).Submit(solidFrame(RemoteSource(1), 2, 2, 1, 2, 3))

	assert.Equal(t, []Source{LocalSource(), RemoteSource(1)}, seen)
}

func TestWireRoundTrip(t *testing.T) {
	f := solidFrame(RemoteSource(5), 4, 2, 10, 20, 30)

	data, err := EncodeWire(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 0, 2, 0}, data[:4])

	got, err := DecodeWire(RemoteSource(5), data)
	require.NoError(t, err)
	assert.Equal(t, f, got)

	data[wireHeaderSize] = 99
	assert.Equal(t, byte(10), got.Data[0], "decoded frame must not alias the input")
}

func TestDecodeWireErrors(t *testing.T) {
	_, err := DecodeWire(LocalSource(), []byte{1, 2})
	assert.ErrorIs(t, err, ErrWireTooShort)

	short, err := DecodeWire(LocalSource(), []byte{4, 0, 2, 0, 1, 2, 3})
	require.NoError(t, err, "payload size is checked when the frame is submitted")
	assert.Equal(t, 4, short.Width)
	assert.ErrorIs(t, short.Validate(), ErrInvalidFrameSize)

	_, err = EncodeWire(Frame{Width: 4, Height: 2, Data: make([]byte, 11)})
	assert.ErrorIs(t, err, ErrInvalidFrameSize)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "local", LocalSource().String())
	assert.Equal(t, "peer:42", RemoteSource(42).String())
}
