package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pcmFixture = `00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
00-01: ALC892 Digital : ALC892 Digital : playback 1
00-02: ALC892 Alt Analog : ALC892 Alt Analog : capture 1
01-03: HDMI 0 : HDMI 0 : playback 1
garbage line
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSysfsAudioDevices(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, asoundPCMPath, pcmFixture)
	b := NewSysfsBackend(root)

	inputs, err := b.AudioInputs()
	require.NoError(t, err)
	assert.Equal(t, []Descriptor{
		{ID: "hw:0,0", DisplayName: "ALC892 Analog", IsSystemDefault: true},
		{ID: "hw:0,2", DisplayName: "ALC892 Alt Analog"},
	}, inputs)

	outputs, err := b.AudioOutputs()
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, "hw:0,0", outputs[0].ID)
	assert.True(t, outputs[0].IsSystemDefault)
	assert.Equal(t, "hw:1,3", outputs[2].ID)
	assert.Equal(t, "HDMI 0", outputs[2].DisplayName)
	assert.False(t, outputs[2].IsSystemDefault)
}

func TestSysfsAudioWithoutALSA(t *testing.T) {
	b := NewSysfsBackend(t.TempDir())

	inputs, err := b.AudioInputs()
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestSysfsVideoInputsSortedByIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join(video4linuxPath, "video10", "name"), "Capture Card\n")
	writeFile(t, root, filepath.Join(video4linuxPath, "video2", "name"), "Integrated Camera\n")
	writeFile(t, root, filepath.Join(video4linuxPath, "video0", "name"), "USB Camera\n")

	devices, err := NewSysfsBackend(root).VideoInputs()
	require.NoError(t, err)
	assert.Equal(t, []Descriptor{
		{ID: "/dev/video0", DisplayName: "USB Camera", IsSystemDefault: true},
		{ID: "/dev/video2", DisplayName: "Integrated Camera"},
		{ID: "/dev/video10", DisplayName: "Capture Card"},
	}, devices)
}

func TestSysfsVideoCaptureReadiness(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		want  Readiness
	}{
		{
			name: "capture node present",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, filepath.Join(video4linuxPath, "video0", "name"), "cam")
			},
			want: ReadinessReady,
		},
		{
			name:  "nothing attached",
			setup: func(t *testing.T, root string) {},
			want:  ReadinessNoDevice,
		},
		{
			name: "non video usb device",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, filepath.Join(usbDevicesPath, "1-1:1.0", "bInterfaceClass"), "03\n")
			},
			want: ReadinessNoDevice,
		},
		{
			name: "uvc interface without driver",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, filepath.Join(usbDevicesPath, "1-2:1.0", "bInterfaceClass"), "0e\n")
				writeFile(t, root, modulesPath, "snd_hda_intel 57344 3 - Live 0x0000000000000000\n")
			},
			want: ReadinessDriverNotLoaded,
		},
		{
			name: "uvc interface with driver loaded",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, filepath.Join(usbDevicesPath, "1-2:1.0", "bInterfaceClass"), "0e\n")
				writeFile(t, root, modulesPath, "uvcvideo 139264 0 - Live 0x0000000000000000\n")
			},
			want: ReadinessNoDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			got, err := NewSysfsBackend(root).VideoCaptureReadiness()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadinessRemediationDiffers(t *testing.T) {
	assert.Empty(t, ReadinessReady.Remediation())
	assert.NotEmpty(t, ReadinessNoDevice.Remediation())
	assert.Contains(t, ReadinessDriverNotLoaded.Remediation(), "modprobe")
	assert.NotEqual(t, ReadinessNoDevice.Remediation(), ReadinessDriverNotLoaded.Remediation())
	assert.Equal(t, "driver_not_loaded", ReadinessDriverNotLoaded.String())
}
