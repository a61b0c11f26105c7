package device

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	asoundPCMPath   = "proc/asound/pcm"
	modulesPath     = "proc/modules"
	video4linuxPath = "sys/class/video4linux"
	usbDevicesPath  = "sys/bus/usb/devices"

	// usbVideoClass is the USB interface class of UVC cameras.
	usbVideoClass = "0e"
	uvcModule     = "uvcvideo"
)

// SysfsBackend enumerates Linux devices from procfs and sysfs.
type SysfsBackend struct {
	// Root is prefixed to every path read. Defaults to "/".
	Root string
}

// NewSysfsBackend returns a backend reading below root.
func NewSysfsBackend(root string) *SysfsBackend {
	if root == "" {
		root = "/"
	}
	return &SysfsBackend{Root: root}
}

func (b *SysfsBackend) path(rel string) string {
	root := b.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

// AudioInputs lists ALSA PCM devices with a capture stream.
func (b *SysfsBackend) AudioInputs() ([]Descriptor, error) {
	return b.pcmDevices("capture")
}

// AudioOutputs lists ALSA PCM devices with a playback stream.
func (b *SysfsBackend) AudioOutputs() ([]Descriptor, error) {
	return b.pcmDevices("playback")
}

// pcmDevices parses /proc/asound/pcm, whose lines look like
//
//	00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
//
// The first matching entry is the system default.
func (b *SysfsBackend) pcmDevices(stream string) ([]Descriptor, error) {
	data, err := os.ReadFile(b.path(asoundPCMPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var devices []Descriptor
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		d, streams, ok := parsePCMLine(scanner.Text())
		if !ok || !streams[stream] {
			continue
		}
		d.IsSystemDefault = len(devices) == 0
		devices = append(devices, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

func parsePCMLine(line string) (Descriptor, map[string]bool, bool) {
	head, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Descriptor{}, nil, false
	}
	card, dev, ok := strings.Cut(strings.TrimSpace(head), "-")
	if !ok {
		return Descriptor{}, nil, false
	}
	cardN, err1 := strconv.Atoi(card)
	devN, err2 := strconv.Atoi(dev)
	if err1 != nil || err2 != nil {
		return Descriptor{}, nil, false
	}

	fields := strings.Split(rest, " : ")
	name := ""
	streams := make(map[string]bool)
	for i, f := range fields {
		f = strings.TrimSpace(f)
		switch {
		case strings.HasPrefix(f, "playback "):
			streams["playback"] = true
		case strings.HasPrefix(f, "capture "):
			streams["capture"] = true
		case i == 1 && f != "":
			name = f
		case name == "" && f != "":
			name = f
		}
	}
	if name == "" {
		name = fmt.Sprintf("Card %d device %d", cardN, devN)
	}
	return Descriptor{
		ID:          fmt.Sprintf("hw:%d,%d", cardN, devN),
		DisplayName: name,
	}, streams, true
}

// VideoInputs lists V4L2 capture nodes. IDs are device paths such as
// /dev/video0; the lowest numbered node is the default.
func (b *SysfsBackend) VideoInputs() ([]Descriptor, error) {
	matches, err := filepath.Glob(filepath.Join(b.path(video4linuxPath), "video*"))
	if err != nil {
		return nil, err
	}

	type node struct {
		index int
		base  string
		name  string
	}
	var nodes []node
	for _, m := range matches {
		base := filepath.Base(m)
		idx, err := strconv.Atoi(strings.TrimPrefix(base, "video"))
		if err != nil {
			continue
		}
		name := base
		if data, err := os.ReadFile(filepath.Join(m, "name")); err == nil {
			if n := strings.TrimSpace(string(data)); n != "" {
				name = n
			}
		}
		nodes = append(nodes, node{index: idx, base: base, name: name})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].index < nodes[j].index })

	devices := make([]Descriptor, 0, len(nodes))
	for i, n := range nodes {
		devices = append(devices, Descriptor{
			ID:              "/dev/" + n.base,
			DisplayName:     n.name,
			IsSystemDefault: i == 0,
		})
	}
	return devices, nil
}

// VideoCaptureReadiness reports ReadinessReady when a capture node exists.
// Otherwise it looks for an attached USB video class interface: if one is
// present and uvcvideo is not loaded the driver is missing.
func (b *SysfsBackend) VideoCaptureReadiness() (Readiness, error) {
	nodes, err := b.VideoInputs()
	if err != nil {
		return ReadinessNoDevice, err
	}
	if len(nodes) > 0 {
		return ReadinessReady, nil
	}

	present, err := b.usbVideoPresent()
	if err != nil {
		return ReadinessNoDevice, err
	}
	if !present {
		return ReadinessNoDevice, nil
	}

	loaded, err := b.moduleLoaded(uvcModule)
	if err != nil {
		return ReadinessNoDevice, err
	}
	logrus.WithFields(logrus.Fields{
		"function":      "VideoCaptureReadiness",
		"module":        uvcModule,
		"module_loaded": loaded,
	}).Debug("USB video interface found without capture node")
	if !loaded {
		return ReadinessDriverNotLoaded, nil
	}
	return ReadinessNoDevice, nil
}

func (b *SysfsBackend) usbVideoPresent() (bool, error) {
	matches, err := filepath.Glob(filepath.Join(b.path(usbDevicesPath), "*", "bInterfaceClass"))
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(data)), usbVideoClass) {
			return true, nil
		}
	}
	return false, nil
}

func (b *SysfsBackend) moduleLoaded(module string) (bool, error) {
	data, err := os.ReadFile(b.path(modulesPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if name, _, _ := strings.Cut(line, " "); name == module {
			return true, nil
		}
	}
	return false, nil
}
