// toxcall runs the call session controller, video pipelines and device
// manager against a backend event socket.
//
// The backend's call transport is not linked in; commands are logged by a
// dry-run transport. Signaling and frames are read from --url, device
// lists and camera readiness are reported at startup, and the last frame
// of every video source can be written as PNG on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/opd-ai/toxcall/bridge"
	"github.com/opd-ai/toxcall/call"
	"github.com/opd-ai/toxcall/config"
	"github.com/opd-ai/toxcall/device"
	"github.com/opd-ai/toxcall/video"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := loadOptions(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := opts.ConfigureLogging(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	registry := video.NewRegistry(video.NewMetrics(reg))
	transport := dryRunTransport{}

	ctrl, err := call.NewController(transport, opts.CallConfig())
	if err != nil {
		return err
	}
	defer ctrl.Close()
	ctrl.OnChange(logSnapshot)

	devices, err := device.NewManager(device.NewSysfsBackend(opts.DeviceSysRoot), transport)
	if err != nil {
		return err
	}
	devices.SetActiveCallFunc(ctrl.HasActiveCall)
	reportDevices(devices)
	if opts.LoadCameraDriver {
		loadCameraDriver(ctx, devices)
	}

	if opts.EventURL == "" {
		logrus.WithFields(logrus.Fields{
			"function": "run",
		}).Warn("No event URL configured, waiting for interrupt")
		<-ctx.Done()
	} else if err := runBridge(ctx, opts, ctrl, registry); err != nil {
		return err
	}

	if opts.FrameDumpDir != "" {
		if err := dumpFrames(opts.FrameDumpDir, registry); err != nil {
			return err
		}
	}
	return nil
}

// loadOptions reads the optional config file and applies flags over it.
func loadOptions(args []string) (*config.Options, error) {
	defaults := config.NewOptions()

	flagSet := pflag.NewFlagSet("toxcall", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to a YAML config file")
	url := flagSet.String("url", defaults.EventURL, "backend event socket URL (ws:// or wss://)")
	logLevel := flagSet.String("log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	logFormat := flagSet.String("log-format", defaults.LogFormat, "log format: text or json")
	dumpDir := flagSet.String("dump-dir", defaults.FrameDumpDir, "write the last frame of each source as PNG on exit")
	metricsAddr := flagSet.String("metrics-addr", defaults.MetricsAddr, "serve Prometheus metrics on this address")
	sysRoot := flagSet.String("sys-root", defaults.DeviceSysRoot, "root for /proc and /sys device enumeration")
	loadDriver := flagSet.Bool("load-camera-driver", defaults.LoadCameraDriver, "load the UVC camera driver via pkexec if a camera needs it")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	opts := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	overrides := map[string]func(){
		"url":                func() { opts.EventURL = *url },
		"log-level":          func() { opts.LogLevel = *logLevel },
		"log-format":         func() { opts.LogFormat = *logFormat },
		"dump-dir":           func() { opts.FrameDumpDir = *dumpDir },
		"metrics-addr":       func() { opts.MetricsAddr = *metricsAddr },
		"sys-root":           func() { opts.DeviceSysRoot = *sysRoot },
		"load-camera-driver": func() { opts.LoadCameraDriver = *loadDriver },
	}
	for name, apply := range overrides {
		if flagSet.Changed(name) {
			apply()
		}
	}
	return opts, opts.Validate()
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logrus.WithFields(logrus.Fields{
			"function": "serveMetrics",
			"addr":     addr,
		}).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()
	return srv
}

func runBridge(ctx context.Context, opts *config.Options, ctrl *call.Controller, registry *video.Registry) error {
	b, err := bridge.New(ctrl, registry, opts.BridgeConfig())
	if err != nil {
		return err
	}
	src, err := bridge.Dial(ctx, opts.EventURL, nil)
	if err != nil {
		return err
	}
	defer src.Close()

	err = b.Run(ctx, src)
	stats := b.Stats()
	logrus.WithFields(logrus.Fields{
		"function":   "runBridge",
		"signals":    stats.Signals,
		"frames":     stats.Frames,
		"duplicates": stats.Duplicates,
		"shed":       stats.Shed,
		"malformed":  stats.Malformed,
	}).Info("Event bridge finished")
	return err
}

func reportDevices(m *device.Manager) {
	lists := []struct {
		kind string
		list func() ([]device.Descriptor, error)
	}{
		{"audio_input", m.ListAudioInputs},
		{"audio_output", m.ListAudioOutputs},
		{"video_input", m.ListVideoInputs},
	}
	for _, l := range lists {
		devices, err := l.list()
		if err != nil {
			continue
		}
		for _, d := range devices {
			logrus.WithFields(logrus.Fields{
				"function": "reportDevices",
				"kind":     l.kind,
				"id":       d.ID,
				"name":     d.DisplayName,
				"default":  d.IsSystemDefault,
			}).Info("Found device")
		}
	}

	readiness := m.CheckVideoCaptureReadiness()
	entry := logrus.WithFields(logrus.Fields{
		"function":  "reportDevices",
		"readiness": readiness.String(),
	})
	if hint := readiness.Remediation(); hint != "" {
		entry.Warn(hint)
		return
	}
	entry.Info("Video capture ready")
}

// loadCameraDriver asks the device manager to load a missing camera driver.
// Failure is reported but does not stop the client.
func loadCameraDriver(ctx context.Context, m *device.Manager) device.Readiness {
	readiness, err := m.LoadCaptureDriver(ctx)
	entry := logrus.WithFields(logrus.Fields{
		"function":  "loadCameraDriver",
		"readiness": readiness.String(),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn(readiness.Remediation())
		return readiness
	}
	entry.Info("Camera driver check finished")
	return readiness
}

func logSnapshot(s call.Snapshot) {
	fields := logrus.Fields{
		"function": "logSnapshot",
		"status":   s.Status.String(),
	}
	if s.Session != nil {
		fields["peer_id"] = s.Session.PeerID
		fields["session_id"] = s.Session.ID
		fields["duration_s"] = s.Session.DurationSeconds()
	}
	if s.Incoming != nil {
		fields["incoming_peer_id"] = s.Incoming.PeerID
	}
	if s.EndReason != "" {
		fields["reason"] = s.EndReason
	}
	logrus.WithFields(fields).Debug("Call state")
}

// dumpFrames writes the last rendered image of every source to dir.
func dumpFrames(dir string, registry *video.Registry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	for _, source := range registry.Sources() {
		p, ok := registry.Lookup(source)
		if !ok {
			continue
		}
		img := p.Image()
		if img == nil {
			continue
		}
		name := strings.ReplaceAll(source.String(), ":", "-") + ".png"
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = png.Encode(f, img)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		logrus.WithFields(logrus.Fields{
			"function": "dumpFrames",
			"source":   source.String(),
			"path":     path,
		}).Info("Wrote frame")
	}
	return nil
}
