package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. The command's combined output is included
// in the error when it fails.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// SetCommandRunner replaces the runner used by LoadCaptureDriver. A nil
// runner restores ExecRunner.
func (m *Manager) SetCommandRunner(r CommandRunner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r == nil {
		r = ExecRunner{}
	}
	m.runner = r
}

// LoadCaptureDriver loads the UVC camera driver through pkexec when a camera
// is attached but its driver is missing, and returns the readiness observed
// afterwards. In any other state it only reports the current readiness.
func (m *Manager) LoadCaptureDriver(ctx context.Context) (Readiness, error) {
	before := m.CheckVideoCaptureReadiness()
	if before != ReadinessDriverNotLoaded {
		logrus.WithFields(logrus.Fields{
			"function":  "LoadCaptureDriver",
			"readiness": before.String(),
		}).Debug("Capture driver load not needed")
		return before, nil
	}

	m.mu.Lock()
	runner := m.runner
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "LoadCaptureDriver",
		"module":   uvcModule,
	}).Info("Loading capture driver")

	if err := runner.Run(ctx, "pkexec", "modprobe", uvcModule); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "LoadCaptureDriver",
			"module":   uvcModule,
			"error":    err.Error(),
		}).Error("Capture driver load failed")
		return before, fmt.Errorf("%w: %s: %w", ErrDriverLoadFailed, uvcModule, err)
	}

	after := m.CheckVideoCaptureReadiness()
	if after == ReadinessDriverNotLoaded {
		return after, fmt.Errorf("%w: %s still not loaded", ErrDriverLoadFailed, uvcModule)
	}
	logrus.WithFields(logrus.Fields{
		"function":  "LoadCaptureDriver",
		"readiness": after.String(),
	}).Info("Capture driver loaded")
	return after, nil
}
