package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/timmy/vidnotes/internal/domain"
)

// Prober reads media duration with ffprobe.
type Prober struct {
	binary string
	runner CommandRunner
}

// NewProber creates an ffprobe wrapper.
func NewProber(binary string, runner CommandRunner) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{binary: binary, runner: runner}
}

// Duration returns the container duration in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	raw := strings.TrimSpace(res.Stdout)
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: unexpected output %q", raw)
	}
	return seconds, nil
}

// DeviceDetector decides which device models are loaded onto.
type DeviceDetector struct {
	binary   string
	override string
	runner   CommandRunner
}

// NewDeviceDetector creates a detector. override is auto, cuda or cpu.
func NewDeviceDetector(nvidiaSMI, override string, runner CommandRunner) *DeviceDetector {
	if nvidiaSMI == "" {
		nvidiaSMI = "nvidia-smi"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &DeviceDetector{binary: nvidiaSMI, override: strings.ToLower(strings.TrimSpace(override)), runner: runner}
}

// Detect returns cuda when a GPU is listed by nvidia-smi, otherwise cpu.
func (d *DeviceDetector) Detect(ctx context.Context) domain.Device {
	switch d.override {
	case string(domain.DeviceCUDA):
		return domain.DeviceCUDA
	case string(domain.DeviceCPU):
		return domain.DeviceCPU
	}

	if _, err := d.runner.LookPath(d.binary); err != nil {
		return domain.DeviceCPU
	}
	res, err := d.runner.Run(ctx, d.binary, "-L")
	if err != nil {
		return domain.DeviceCPU
	}
	if strings.Contains(res.Stdout, "GPU ") {
		return domain.DeviceCUDA
	}
	return domain.DeviceCPU
}
