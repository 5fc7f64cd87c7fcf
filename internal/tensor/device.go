package tensor

import (
	"fmt"
	"strings"
)

// DeviceType represents the hardware device used for computation.
type DeviceType int

const (
	CPU DeviceType = iota
	GPU
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// ParseDevice maps a configuration string to a device type.
func ParseDevice(s string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return CPU, nil
	case "gpu", "cuda", "metal":
		return GPU, nil
	default:
		return CPU, fmt.Errorf("unknown device %q", s)
	}
}

// Device manages the hardware resources for tensor operations.
type Device interface {
	Type() DeviceType
	IsAvailable() bool
}

// CPUDevice handles computations on the host CPU.
type CPUDevice struct{}

func (d *CPUDevice) Type() DeviceType  { return CPU }
func (d *CPUDevice) IsAvailable() bool { return true }

// GPUDevice is the accelerator placeholder. Kernels only exist for the CPU, so
// it never reports itself available.
type GPUDevice struct{}

func (d *GPUDevice) Type() DeviceType  { return GPU }
func (d *GPUDevice) IsAvailable() bool { return false }

// DeviceFor returns the Device implementation for a device type.
func DeviceFor(t DeviceType) Device {
	if t == GPU {
		return &GPUDevice{}
	}
	return &CPUDevice{}
}

// GetDefaultDevice returns the best available device for the current platform.
func GetDefaultDevice() Device {
	gpu := &GPUDevice{}
	if gpu.IsAvailable() {
		return gpu
	}
	return &CPUDevice{}
}
