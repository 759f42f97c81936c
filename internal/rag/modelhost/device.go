// Package modelhost selects the compute device ModelHosts run on and wires
// together the embedder, reranker, and generator behind that decision.
package modelhost

import (
	"fmt"
	"runtime"

	"ragforge/internal/hostinfo"
)

// Device names the compute path chosen at startup.
type Device string

const (
	DeviceGPU           Device = "gpu"
	DeviceAcceleratedCPU Device = "accelerated-cpu"
	DeviceCPU           Device = "cpu"
)

// acceleratedCPUArches lists GOARCH values the host treats as having a
// usable CPU-side acceleration path (NEON/AVX-class SIMD) when no GPU
// is selected.
var acceleratedCPUArches = map[string]bool{
	"arm64": true,
	"amd64": true,
}

// SelectDevice applies the policy from §4.1: when gpuMemThresholdMiB > 0,
// pick the first detected GPU that reports a model name, else an
// accelerated CPU path, else plain CPU. GPU memory is not compared against
// gpuMemThresholdMiB; only its sign is used. The decision is made once per
// process and logged by the caller.
func SelectDevice(gpuMemThresholdMiB int) (Device, string, error) {
	info, err := hostinfo.GetHostInfo()
	if err != nil {
		return "", "", fmt.Errorf("select device: %w", err)
	}
	if gpuMemThresholdMiB > 0 && len(info.GPUs) > 0 {
		for _, gpu := range info.GPUs {
			if gpu.Model != "" {
				return DeviceGPU, gpu.Model, nil
			}
		}
	}
	if acceleratedCPUArches[runtime.GOARCH] {
		return DeviceAcceleratedCPU, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
	}
	return DeviceCPU, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
}
