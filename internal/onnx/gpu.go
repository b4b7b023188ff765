package onnx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// DefaultNvidiaProcDir lists one entry per GPU on Linux hosts with the
// NVIDIA driver loaded.
const DefaultNvidiaProcDir = "/proc/driver/nvidia/gpus"

// CUDADeviceCounter reports the number of CUDA devices usable through
// ONNX Runtime. A failure to load the runtime or to create the CUDA
// execution provider is a query failure.
type CUDADeviceCounter struct {
	// LibraryPath overrides the shared library search.
	LibraryPath string
	// DeviceID is passed to the CUDA provider options.
	DeviceID int
	// ProcDir overrides DefaultNvidiaProcDir.
	ProcDir string
	Logger  *slog.Logger
}

// Count implements accel.DeviceCounter.
func (c *CUDADeviceCounter) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := c.setLibraryPath(); err != nil {
		return 0, err
	}

	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return 0, fmt.Errorf("initialize onnxruntime: %w", err)
		}
		defer func() {
			if err := onnxruntime_go.DestroyEnvironment(); err != nil {
				logger.Warn("failed to destroy onnxruntime environment", "error", err)
			}
		}()
	}

	if err := probeCUDAProvider(c.DeviceID, logger); err != nil {
		return 0, err
	}

	dir := c.ProcDir
	if dir == "" {
		dir = DefaultNvidiaProcDir
	}
	n, err := countDeviceEntries(dir)
	if err != nil {
		return 0, err
	}
	logger.Debug("cuda devices counted", "count", n, "source", dir)
	return n, nil
}

func (c *CUDADeviceCounter) setLibraryPath() error {
	if c.LibraryPath != "" {
		if !trySetLibraryPath(c.LibraryPath) {
			return fmt.Errorf("ONNX Runtime library not found at %s", c.LibraryPath)
		}
		return nil
	}
	return SetONNXLibraryPath(true)
}

// probeCUDAProvider creates and configures CUDA provider options, which
// fails when the runtime was built without CUDA or no driver is present.
func probeCUDAProvider(deviceID int, logger *slog.Logger) error {
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if destroyErr := cudaOpts.Destroy(); destroyErr != nil {
			logger.Warn("failed to destroy CUDA provider options", "error", destroyErr)
		}
	}()

	if err := cudaOpts.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	return nil
}

// countDeviceEntries counts the per-GPU entries under dir. A missing dir
// means the platform has no such listing; the provider already loaded, so
// at least one device is assumed.
func countDeviceEntries(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("list GPU devices: %w", err)
	}
	return len(entries), nil
}

// getSystemLibraryPaths returns system library paths to try, prioritizing GPU or CPU based on useGPU.
func getSystemLibraryPaths(useGPU bool) []string {
	if useGPU {
		return []string{
			"/opt/onnxruntime/gpu/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
		}
	}
	return []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	projectRoot := cwd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			return projectRoot, nil
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			return "", errors.New("could not find project root")
		}
		projectRoot = parent
	}
}

// getLibraryName returns the appropriate library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func trySetLibraryPath(path string) bool {
	if _, err := os.Stat(path); err == nil {
		onnxruntime_go.SetSharedLibraryPath(path)
		return true
	}
	return false
}

// SetONNXLibraryPath points onnxruntime_go at the shared library: system
// paths first, then onnxruntime/gpu/lib and onnxruntime/lib under the
// project root. With useGPU the GPU builds are tried first.
func SetONNXLibraryPath(useGPU bool) error {
	for _, path := range getSystemLibraryPaths(useGPU) {
		if trySetLibraryPath(path) {
			return nil
		}
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return err
	}

	libName, err := getLibraryName()
	if err != nil {
		return err
	}

	if useGPU {
		gpuLibPath := filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", libName)
		if trySetLibraryPath(gpuLibPath) {
			return nil
		}
	}

	libPath := filepath.Join(projectRoot, "onnxruntime", "lib", libName)
	if !trySetLibraryPath(libPath) {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}

	return nil
}
