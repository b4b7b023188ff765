package onnx

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCountDeviceEntries(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"0000:01:00.0", "0000:02:00.0"} {
		if err := os.Mkdir(filepath.Join(dir, id), 0o750); err != nil {
			t.Fatalf("Failed to create device entry: %v", err)
		}
	}

	n, err := countDeviceEntries(dir)
	if err != nil {
		t.Fatalf("countDeviceEntries() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("countDeviceEntries() = %d, want 2", n)
	}
}

func TestCountDeviceEntriesEmpty(t *testing.T) {
	n, err := countDeviceEntries(t.TempDir())
	if err != nil {
		t.Fatalf("countDeviceEntries() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("countDeviceEntries() = %d, want 0", n)
	}
}

func TestCountDeviceEntriesMissingDir(t *testing.T) {
	n, err := countDeviceEntries(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("countDeviceEntries() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("countDeviceEntries() = %d, want 1 when no listing exists", n)
	}
}

func TestCUDADeviceCounterMissingLibrary(t *testing.T) {
	c := &CUDADeviceCounter{LibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")}
	n, err := c.Count(context.Background())
	if err == nil {
		t.Fatal("Count() should fail when the library is missing")
	}
	if n != 0 {
		t.Errorf("Count() = %d on failure, want 0", n)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCUDADeviceCounterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&CUDADeviceCounter{}).Count(ctx); err == nil {
		t.Error("Count() should honour a canceled context")
	}
}

func TestGetSystemLibraryPaths(t *testing.T) {
	gpuPaths := getSystemLibraryPaths(true)
	if len(gpuPaths) != 4 {
		t.Errorf("getSystemLibraryPaths(true) returned %d paths, want 4", len(gpuPaths))
	}
	if !strings.Contains(gpuPaths[0], "gpu") {
		t.Errorf("first GPU path should be a GPU build: %s", gpuPaths[0])
	}

	if cpuPaths := getSystemLibraryPaths(false); len(cpuPaths) != 3 {
		t.Errorf("getSystemLibraryPaths(false) returned %d paths, want 3", len(cpuPaths))
	}
}

func TestFindProjectRoot(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "project")
	subDir := filepath.Join(projectDir, "subdir")
	if err := os.MkdirAll(subDir, 0o750); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module test\n"), 0o600); err != nil {
		t.Fatalf("Failed to create go.mod: %v", err)
	}

	t.Chdir(subDir)

	root, err := findProjectRoot()
	if err != nil {
		t.Fatalf("findProjectRoot() failed: %v", err)
	}
	if root != projectDir {
		t.Errorf("findProjectRoot() = %s, want %s", root, projectDir)
	}
}

func TestFindProjectRootNoGoMod(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := findProjectRoot(); err == nil {
		t.Error("findProjectRoot() should fail when no go.mod is found")
	}
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	if err != nil {
		t.Fatalf("getLibraryName() failed for current OS: %v", err)
	}

	want := map[string]string{osLinux: libLinux, osDarwin: libDarwin, osWindows: libWindows}[runtime.GOOS]
	if name != want {
		t.Errorf("getLibraryName() = %s, want %s", name, want)
	}
}

func TestTrySetLibraryPath(t *testing.T) {
	libPath := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(libPath, []byte("fake library"), 0o600); err != nil {
		t.Fatalf("Failed to create fake library file: %v", err)
	}

	if !trySetLibraryPath(libPath) {
		t.Error("trySetLibraryPath() should return true for existing file")
	}
	if trySetLibraryPath(libPath + ".missing") {
		t.Error("trySetLibraryPath() should return false for non-existing file")
	}
}

func TestSetONNXLibraryPathProjectFallback(t *testing.T) {
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module test\n"), 0o600); err != nil {
		t.Fatalf("Failed to create go.mod: %v", err)
	}
	libName, err := getLibraryName()
	if err != nil {
		t.Skip(err)
	}
	gpuDir := filepath.Join(projectDir, "onnxruntime", "gpu", "lib")
	if err := os.MkdirAll(gpuDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gpuDir, libName), []byte("fake gpu library"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Chdir(projectDir)

	if err := SetONNXLibraryPath(true); err != nil {
		t.Errorf("SetONNXLibraryPath(true) failed: %v", err)
	}
}
