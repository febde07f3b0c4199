package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2/simdriver"
	"github.com/spf13/cobra"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDevicesCmd(t *testing.T) {
	orig := findDevices
	t.Cleanup(func() { findDevices = orig })

	findDevices = func() ([]v4l2.DeviceInfo, error) {
		return []v4l2.DeviceInfo{{DevicePath: "/dev/video0", DeviceName: "USB Camera", DeviceID: "usb-cam-video-index0", Streaming: true}}, nil
	}

	out, err := run(t, CreateDevicesCmd())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/dev/video0") || !strings.Contains(out, "usb-cam-video-index0") {
		t.Errorf("table output = %q", out)
	}

	out, err = run(t, CreateDevicesCmd(), "--json")
	if err != nil {
		t.Fatal(err)
	}
	var decoded []v4l2.DeviceInfo
	if err := json.Unmarshal([]byte(out), &decoded); err != nil || len(decoded) != 1 {
		t.Errorf("json output = %q, %v", out, err)
	}

	findDevices = func() ([]v4l2.DeviceInfo, error) { return nil, nil }
	if out, _ := run(t, CreateDevicesCmd()); !strings.Contains(out, "No capture devices found") {
		t.Errorf("empty output = %q", out)
	}

	findDevices = func() ([]v4l2.DeviceInfo, error) { return nil, errors.New("sysfs unavailable") }
	if _, err := run(t, CreateDevicesCmd()); err == nil {
		t.Error("expected the scan error")
	}
}

func TestSizesCmd(t *testing.T) {
	out, err := run(t, CreateSizesCmd(), "--simulate", "/dev/video-sim")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Driver:  simdriver", "Current: 640x480 YUYV", "* YUYV", "0  640x480", "1  320x240", "2  1280x720"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSnapshotCmd(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		args    []string
		width   int
		decoder func(*os.File) (int, error)
	}{
		{
			name:  "png",
			file:  "frame.png",
			args:  []string{"--skip", "2"},
			width: 640,
			decoder: func(f *os.File) (int, error) {
				img, err := png.Decode(f)
				if err != nil {
					return 0, err
				}
				return img.Bounds().Dx(), nil
			},
		},
		{
			name:  "jpeg after resize",
			file:  "frame.jpg",
			args:  []string{"--frame-size", "1", "--grayscale"},
			width: 320,
			decoder: func(f *os.File) (int, error) {
				img, err := jpeg.Decode(f)
				if err != nil {
					return 0, err
				}
				return img.Bounds().Dx(), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			args := append([]string{"--simulate", "-o", path}, tt.args...)
			out, err := run(t, CreateSnapshotCmd(), args...)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, "Wrote") {
				t.Errorf("output = %q", out)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			width, err := tt.decoder(f)
			if err != nil {
				t.Fatal(err)
			}
			if width != tt.width {
				t.Errorf("width = %d, want %d", width, tt.width)
			}
		})
	}
}

func TestSnapshotCmdRejectsFrameSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.png")
	_, err := run(t, CreateSnapshotCmd(), "--simulate", "--frame-size", "9", "-o", path)
	if v4l2.CodeOf(err) != v4l2.ErrCodeFrameSizeOutOfRange {
		t.Fatalf("error = %v, want %s", err, v4l2.ErrCodeFrameSizeOutOfRange)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("no file should be written when the resize fails")
	}
}

func TestGrabFrameReleasesOnPanic(t *testing.T) {
	dev, err := v4l2.Open("/dev/video-sim", v4l2.WithDriver(simdriver.New(simdriver.DefaultConfig())))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer dev.Close()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic from the frame callback was swallowed")
			}
		}()
		grabFrame(dev, time.Now().Add(2*time.Second), func(*v4l2.Frame) error { panic("boom") })
	}()

	if n := dev.Pool().Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d after panic, want 0", n)
	}
}
