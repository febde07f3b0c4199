//go:build linux

// Package v4l2 captures frames from Video4Linux2 nodes with user-pointer
// buffers, in pure Go without cgo.
//
// The kernel ABI lives in the videodev2_*.go tables, one per architecture
// family, and is only touched by the ioctl Driver. Everything else is
// written against the Driver interface, so tests run on simdriver.
//
// # Capture
//
// Open negotiates the device and starts streaming into a pool of buffers.
// Frames borrow a buffer and must be released:
//
//	dev, err := v4l2.Open("/dev/video0")
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	err = dev.WithFrame(func(f *v4l2.Frame) error {
//	    return render(f.Data(), f.Width(), f.Height())
//	})
//
// # Buffer ownership
//
// Every buffer is Free, Queued (kernel owned) or Dequeued (lent to exactly
// one Frame). Stopping the stream invalidates outstanding Frames: their Data
// returns nil and their Release does nothing.
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
package v4l2
