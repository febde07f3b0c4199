package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/smazurov/yuvcam/internal/capture"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/yuyv"
	"github.com/spf13/cobra"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var (
		flags     deviceFlags
		output    string
		frameSize int
		skip      int
		grayscale bool
		quality   int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snapshot [device]",
		Short: "Capture one frame to an image file",
		Long: `Opens the device, optionally switches frame size, discards --skip frames while exposure settles ` +
			`and writes the next one as PNG or JPEG, chosen by the output file extension.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.initLogging()

			dev, err := flags.open(devicePath(args))
			if err != nil {
				return err
			}
			defer dev.Close()

			if frameSize >= 0 {
				if err := dev.SetFrameSize(frameSize); err != nil {
					return err
				}
			}

			deadline := time.Now().Add(timeout)
			for range skip {
				if err := grabFrame(dev, deadline, func(*v4l2.Frame) error { return nil }); err != nil {
					return err
				}
			}

			var img image.Image
			err = grabFrame(dev, deadline, func(f *v4l2.Frame) error {
				var convErr error
				if grayscale {
					img, convErr = yuyv.ToGray(f.Data(), f.Width(), f.Height())
				} else {
					img, convErr = yuyv.ToRGBA(f.Data(), f.Width(), f.Height())
				}
				return convErr
			})
			if err != nil {
				return err
			}

			if err := writeImage(output, img, quality); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d frame to %s\n", img.Bounds().Dx(), img.Bounds().Dy(), output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.png", "Output file (.png, .jpg or .jpeg)")
	cmd.Flags().IntVar(&frameSize, "frame-size", -1, "Frame size index to switch to first (see the sizes command)")
	cmd.Flags().IntVar(&skip, "skip", 0, "Frames to discard before the one written")
	cmd.Flags().BoolVar(&grayscale, "grayscale", false, "Write luma only")
	cmd.Flags().IntVar(&quality, "quality", capture.DefaultJPEGQuality, "JPEG quality (1-100)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up when no frame arrives in time")
	return cmd
}

// grabFrame waits for the next frame until deadline and passes it to fn.
// The frame is released on every path.
func grabFrame(dev *v4l2.Device, deadline time.Time, fn func(*v4l2.Frame) error) error {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.New("timed out waiting for a frame")
		}

		result, err := dev.WaitForFrame(remaining)
		if err != nil {
			if v4l2.IsRetryable(err) {
				continue
			}
			return err
		}
		if result != v4l2.WaitReady {
			continue
		}

		frame, err := dev.AcquireFrame()
		if err != nil {
			if v4l2.IsRetryable(err) {
				continue
			}
			return err
		}

		return useFrame(frame, fn)
	}
}

// useFrame runs fn and releases frame even if fn panics.
func useFrame(frame *v4l2.Frame, fn func(*v4l2.Frame) error) (err error) {
	defer func() {
		if relErr := frame.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(frame)
}

func writeImage(path string, img image.Image, quality int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	if err := capture.Encode(w, img, capture.EncodingForPath(path), quality); err != nil {
		return err
	}
	return w.Flush()
}
