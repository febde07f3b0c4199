//go:build linux

package v4l2

import "fmt"

// SetFrameSize switches capture to the index-th entry of ListFrameSizes.
// The index is validated before anything is touched, and the call is
// refused while any Frame is outstanding. Otherwise streaming stops, the
// pool is released, the new size is applied and renegotiated, and a fresh
// pool is registered, queued and started.
func (d *Device) SetFrameSize(index int) error {
	if d.closed {
		return stateError("resize", "device is closed")
	}

	sizes, err := d.ListFrameSizes()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(sizes) {
		return newError(ErrCodeFrameSizeOutOfRange,
			fmt.Sprintf("index %d outside the %d sizes offered", index, len(sizes)), nil)
	}
	if n := d.pool.Outstanding(); n > 0 {
		return stateError("resize", fmt.Sprintf("%d frames still held", n))
	}

	target := sizes[index]
	previous := d.format

	if err := d.stopCapture(); err != nil {
		return err
	}

	applied, err := d.drv.SetFormat(PixFormat{
		Width:       target.Width,
		Height:      target.Height,
		PixelFormat: PixFmtYUYV,
		Field:       FieldNone,
	})
	if err != nil {
		return d.restore(previous, controlError("VIDIOC_S_FMT", err))
	}
	if applied.Width != target.Width || applied.Height != target.Height {
		d.logger.Warn("Driver adjusted frame size",
			"requested", fmt.Sprintf("%dx%d", target.Width, target.Height),
			"applied", fmt.Sprintf("%dx%d", applied.Width, applied.Height))
	}

	if err := d.negotiateFormat(); err != nil {
		return d.restore(previous, err)
	}
	if err := d.startCapture(); err != nil {
		return err
	}

	d.logger.Info("Frame size changed", "width", d.format.Width, "height", d.format.Height, "index", index)
	return nil
}

// restore puts the previous format back after a failed resize and restarts
// capture with it. cause is returned either way.
func (d *Device) restore(previous PixFormat, cause error) error {
	if _, err := d.drv.SetFormat(previous); err != nil {
		d.logger.Error("Failed to restore previous format", "error", err)
		return cause
	}
	d.format = previous
	if err := d.startCapture(); err != nil {
		d.logger.Error("Failed to restart capture after resize error", "error", err)
	}
	return cause
}
