//go:build linux

package v4l2

import "time"

// WaitForFrame blocks until a filled buffer is ready or timeout elapses.
// A negative timeout waits indefinitely.
func (d *Device) WaitForFrame(timeout time.Duration) (WaitResult, error) {
	if d.closed {
		return WaitTimedOut, stateError("poll", "device is closed")
	}
	if !d.pool.Streaming() {
		return WaitTimedOut, stateError("poll", "streaming has not started")
	}

	ready, err := d.drv.WaitReady(timeout)
	if err != nil {
		return WaitTimedOut, controlError("poll", err)
	}
	if !ready {
		return WaitTimedOut, nil
	}
	return WaitReady, nil
}

// AcquireFrame dequeues the next filled buffer. The caller must Release the
// returned Frame, normally with defer.
func (d *Device) AcquireFrame() (*Frame, error) {
	if d.closed {
		return nil, stateError("VIDIOC_DQBUF", "device is closed")
	}

	s, gen, buf, err := d.pool.dequeue()
	if err != nil {
		return nil, err
	}

	length := int(buf.BytesUsed)
	if length > len(s.mem) {
		d.logger.Warn("Driver reported more bytes than buffer holds",
			"index", buf.Index, "bytes_used", buf.BytesUsed, "capacity", len(s.mem))
		length = len(s.mem)
	}

	return &Frame{
		pool:      d.pool,
		index:     s.index,
		gen:       gen,
		length:    length,
		width:     d.Width(),
		height:    d.Height(),
		sequence:  buf.Sequence,
		timestamp: buf.Timestamp,
	}, nil
}

// GetFrame waits without a deadline and acquires the next frame, retrying
// interrupted waits and spurious wakeups.
func (d *Device) GetFrame() (*Frame, error) {
	for {
		result, err := d.WaitForFrame(-1)
		if err != nil {
			if IsRetryable(err) {
				continue
			}
			return nil, err
		}
		if result != WaitReady {
			continue
		}

		frame, err := d.AcquireFrame()
		if err != nil {
			if IsRetryable(err) {
				continue
			}
			return nil, err
		}
		return frame, nil
	}
}

// WithFrame acquires a frame, passes it to fn and releases it on every exit
// path. fn must not keep the frame or its data.
func (d *Device) WithFrame(fn func(*Frame) error) (err error) {
	frame, err := d.GetFrame()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := frame.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(frame)
}
