//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func open(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
}

func close(fd int) error {
	return unix.Close(fd)
}

// ioctlDriver talks to a real device node.
type ioctlDriver struct {
	fd int
}

// OpenDriver opens path and returns the kernel-backed Driver for it.
// Errors are classified into the device open codes.
func OpenDriver(path string) (Driver, error) {
	fd, err := open(path)
	if err != nil {
		return nil, openError(path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		close(fd)
		return nil, openError(path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		close(fd)
		return nil, newError(ErrCodeNotCaptureDevice, path+" is not a character device", nil)
	}

	return &ioctlDriver{fd: fd}, nil
}

func (d *ioctlDriver) QueryCapability() (Capability, error) {
	c := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      c.version,
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}, nil
}

func (d *ioctlDriver) GetFormat() (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPixFormat(f.pix), nil
}

func (d *ioctlDriver) SetFormat(pf PixFormat) (PixFormat, error) {
	f := v4l2Format{
		typ: bufTypeVideoCapture,
		pix: v4l2PixFormat{
			width:       pf.Width,
			height:      pf.Height,
			pixelformat: pf.PixelFormat,
			field:       pf.Field,
		},
	}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPixFormat(f.pix), nil
}

func (d *ioctlDriver) EnumFormat(index uint32) (FormatInfo, error) {
	fmtdesc := v4l2Fmtdesc{
		index: index,
		typ:   bufTypeVideoCapture,
	}
	if err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return FormatInfo{}, ErrEnumerationDone
		}
		return FormatInfo{}, err
	}
	return FormatInfo{
		PixelFormat: fmtdesc.pixelformat,
		FormatName:  cstr(fmtdesc.description[:]),
		Emulated:    fmtdesc.flags&FmtFlagEmulated != 0,
	}, nil
}

func (d *ioctlDriver) EnumFrameSize(index, pixelFormat uint32) (FrameSizeEnum, error) {
	frmsize := v4l2Frmsizeenum{
		index:       index,
		pixelFormat: pixelFormat,
	}
	if err := ioctl(d.fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return FrameSizeEnum{}, ErrEnumerationDone
		}
		return FrameSizeEnum{}, err
	}

	entry := FrameSizeEnum{Type: frmsize.typ}
	switch frmsize.typ {
	case FrmsizeTypeDiscrete:
		entry.Discrete = Resolution{Width: frmsize.discrete.width, Height: frmsize.discrete.height}
	case FrmsizeTypeContinuous, FrmsizeTypeStepwise:
		// Stepwise overlays discrete in memory
		sw := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
		entry.Stepwise = FrameSizeStepwise{
			MinWidth:   sw.minWidth,
			MaxWidth:   sw.maxWidth,
			StepWidth:  sw.stepWidth,
			MinHeight:  sw.minHeight,
			MaxHeight:  sw.maxHeight,
			StepHeight: sw.stepHeight,
		}
	}
	return entry, nil
}

func (d *ioctlDriver) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2RequestBuffers{
		count:  count,
		typ:    bufTypeVideoCapture,
		memory: memoryUserptr,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

func (d *ioctlDriver) QueueBuffer(index uint32, mem []byte) error {
	if len(mem) == 0 {
		return unix.EINVAL
	}
	buf := v4l2Buffer{
		index:  index,
		typ:    bufTypeVideoCapture,
		memory: memoryUserptr,
		length: uint32(len(mem)),
	}
	buf.setUserptr(uintptr(unsafe.Pointer(&mem[0])))
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf))
}

func (d *ioctlDriver) DequeueBuffer() (DequeuedBuffer, error) {
	buf := v4l2Buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryUserptr,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return DequeuedBuffer{}, err
	}
	return DequeuedBuffer{
		Index:     buf.index,
		BytesUsed: buf.bytesused,
		Sequence:  buf.sequence,
		Flags:     buf.flags,
		Timestamp: time.Duration(buf.timestampMicros()) * time.Microsecond,
	}, nil
}

func (d *ioctlDriver) StreamOn() error {
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

func (d *ioctlDriver) StreamOff() error {
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

func (d *ioctlDriver) WaitReady(timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false, fmt.Errorf("poll revents 0x%x: %w", fds[0].Revents, unix.EIO)
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}

func (d *ioctlDriver) Close() error {
	return close(d.fd)
}

func fromPixFormat(p v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}
