//go:build linux

package v4l2

import (
	"errors"
	"iter"
	"syscall"
)

// Formats returns the pixel formats the device offers, queried lazily by
// increasing index. The sequence is single-use: ranging over it again
// resumes where the previous range stopped and yields nothing once the
// driver has reported the end.
func (d *Device) Formats() iter.Seq2[FormatInfo, error] {
	var index uint32
	done := false

	return func(yield func(FormatInfo, error) bool) {
		for !done {
			info, err := d.drv.EnumFormat(index)
			if errors.Is(err, ErrEnumerationDone) {
				done = true
				return
			}
			if err != nil {
				done = true
				yield(FormatInfo{}, controlError("VIDIOC_ENUM_FMT", err))
				return
			}
			index++
			if !yield(info, nil) {
				return
			}
		}
	}
}

// FrameSizes returns the frame sizes available for the negotiated pixel
// format. A stepwise or continuous range is expanded to the common
// resolutions inside it and ends the sequence. Drivers without frame size
// enumeration produce an empty sequence. Single-use, like Formats.
func (d *Device) FrameSizes() iter.Seq2[Resolution, error] {
	var index uint32
	done := false
	pixelFormat := d.format.PixelFormat

	return func(yield func(Resolution, error) bool) {
		for !done {
			entry, err := d.drv.EnumFrameSize(index, pixelFormat)
			if errors.Is(err, ErrEnumerationDone) || errors.Is(err, syscall.ENOTTY) {
				done = true
				return
			}
			if err != nil {
				done = true
				yield(Resolution{}, controlError("VIDIOC_ENUM_FRAMESIZES", err))
				return
			}
			index++

			switch entry.Type {
			case FrmsizeTypeDiscrete:
				if !yield(entry.Discrete, nil) {
					return
				}
			case FrmsizeTypeContinuous, FrmsizeTypeStepwise:
				// Only one stepwise entry is ever reported
				done = true
				for _, res := range stepwiseResolutions(entry.Stepwise) {
					if !yield(res, nil) {
						return
					}
				}
				return
			}
		}
	}
}

// ListFrameSizes collects FrameSizes into a slice.
func (d *Device) ListFrameSizes() ([]Resolution, error) {
	var sizes []Resolution
	for res, err := range d.FrameSizes() {
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, res)
	}
	return sizes, nil
}

// ListFormats collects Formats into a slice.
func (d *Device) ListFormats() ([]FormatInfo, error) {
	var formats []FormatInfo
	for info, err := range d.Formats() {
		if err != nil {
			return nil, err
		}
		formats = append(formats, info)
	}
	return formats, nil
}

var commonResolutions = []Resolution{
	{320, 240},  // QVGA
	{640, 480},  // VGA
	{800, 600},  // SVGA
	{1024, 768}, // XGA
	{1280, 720}, // HD
	{1280, 960},
	{1280, 1024}, // SXGA
	{1920, 1080}, // Full HD
	{1920, 1200}, // WUXGA
	{2560, 1440}, // QHD
	{3840, 2160}, // 4K UHD
	{4096, 2160}, // 4K DCI
}

// stepwiseResolutions returns the common resolutions that fall on the grid
// described by sw.
func stepwiseResolutions(sw FrameSizeStepwise) []Resolution {
	var resolutions []Resolution
	for _, res := range commonResolutions {
		if res.Width < sw.MinWidth || res.Width > sw.MaxWidth ||
			res.Height < sw.MinHeight || res.Height > sw.MaxHeight {
			continue
		}
		if sw.StepWidth > 1 && (res.Width-sw.MinWidth)%sw.StepWidth != 0 {
			continue
		}
		if sw.StepHeight > 1 && (res.Height-sw.MinHeight)%sw.StepHeight != 0 {
			continue
		}
		resolutions = append(resolutions, res)
	}
	return resolutions
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
