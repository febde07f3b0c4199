package capture

import (
	"image"
	"time"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/yuyv"
)

// Picture is a converted frame. It owns its pixels; the capture buffer it
// came from has already been returned to the driver.
type Picture struct {
	// Seq is assigned by the mailbox and increases by one per publish.
	Seq uint64
	// Sequence is the driver's frame counter.
	Sequence   uint32
	Width      int
	Height     int
	Grayscale  bool
	Image      image.Image
	Bytes      int
	CapturedAt time.Time
}

// convert decodes the frame's bytes. The caller releases the frame.
func convert(f *v4l2.Frame, grayscale bool, now time.Time) (*Picture, error) {
	data := f.Data()
	if data == nil {
		return nil, &Error{Code: ErrCodeConvert, Message: "frame was released before conversion"}
	}

	var (
		img image.Image
		err error
	)
	if grayscale {
		img, err = yuyv.ToGray(data, f.Width(), f.Height())
	} else {
		img, err = yuyv.ToRGBA(data, f.Width(), f.Height())
	}
	if err != nil {
		return nil, &Error{Code: ErrCodeConvert, Message: "failed to convert YUYV frame", Cause: err}
	}

	return &Picture{
		Sequence:   f.Sequence(),
		Width:      f.Width(),
		Height:     f.Height(),
		Grayscale:  grayscale,
		Image:      img,
		Bytes:      f.Len(),
		CapturedAt: now,
	}, nil
}
