package encdec

import (
	"fmt"
	"image"
	"image/draw"
	"time"
)

type FrameType int

const (
	BGRAFrames FrameType = iota
	RGBAFrames
)

// Frame is a single produced picture. It is not modified after it has been
// handed to a queue.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Type   FrameType
	ID     uint64
	SoulID uint32
}

func (f *Frame) Size() int {
	return len(f.Data)
}

// Buffer is the outgoing buffer handed over by the pipeline on each pull.
// Offset and OffsetEnd carry the pull sequence number.
type Buffer struct {
	Data      []byte
	Offset    uint64
	OffsetEnd uint64
	PTS       time.Duration
	Duration  time.Duration
}

func NewBuffer(size int) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// FrameSize is the payload size of a width x height frame of the given type
func FrameSize(t FrameType, width, height int) int {
	switch t {
	case RGBAFrames:
		fallthrough
	case BGRAFrames:
		return width * height * 4
	default:
		panic("unknown frame type")
	}
}

// BGRAFromImage converts img into tightly packed BGRA pixels in dst
func BGRAFromImage(img image.Image, dst []byte) error {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if len(dst) != w*h*4 {
		return fmt.Errorf("expected buffer of size %d but got %d", w*h*4, len(dst))
	}

	nrgba := &image.NRGBA{
		Pix:    dst,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)
	swapRB(dst)
	return nil
}

// ImageFromBGRA copies BGRA pixels into a new NRGBA image
func ImageFromBGRA(data []byte, width, height int) (*image.NRGBA, error) {
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("expected buffer of size %d but got %d", width*height*4, len(data))
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data)
	swapRB(img.Pix)
	return img, nil
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

func (f FrameType) String() string {
	switch f {
	case BGRAFrames:
		return "BGRA"
	case RGBAFrames:
		return "RGBA"
	default:
		panic("unknown frame type")
	}
}
