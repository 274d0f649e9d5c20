//go:build omt

package libomt

/*
#cgo pkg-config: libomt
#include <stdlib.h>
#include <string.h>
#include "libomt.h"
*/
import "C"
import (
	"fmt"
	"unsafe"
)

type Quality int32

const (
	QualityDefault Quality = C.OMTQuality_Default
	QualityLow     Quality = C.OMTQuality_Low
	QualityMedium  Quality = C.OMTQuality_Medium
	QualityHigh    Quality = C.OMTQuality_High
)

type Codec int

const (
	CodecBGRA Codec = C.OMTCodec_BGRA
	CodecUYVY Codec = C.OMTCodec_UYVY
)

type ColorSpace int

const (
	ColorSpaceUndefined ColorSpace = C.OMTColorSpace_Undefined
	ColorSpaceBT601     ColorSpace = C.OMTColorSpace_BT601
	ColorSpaceBT709     ColorSpace = C.OMTColorSpace_BT709
)

// VideoFrame describes the video frames handed to Send
type VideoFrame struct {
	Width       int
	Height      int
	Codec       Codec
	ColorSpace  ColorSpace
	Stride      int
	FrameRateN  int
	FrameRateD  int
	AspectRatio float32
	// Timestamp is in 100ns units, -1 lets the library pick one
	Timestamp int64
}

type Statistics struct {
	BytesSent          int64
	BytesSentSinceLast int64
	Frames             int64
	FramesDropped      int64
}

type Sender struct {
	send *C.omt_send_t
	mf   *C.OMTMediaFrame
	size int
}

func NewSender(name string, quality Quality) (*Sender, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	send := C.omt_send_create(cname, C.OMTQuality(quality))
	if send == nil {
		return nil, fmt.Errorf("could not create OMT sender %s", name)
	}
	return &Sender{send: send}, nil
}

func (s *Sender) Send(frame *VideoFrame, data []byte) {
	if len(data) == 0 {
		return
	}
	if s.mf == nil {
		s.mf = (*C.OMTMediaFrame)(C.calloc(1, C.size_t(unsafe.Sizeof(C.OMTMediaFrame{}))))
	}
	if s.size != len(data) {
		C.free(s.mf.Data)
		s.mf.Data = C.malloc(C.size_t(len(data)))
		s.size = len(data)
	}

	s.mf.Type = C.OMTFrameType_Video
	s.mf.Timestamp = C.int64_t(frame.Timestamp)
	s.mf.Codec = uint32(frame.Codec)
	s.mf.Width = C.int(frame.Width)
	s.mf.Height = C.int(frame.Height)
	s.mf.Stride = C.int(frame.Stride)
	s.mf.Flags = 0
	s.mf.FrameRateN = C.int(frame.FrameRateN)
	s.mf.FrameRateD = C.int(frame.FrameRateD)
	s.mf.AspectRatio = C.float(frame.AspectRatio)
	s.mf.ColorSpace = uint32(frame.ColorSpace)
	s.mf.DataLength = C.int(len(data))
	C.memcpy(s.mf.Data, unsafe.Pointer(&data[0]), C.size_t(len(data)))

	C.omt_send(s.send, s.mf)
}

func (s *Sender) Address() string {
	buffer := (*C.char)(C.malloc(1024))
	defer C.free(unsafe.Pointer(buffer))
	C.omt_send_getaddress(s.send, buffer, 1024)
	return C.GoString(buffer)
}

func (s *Sender) Connections() int {
	return int(C.omt_send_connections(s.send))
}

func (s *Sender) VideoStatistics() Statistics {
	temp := C.OMTStatistics{}
	C.omt_send_getvideostatistics(s.send, &temp)
	return Statistics{
		BytesSent:          int64(temp.BytesSent),
		BytesSentSinceLast: int64(temp.BytesSentSinceLast),
		Frames:             int64(temp.Frames),
		FramesDropped:      int64(temp.FramesDropped),
	}
}

func (s *Sender) Close() {
	if s.send != nil {
		C.omt_send_destroy(s.send)
		s.send = nil
	}
	if s.mf != nil {
		C.free(s.mf.Data)
		C.free(unsafe.Pointer(s.mf))
		s.mf = nil
		s.size = 0
	}
}
