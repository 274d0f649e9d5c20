package websource

import (
	"fmt"
	"time"
)

const (
	FramerateNum = 30
	FramerateDen = 1
)

// Caps describe the one format the source produces
type Caps struct {
	Format       string `json:"format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FramerateNum int    `json:"framerate_num"`
	FramerateDen int    `json:"framerate_den"`
	ParNum       int    `json:"par_num"`
	ParDen       int    `json:"par_den"`
	Live         bool   `json:"live"`
	Seekable     bool   `json:"seekable"`
}

func NewCaps(width, height int) Caps {
	return Caps{
		Format:       "BGRA",
		Width:        width,
		Height:       height,
		FramerateNum: FramerateNum,
		FramerateDen: FramerateDen,
		ParNum:       1,
		ParDen:       1,
		Live:         true,
		Seekable:     false,
	}
}

// String renders the caps the way GStreamer parses them
func (c Caps) String() string {
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/%d,pixel-aspect-ratio=%d/%d",
		c.Format, c.Width, c.Height, c.FramerateNum, c.FramerateDen, c.ParNum, c.ParDen)
}

func (c Caps) FrameDuration() time.Duration {
	return time.Second * time.Duration(c.FramerateDen) / time.Duration(c.FramerateNum)
}

func (c Caps) FrameSize() int {
	return c.Width * c.Height * 4
}
