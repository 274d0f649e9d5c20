package encdec

import (
	"fmt"
	"sync/atomic"
)

type FrameCfg struct {
	Width  int
	Height int
}

type FrameInfo struct {
	FrameCfg
	FrameType FrameType
}

func (i *FrameInfo) Size() int {
	return FrameSize(i.FrameType, i.Width, i.Height)
}

// FrameAllocator hands out new frames. A nil result means the allocation
// failed and the caller has to drop whatever it wanted to store.
type FrameAllocator interface {
	NewFrame(info *FrameInfo) *Frame
}

type DumbFrameAllocator struct {
	LastID atomic.Uint32
}

func (d *DumbFrameAllocator) NewFrame(info *FrameInfo) *Frame {
	f := &Frame{
		Data:   make([]byte, info.Size()),
		Width:  info.Width,
		Height: info.Height,
		Type:   info.FrameType,
		SoulID: d.LastID.Add(1) - 1,
	}
	return f
}

// BudgetFrameAllocator refuses to allocate once MaxBytes bytes are
// outstanding. Release gives the bytes of a consumed frame back.
type BudgetFrameAllocator struct {
	MaxBytes int64

	inUse  atomic.Int64
	lastID atomic.Uint32
}

func (b *BudgetFrameAllocator) NewFrame(info *FrameInfo) *Frame {
	n := int64(info.Size())
	if b.inUse.Add(n) > b.MaxBytes {
		b.inUse.Add(-n)
		return nil
	}
	return &Frame{
		Data:   make([]byte, n),
		Width:  info.Width,
		Height: info.Height,
		Type:   info.FrameType,
		SoulID: b.lastID.Add(1) - 1,
	}
}

func (b *BudgetFrameAllocator) Release(f *Frame) {
	b.inUse.Add(-int64(len(f.Data)))
}

func (b *BudgetFrameAllocator) InUse() int64 {
	return b.inUse.Load()
}

// MaxDimension bounds each side of a frame so that the size of a four byte
// per pixel frame always fits in an int
const MaxDimension = 16384

func (f *FrameCfg) Validate() error {
	if f.Width < 1 {
		return fmt.Errorf("width must be at least 1")
	}
	if f.Height < 1 {
		return fmt.Errorf("height must be at least 1")
	}
	if f.Width > MaxDimension {
		return fmt.Errorf("width must be at most %d", MaxDimension)
	}
	if f.Height > MaxDimension {
		return fmt.Errorf("height must be at most %d", MaxDimension)
	}
	return nil
}
