package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	paints  int
	created int
	closed  int
}

func (r *recordingListener) GetViewRect() Rect {
	return Rect{Width: 10, Height: 20}
}

func (r *recordingListener) OnPaint(PaintElementType, []Rect, []byte, int, int) {
	r.paints++
}

func (r *recordingListener) OnAfterCreated() { r.created++ }
func (r *recordingListener) OnBeforeClose()  { r.closed++ }

type paintOnlyListener struct{ paints int }

func (p *paintOnlyListener) GetViewRect() Rect { return Rect{} }
func (p *paintOnlyListener) OnPaint(PaintElementType, []Rect, []byte, int, int) {
	p.paints++
}

func TestClientForwards(t *testing.T) {
	l := &recordingListener{}
	c := NewClient(l)

	rect, ok := c.GetViewRect()
	assert.True(t, ok)
	assert.Equal(t, Rect{Width: 10, Height: 20}, rect)

	c.OnPaint(PaintElementView, nil, nil, 0, 0)
	c.OnPaint(PaintElementPopup, nil, nil, 0, 0)
	assert.Equal(t, 1, l.paints)

	c.OnAfterCreated()
	c.OnBeforeClose()
	assert.Equal(t, 1, l.created)
	assert.Equal(t, 1, l.closed)
}

func TestClientWithoutLifeSpanListener(t *testing.T) {
	l := &paintOnlyListener{}
	c := NewClient(l)
	assert.NotPanics(t, func() {
		c.OnAfterCreated()
		c.OnBeforeClose()
	})
	c.OnPaint(PaintElementView, nil, nil, 0, 0)
	assert.Equal(t, 1, l.paints)
}

func TestClientWithoutListener(t *testing.T) {
	c := NewClient(nil)
	_, ok := c.GetViewRect()
	assert.False(t, ok)
	assert.NotPanics(t, func() {
		c.OnPaint(PaintElementView, nil, nil, 0, 0)
		c.OnAfterCreated()
	})
}
