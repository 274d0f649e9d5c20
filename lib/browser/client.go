package browser

// Listener receives the render callbacks a Client forwards
type Listener interface {
	GetViewRect() Rect
	OnPaint(typ PaintElementType, dirty []Rect, buffer []byte, width, height int)
}

// LifeSpanListener is optionally implemented by a Listener that wants to
// hear about browser creation and teardown.
type LifeSpanListener interface {
	OnAfterCreated()
	OnBeforeClose()
}

// Client adapts the engine's RenderHandler callbacks to a Listener. Only
// paints of the main view are passed on.
type Client struct {
	listener Listener
}

func NewClient(listener Listener) *Client {
	return &Client{listener: listener}
}

func (c *Client) GetViewRect() (Rect, bool) {
	if c.listener == nil {
		return Rect{}, false
	}
	return c.listener.GetViewRect(), true
}

func (c *Client) OnPaint(typ PaintElementType, dirty []Rect, buffer []byte, width, height int) {
	if typ != PaintElementView {
		return
	}
	if c.listener != nil {
		c.listener.OnPaint(typ, dirty, buffer, width, height)
	}
}

func (c *Client) OnAfterCreated() {
	if l, ok := c.listener.(LifeSpanListener); ok {
		l.OnAfterCreated()
	}
}

func (c *Client) OnBeforeClose() {
	if l, ok := c.listener.(LifeSpanListener); ok {
		l.OnBeforeClose()
	}
}
