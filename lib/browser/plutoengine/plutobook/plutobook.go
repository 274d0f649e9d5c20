//go:build plutobook

package plutobook

/*
#cgo pkg-config: plutobook
#include <stdlib.h>
#include <plutobook/plutobook.h>

typedef const char* ccharptr_t;
extern plutobook_resource_data_t* goFetcherCallback(void* closure, ccharptr_t url);

__attribute__((weak))
plutobook_resource_data_t* fetchCallback(void* closure, const char* url) {
	return goFetcherCallback(closure, url);
}

*/
import "C"
import (
	"fmt"
	"unsafe"

	gopointer "github.com/mattn/go-pointer"
)

const Pixels = C.PLUTOBOOK_UNITS_PX

type Book struct {
	book     *C.plutobook_t
	fetcher  Fetcher
	fetchRef unsafe.Pointer
}

type Resource struct {
	resource *C.plutobook_resource_data_t
}

type Fetcher func(url string) *Resource

type MediaType C.plutobook_media_type_t

const (
	MediaTypePrint  MediaType = C.PLUTOBOOK_MEDIA_TYPE_PRINT
	MediaTypeScreen MediaType = C.PLUTOBOOK_MEDIA_TYPE_SCREEN
)

func VersionString() string {
	return C.GoString(C.plutobook_version_string())
}

func lastError() string {
	return C.GoString(C.plutobook_get_error_message())
}

// New creates a book with a single screen-sized page and no margins
func New(width, height int, mediaType MediaType) *Book {
	size := C.plutobook_page_size_t{
		width:  C.float(float32(width) * Pixels),
		height: C.float(float32(height) * Pixels),
	}
	margins := C.plutobook_page_margins_t{}
	return &Book{
		book: C.plutobook_create(size, margins, C.plutobook_media_type_t(mediaType)),
	}
}

func (b *Book) LoadURL(url, userStyle, userScript string) error {
	curl := C.CString(url)
	defer C.free(unsafe.Pointer(curl))
	cstyle := C.CString(userStyle)
	defer C.free(unsafe.Pointer(cstyle))
	cscript := C.CString(userScript)
	defer C.free(unsafe.Pointer(cscript))

	if !C.plutobook_load_url(b.book, curl, cstyle, cscript) {
		return fmt.Errorf("could not load %s: %s", url, lastError())
	}
	return nil
}

// SetFetcher routes every resource request of the book through fetcher
func (b *Book) SetFetcher(fetcher Fetcher) {
	b.fetcher = fetcher
	if b.fetchRef == nil {
		b.fetchRef = gopointer.Save(b)
	}
	C.plutobook_set_custom_resource_fetcher(b.book, C.plutobook_resource_fetch_callback_t(C.fetchCallback), b.fetchRef)
}

// Fetch does a resource request with the library's own fetcher
func Fetch(url string) *Resource {
	curl := C.CString(url)
	defer C.free(unsafe.Pointer(curl))
	return &Resource{resource: C.plutobook_fetch_url(curl)}
}

//export goFetcherCallback
func goFetcherCallback(closure unsafe.Pointer, url C.ccharptr_t) *C.plutobook_resource_data_t {
	book := gopointer.Restore(closure).(*Book)
	res := book.fetcher(C.GoString(url))
	if res == nil {
		return nil
	}
	return res.resource
}

func (b *Book) RenderRect(canvas *Canvas, width, height int) {
	C.plutobook_render_document_rect(b.book, canvas.canvas, 0, 0, C.float(width), C.float(height))
}

func (b *Book) Destroy() {
	if b.fetchRef != nil {
		gopointer.Unref(b.fetchRef)
		b.fetchRef = nil
	}
	if b.book != nil {
		C.plutobook_destroy(b.book)
		b.book = nil
	}
}

// Canvas is an ARGB32 image surface. In memory on little endian hosts its
// pixels are laid out as BGRA.
type Canvas struct {
	canvas *C.plutobook_canvas_t
	width  int
	height int
}

func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		canvas: C.plutobook_image_canvas_create(C.int(width), C.int(height), C.PLUTOBOOK_IMAGE_FORMAT_ARGB32),
		width:  width,
		height: height,
	}
}

func (c *Canvas) Clear(r, g, b, a float32) {
	C.plutobook_canvas_clear_surface(c.canvas, C.float(r), C.float(g), C.float(b), C.float(a))
}

// CopyTo copies the surface pixels into dst, which must hold width*height*4
// bytes.
func (c *Canvas) CopyTo(dst []byte) {
	size := c.width * c.height * 4
	data := C.plutobook_image_canvas_get_data(c.canvas)
	copy(dst[:size], unsafe.Slice((*byte)(unsafe.Pointer(data)), size))
}

func (c *Canvas) Destroy() {
	if c.canvas != nil {
		C.plutobook_canvas_destroy(c.canvas)
		c.canvas = nil
	}
}
