package api

import (
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/fosdem/webrendersrc/lib/encdec"
)

type MediaResponseType string

const (
	JPEG MediaResponseType = "jpeg"
	PNG  MediaResponseType = "png"
)

// @Summary	fetch the last frame sent to the sinks
// @Router		/api/frame [get]
// @Router		/api/frame/{format} [get]
// @Tags		media
// @Param		format	path	MediaResponseType	false	"The image type to return"
// @Success	200
// @Failure	400	{string}	string	"The requested image format is not supported"
// @Failure	424	{string}	string	"No frame was produced yet"
// @Failure	500	{string}	string	"The frame could not be encoded"
// @Produce	jpeg
// @Produce	png
func (a *Api) handleFrame(w http.ResponseWriter, req *http.Request) {
	format := MediaResponseType(req.PathValue("format"))
	if format == "" {
		format = JPEG
	}
	if format != JPEG && format != PNG {
		http.Error(w, "Unsupported format", http.StatusBadRequest)
		return
	}

	data, caps, ok := a.frames.LastFrame()
	if !ok {
		http.Error(w, "No frame returned", http.StatusFailedDependency)
		return
	}
	img, err := encdec.ImageFromBGRA(data, caps.Width, caps.Height)
	if err != nil {
		http.Error(w, "Could not convert this frame", http.StatusInternalServerError)
		return
	}

	switch format {
	case JPEG:
		w.Header().Set("Content-Type", "image/jpeg")
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 80})
	case PNG:
		w.Header().Set("Content-Type", "image/png")
		err = png.Encode(w, img)
	}
	if err != nil {
		a.log.Error("could not encode frame", "format", format, "error", err)
	}
}
