package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fosdem/webrendersrc/lib/source/websource"
)

// @Summary	Get the page url and frame size
// @Router		/api/properties [get]
// @Tags		source
// @Produce	json
// @Success	200	{object}	websource.Properties
func (a *Api) getProperties(w http.ResponseWriter, _ *http.Request) {
	a.writeJson(w, a.source.Properties())
}

// @Summary	Change the page url and frame size
// @Description	Only allowed while the source is stopped
// @Router		/api/properties [put]
// @Tags		source
// @Accept		json
// @Produce	json
// @Param		properties	body	websource.Properties	true	"New properties"
// @Success	200	{object}	websource.Properties
// @Failure	400	{string}	string	"The properties are invalid"
// @Failure	409	{string}	string	"The source is running"
func (a *Api) putProperties(w http.ResponseWriter, req *http.Request) {
	props := a.source.Properties()
	err := json.NewDecoder(req.Body).Decode(&props)
	if err != nil {
		http.Error(w, fmt.Sprintf("could not decode json request: %s", err), http.StatusBadRequest)
		return
	}

	err = a.source.SetProperties(props)
	if errors.Is(err, websource.ErrRunning) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid properties: %s", err), http.StatusBadRequest)
		return
	}
	a.log.Info("properties changed", "url", props.URL, "width", props.Width, "height", props.Height)
	a.writeJson(w, a.source.Properties())
}

// @Summary	Negotiated output format
// @Router		/api/caps [get]
// @Tags		source
// @Produce	json
// @Success	200	{object}	websource.Caps
func (a *Api) getCaps(w http.ResponseWriter, _ *http.Request) {
	a.writeJson(w, a.source.Caps())
}

// @Summary	Start rendering the page
// @Router		/api/start [post]
// @Tags		source
// @Success	200
// @Failure	500	{string}	string	"The browser session could not be created"
func (a *Api) handleStart(w http.ResponseWriter, _ *http.Request) {
	err := a.source.Start()
	if err != nil {
		http.Error(w, fmt.Sprintf("could not start source: %s", err), http.StatusInternalServerError)
		return
	}
	a.writeOk(w)
}

// @Summary	Stop rendering the page
// @Router		/api/stop [post]
// @Tags		source
// @Success	200
func (a *Api) handleStop(w http.ResponseWriter, _ *http.Request) {
	err := a.source.Stop()
	if err != nil {
		http.Error(w, fmt.Sprintf("could not stop source: %s", err), http.StatusInternalServerError)
		return
	}
	a.writeOk(w)
}
