package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fosdem/webrendersrc/lib/api/docs"
	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/metrics"
	"github.com/fosdem/webrendersrc/lib/source/websource"
	"github.com/fosdem/webrendersrc/lib/stats"
)

// Source is the part of the web source the API controls
type Source interface {
	Properties() websource.Properties
	SetProperties(websource.Properties) error
	Start() error
	Stop() error
	Running() bool
	Caps() websource.Caps
	OnStateChange(func(running bool))
}

// FrameProvider hands out the most recently produced frame
type FrameProvider interface {
	LastFrame() ([]byte, websource.Caps, bool)
}

// @title			webrendersrc
// @version		1.0
// @description	Control API for the web page video source
// @BasePath		/
type Api struct {
	srv    http.Server
	mux    *http.ServeMux
	cfg    *config.ApiCfg
	source Source
	frames FrameProvider

	Stats *stats.Stats

	// called when a client asks the process to exit
	OnKill func()

	// guards wsClients; each client's queue is drained by its writer
	wsMutex   sync.Mutex
	wsClients map[*websocket.Conn]chan []byte

	log *slog.Logger
}

type StateEvent struct {
	Event   string `json:"event" example:"state"`
	Running bool   `json:"running"`
}

func New(cfg *config.ApiCfg, src Source, frames FrameProvider, st *stats.Stats) *Api {
	a := &Api{}
	a.cfg = cfg
	a.mux = http.NewServeMux()
	a.source = src
	a.frames = frames
	a.srv.Addr = cfg.Bind
	a.srv.Handler = a.mux
	a.wsClients = make(map[*websocket.Conn]chan []byte)
	a.log = slog.With("module", "api")

	if st == nil {
		st = stats.New()
	}
	a.Stats = st
	a.Stats.SetRunning(src.Running())

	src.OnStateChange(func(running bool) {
		a.Stats.SetRunning(running)
		a.log.Info("source state changed", "running", running)
		a.broadcast(StateEvent{Event: "state", Running: running})
	})

	a.routes()
	return a
}

func (a *Api) routes() {
	if a.cfg.EnableProfiler {
		a.mux.HandleFunc("/prof", a.profileCPU)
	}
	a.mux.HandleFunc("/api/kill", a.suicide)
	a.mux.HandleFunc("GET /api/stats", a.getStats)
	a.mux.HandleFunc("GET /api/caps", a.getCaps)
	a.mux.HandleFunc("GET /api/properties", a.getProperties)
	a.mux.HandleFunc("PUT /api/properties", a.putProperties)
	a.mux.HandleFunc("POST /api/start", a.handleStart)
	a.mux.HandleFunc("POST /api/stop", a.handleStop)
	a.mux.HandleFunc("GET /api/frame", a.handleFrame)
	a.mux.HandleFunc("GET /api/frame/{format}", a.handleFrame)
	a.mux.HandleFunc("/api/ws", a.handleWebsocket)
	a.mux.Handle("/metrics", metrics.Handler())
	a.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
	))
}

func (a *Api) Handler() http.Handler {
	return a.mux
}

func (a *Api) Serve() error {
	a.log.Info("starting web server", "bind", a.cfg.Bind)
	err := a.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *Api) Shutdown(ctx context.Context) error {
	a.wsMutex.Lock()
	for ws := range a.wsClients {
		ws.Close()
	}
	a.wsMutex.Unlock()
	return a.srv.Shutdown(ctx)
}

// @Summary	Record a CPU profile for 10 seconds
// @Router		/prof [get]
// @Tags		debug
// @Produce	octet-stream
// @Success	200
func (a *Api) profileCPU(w http.ResponseWriter, _ *http.Request) {
	err := pprof.StartCPUProfile(w)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not start CPU profile: %s", err), http.StatusInternalServerError)
		return
	}
	time.Sleep(10 * time.Second)
	pprof.StopCPUProfile()
}

// @Summary	Shut the process down
// @Router		/api/kill [post]
// @Tags		base
// @Success	200
func (a *Api) suicide(w http.ResponseWriter, _ *http.Request) {
	a.log.Warn("shutting down as per api request")
	if a.OnKill != nil {
		a.OnKill()
	}
	a.writeOk(w)
}

// @Summary	Frame rate and session statistics
// @Router		/api/stats [get]
// @Tags		base
// @Produce	json
// @Success	200	{object}	stats.Snapshot
func (a *Api) getStats(w http.ResponseWriter, _ *http.Request) {
	a.writeJson(w, a.Stats.Get())
}

func (a *Api) writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	err := encoder.Encode(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("could not encode response: %s", err), http.StatusInternalServerError)
		return
	}
}

func (a *Api) writeOk(w http.ResponseWriter) {
	_, err := fmt.Fprintf(w, "\"ok\"\n")
	if err != nil {
		a.log.Error("could not write response", "error", err)
	}
}

func ServeInBackground(cfg *config.ApiCfg, src Source, frames FrameProvider, st *stats.Stats, onKill func()) *Api {
	if cfg == nil {
		return nil
	}
	theApi := New(cfg, src, frames, st)
	theApi.OnKill = onKill
	go func() {
		err := theApi.Serve()
		if err != nil {
			theApi.log.Error("could not start web server", "error", err)
			if theApi.OnKill != nil {
				theApi.OnKill()
			}
		}
	}()
	return theApi
}
