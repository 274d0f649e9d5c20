package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsQueueLen     = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(req *http.Request) bool {
		return true
	},
}

// @Summary	Open websocket for realtime status information
// @Router		/api/ws [get]
// @Param		Upgrade	header	string	true	"websocket"
// @Tags		base
// @Success	101
func (a *Api) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		a.log.Warn("couldn't make websocket", "error", err)
		return
	}
	defer func(ws *websocket.Conn) {
		err := ws.Close()
		if err != nil {
			a.log.Debug("could not close websocket", "error", err)
		}
	}(ws)

	events := make(chan []byte, wsQueueLen)
	a.wsMutex.Lock()
	a.wsClients[ws] = events
	a.Stats.SetWsClients(len(a.wsClients))
	a.wsMutex.Unlock()

	done := make(chan struct{})
	go a.websocketWriter(ws, events, done)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			break
		}
		a.log.Debug("websocket message ignored", "msg", string(msg))
	}
	close(done)

	a.wsMutex.Lock()
	delete(a.wsClients, ws)
	a.Stats.SetWsClients(len(a.wsClients))
	a.wsMutex.Unlock()
}

// websocketWriter is the only goroutine writing to ws
func (a *Api) websocketWriter(ws *websocket.Conn, events chan []byte, done chan struct{}) {
	if err := a.send(ws, StateEvent{Event: "state", Running: a.source.Running()}); err != nil {
		return
	}

	pingTicker := time.NewTicker(2 * time.Second)
	defer pingTicker.Stop()
	for {
		select {
		case <-done:
			return
		case packet := <-events:
			if err := a.write(ws, packet); err != nil {
				a.log.Debug("could not send event", "error", err)
				return
			}
		case <-pingTicker.C:
			if err := a.send(ws, a.Stats.Get()); err != nil {
				return
			}
		}
	}
}

func (a *Api) send(ws *websocket.Conn, v any) error {
	packet, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode packet: %w", err)
	}
	return a.write(ws, packet)
}

func (a *Api) write(ws *websocket.Conn, packet []byte) error {
	err := ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, packet)
}

// broadcast queues v for every client without waiting on any of them. A
// client whose queue is full misses the event.
func (a *Api) broadcast(v any) {
	packet, err := json.Marshal(v)
	if err != nil {
		a.log.Error("could not encode event", "error", err)
		return
	}

	a.wsMutex.Lock()
	defer a.wsMutex.Unlock()
	for _, events := range a.wsClients {
		select {
		case events <- packet:
		default:
			a.log.Warn("websocket client is not keeping up, dropping event")
		}
	}
}
