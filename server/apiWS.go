package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Streams tracking state over a websocket, one TEXT message per processed
// frame. The client doesn't need to send anything; we read from the socket
// only to notice when it closes.
func (s *Server) httpCamTrackStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	if !s.monitor.IsRunning(id) {
		www.PanicBadRequestf("Camera %v is not running", id)
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Websocket upgrade failed for camera %v: %v", id, err)
		return
	}
	defer conn.Close()

	states := s.monitor.AddWatcher(id)
	defer s.monitor.RemoveWatcher(id, states)

	closed := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	s.Log.Infof("Websocket track stream started for camera %v", id)
	nSent := 0
	for {
		select {
		case state := <-states:
			if err := conn.WriteJSON(state); err != nil {
				s.Log.Infof("Websocket track stream for camera %v ended after %v messages: %v", id, nSent, err)
				return
			}
			nSent++
		case <-closed:
			s.Log.Infof("Websocket track stream for camera %v closed by client after %v messages", id, nSent)
			return
		}
	}
}
