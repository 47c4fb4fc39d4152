package server

import (
	"image/jpeg"
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/footfall/footfall/server/draw"
)

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{
		Time: time.Now().Unix(),
	})
}

// Latest tracking state for a camera: live tracks, composites, and running totals.
func (s *Server) httpCamState(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	if !s.monitor.IsRunning(id) {
		www.PanicBadRequestf("Camera %v is not running", id)
	}
	state := s.monitor.LatestState(id)
	if state == nil {
		www.PanicBadRequestf("No tracking state available yet")
	}
	www.SendJSON(w, state)
}

// Latest camera image with boundary lines, tracks and totals drawn on top.
// Example: curl -o img.jpg localhost:8080/api/camera/1/snapshot
func (s *Server) httpCamSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	frame := s.monitor.LatestFrame(id)
	if frame == nil {
		www.PanicBadRequestf("No image available yet")
	}
	cfg, err := s.monitor.TrackerConfig(id)
	www.Check(err)
	annotated := draw.Annotate(frame.Image, cfg.Lines, s.monitor.LatestState(id))

	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, annotated, &jpeg.Options{Quality: 85}); err != nil {
		s.Log.Warnf("Failed to encode snapshot for camera %v: %v", id, err)
	}
}

// Recent boundary crossings for one camera, newest first.
// Query params: limit (default 100).
func (s *Server) httpCamEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cameraID := www.ParseID(params.ByName("cameraID"))
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	crossings, err := s.countDB.RecentCrossings(cameraID, limit)
	www.Check(err)
	www.SendJSON(w, crossings)
}

// Aggregate entry/exit totals.
// Query params: camera (0 or absent means all cameras), since (unix seconds, absent means all time).
func (s *Server) httpReportTotals(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cameraID := www.QueryInt64(r, "camera")
	since := time.Time{}
	if v := www.QueryInt64(r, "since"); v != 0 {
		since = time.Unix(v, 0)
	}
	entries, exits, err := s.countDB.Totals(cameraID, since)
	www.Check(err)

	type totalsJSON struct {
		Entries int64 `json:"entries"`
		Exits   int64 `json:"exits"`
		Delta   int64 `json:"delta"`
	}
	www.SendJSON(w, &totalsJSON{
		Entries: entries,
		Exits:   exits,
		Delta:   entries - exits,
	})
}
