package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/footfall/footfall/server/configdb"
	"github.com/footfall/footfall/server/track"
)

func (s *Server) httpConfigGetCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cam, err := s.configDB.GetCamera(id)
	www.Check(err)
	www.SendJSON(w, cam)
}

func (s *Server) httpConfigGetCameras(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cams, err := s.configDB.ListCameras()
	www.Check(err)
	www.SendJSON(w, cams)
}

func (s *Server) httpConfigAddCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cam := configdb.Camera{}
	www.ReadJSON(w, r, &cam, 1024*1024)
	if cam.Name == "" {
		www.PanicBadRequestf("Camera name may not be empty")
	}
	if cam.URL == "" {
		www.PanicBadRequestf("Camera URL may not be empty")
	}
	cfg := cam.TrackerConfig()
	if err := cfg.Validate(); err != nil {
		www.PanicBadRequestf("Invalid tracker config: %v", err)
	}
	cam.ID = 0
	now := dbh.MakeIntTime(time.Now())
	cam.CreatedAt = now
	cam.UpdatedAt = now
	www.Check(s.configDB.DB.Create(&cam).Error)
	s.Log.Infof("Added camera %v (%v)", cam.ID, cam.Name)

	if cam.Enabled {
		if err := s.startCamera(&cam); err != nil {
			s.Log.Warnf("New camera %v saved, but failed to start: %v", cam.ID, err)
		}
	}
	www.SendID(w, cam.ID)
}

func (s *Server) httpConfigChangeCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	camNew := configdb.Camera{}
	www.ReadJSON(w, r, &camNew, 1024*1024)
	camNew.ID = id

	camOld, err := s.configDB.GetCamera(id)
	www.Check(err)

	cfg := camNew.TrackerConfig()
	if err := cfg.Validate(); err != nil {
		www.PanicBadRequestf("Invalid tracker config: %v", err)
	}

	camNew.CreatedAt = camOld.CreatedAt
	camNew.UpdatedAt = dbh.MakeIntTime(time.Now())
	www.Check(s.configDB.DB.Save(&camNew).Error)

	// Reconcile the running state with the new config. A URL change needs a
	// full restart; a tracker change can be applied live.
	running := s.monitor.IsRunning(id)
	switch {
	case running && (!camNew.Enabled || camNew.URL != camOld.URL):
		s.monitor.StopCamera(id)
		if camNew.Enabled {
			if err := s.startCamera(&camNew); err != nil {
				s.Log.Warnf("Camera %v saved, but failed to restart: %v", id, err)
			}
		}
	case running:
		www.Check(s.monitor.SetTrackerConfig(id, cfg))
	case camNew.Enabled:
		if err := s.startCamera(&camNew); err != nil {
			s.Log.Warnf("Camera %v saved, but failed to start: %v", id, err)
		}
	}

	www.SendOK(w)
}

func (s *Server) httpConfigRemoveCamera(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cam, err := s.configDB.GetCamera(id)
	www.Check(err)
	s.monitor.StopCamera(id)
	www.Check(s.configDB.DB.Delete(cam).Error)
	s.Log.Infof("Removed camera %v (%v)", cam.ID, cam.Name)
	www.SendOK(w)
}

func (s *Server) httpConfigGetTracker(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	// Prefer the live config, which may have been changed since startup.
	if cfg, err := s.monitor.TrackerConfig(id); err == nil {
		www.SendJSON(w, &cfg)
		return
	}
	cam, err := s.configDB.GetCamera(id)
	www.Check(err)
	cfg := cam.TrackerConfig()
	www.SendJSON(w, &cfg)
}

func (s *Server) httpConfigSetTracker(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cfg := track.Config{}
	www.ReadJSON(w, r, &cfg, 1024*1024)
	if err := cfg.Validate(); err != nil {
		www.PanicBadRequestf("Invalid tracker config: %v", err)
	}

	cam, err := s.configDB.GetCamera(id)
	www.Check(err)
	cam.SetTrackerConfig(cfg)
	cam.UpdatedAt = dbh.MakeIntTime(time.Now())
	www.Check(s.configDB.DB.Save(cam).Error)

	if s.monitor.IsRunning(id) {
		www.Check(s.monitor.SetTrackerConfig(id, cfg))
	}
	www.SendOK(w)
}

func (s *Server) httpCamStart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	cam, err := s.configDB.GetCamera(id)
	www.Check(err)
	if s.monitor.IsRunning(id) {
		www.SendOK(w)
		return
	}
	www.Check(s.startCamera(cam))
	www.SendOK(w)
}

func (s *Server) httpCamStop(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("cameraID"))
	s.monitor.StopCamera(id)
	www.SendOK(w)
}
