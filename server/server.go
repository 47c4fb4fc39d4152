package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/footfall/footfall/pkg/nn"
	"github.com/footfall/footfall/server/configdb"
	"github.com/footfall/footfall/server/countdb"
	"github.com/footfall/footfall/server/monitor"
	"github.com/footfall/footfall/server/report"
	"github.com/footfall/footfall/server/videosource"
)

// Server is the top level object that owns the databases, the per-camera
// tracking monitor, the reporter, and the HTTP API.
type Server struct {
	Log      logs.Log
	configDB *configdb.ConfigDB
	countDB  *countdb.CountDB
	monitor  *monitor.Monitor

	reporterLock sync.Mutex
	reporter     *report.Reporter

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
}

// NewServer opens (or creates) the databases inside configDir and wires up
// the monitor and HTTP routes. Cameras are not started here; call
// StartAllCameras once you're ready to process video.
func NewServer(logger logs.Log, configDir string, detector nn.ObjectDetector) (*Server, error) {
	if err := os.MkdirAll(configDir, 0770); err != nil {
		return nil, err
	}
	configDB, err := configdb.NewConfigDB(logger, filepath.Join(configDir, "config.sqlite"))
	if err != nil {
		return nil, err
	}
	countDB, err := countdb.NewCountDB(logger, filepath.Join(configDir, "counts.sqlite"))
	if err != nil {
		return nil, err
	}
	sysCfg, err := configDB.GetConfig()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:      logger,
		configDB: configDB,
		countDB:  countDB,
		monitor:  monitor.NewMonitor(logger, detector, countDB),
		reporter: report.NewReporter(logger, countDB, sysCfg.Report),
	}
	s.setupHttpRoutes()
	return s, nil
}

// StartAllCameras starts the tracking loop for every enabled camera.
// A camera that fails to start (eg unreachable RTSP URL) is logged and
// skipped, so one bad camera doesn't prevent the rest from running.
func (s *Server) StartAllCameras() error {
	cameras, err := s.configDB.ListCameras()
	if err != nil {
		return err
	}
	var firstErr error
	for _, cam := range cameras {
		if !cam.Enabled {
			continue
		}
		if err := s.startCamera(cam); err != nil {
			s.Log.Errorf("Error starting camera %v (%v): %v", cam.ID, cam.Name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Server) startCamera(cam *configdb.Camera) error {
	source, err := videosource.NewCaptureSource(s.Log, cam.URL)
	if err != nil {
		return err
	}
	if err := s.monitor.StartCamera(cam.ID, source, cam.TrackerConfig()); err != nil {
		source.Close()
		return err
	}
	s.Log.Infof("Camera %v (%v) started", cam.ID, cam.Name)
	return nil
}

// restartReporter replaces the running reporter with one using the new config.
func (s *Server) restartReporter(cfg configdb.ReportJSON) {
	s.reporterLock.Lock()
	defer s.reporterLock.Unlock()
	s.reporter.Close()
	s.reporter = report.NewReporter(s.Log, s.countDB, cfg)
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		if sig, ok := <-s.signalIn; ok {
			s.Log.Infof("Received OS signal '%v', shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	s.monitor.StopAll()
	s.reporterLock.Lock()
	s.reporter.Close()
	s.reporterLock.Unlock()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("HTTP server shutdown: %v", err)
		}
	}
	s.Log.Infof("Shutdown complete")
	s.Log.Close()
}
