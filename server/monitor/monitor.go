package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/footfall/footfall/pkg/nn"
	"github.com/footfall/footfall/server/countdb"
	"github.com/footfall/footfall/server/track"
	"github.com/footfall/footfall/server/videosource"
)

// TrackState is the output of one processed frame, delivered to watchers.
type TrackState struct {
	CameraID int64              `json:"cameraID"`
	Result   *track.FrameResult `json:"result"`
}

// Monitor runs one tracking loop per enabled camera: pull the latest frame,
// run the detector, feed the tracker, persist crossings, and fan the result
// out to watchers.
type Monitor struct {
	Log      logs.Log
	detector nn.ObjectDetector
	countDB  *countdb.CountDB
	params   *nn.DetectionParams

	camerasLock sync.Mutex
	cameras     map[int64]*cameraMonitor

	watchersLock sync.RWMutex
	watchers     map[int64][]chan *TrackState

	registry        *prometheus.Registry
	framesProcessed *prometheus.CounterVec
	crossings       *prometheus.CounterVec
	liveTracks      *prometheus.GaugeVec
}

// cameraMonitor is the state for one running camera loop.
type cameraMonitor struct {
	id         int64
	source     videosource.Source
	tracker    *track.Tracker
	lastResult atomic.Pointer[track.FrameResult]
	lastFrame  atomic.Pointer[videosource.Frame]
	mustStop   atomic.Bool
	stopped    chan struct{}
}

func NewMonitor(log logs.Log, detector nn.ObjectDetector, countDB *countdb.CountDB) *Monitor {
	m := &Monitor{
		Log:      log,
		detector: detector,
		countDB:  countDB,
		params:   nn.NewDetectionParams(),
		cameras:  map[int64]*cameraMonitor{},
		watchers: map[int64][]chan *TrackState{},
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footfall_frames_processed_total",
			Help: "Frames run through detection and tracking, per camera.",
		}, []string{"camera"}),
		crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footfall_crossings_total",
			Help: "Boundary crossings counted, per camera and direction.",
		}, []string{"camera", "direction"}),
		liveTracks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "footfall_live_tracks",
			Help: "Number of live tracks, per camera.",
		}, []string{"camera"}),
	}
	m.registry.MustRegister(m.framesProcessed, m.crossings, m.liveTracks)
	return m
}

// Registry is the prometheus registry holding the monitor's metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// StartCamera begins monitoring a camera. The monitor takes ownership of
// source, and closes it when the camera is stopped.
func (m *Monitor) StartCamera(cameraID int64, source videosource.Source, cfg track.Config) error {
	tracker, err := track.NewTracker(cfg)
	if err != nil {
		return err
	}

	m.camerasLock.Lock()
	defer m.camerasLock.Unlock()
	if m.cameras[cameraID] != nil {
		return fmt.Errorf("Camera %v is already being monitored", cameraID)
	}
	cam := &cameraMonitor{
		id:      cameraID,
		source:  source,
		tracker: tracker,
		stopped: make(chan struct{}),
	}
	m.cameras[cameraID] = cam
	go m.runCamera(cam)
	m.Log.Infof("Started monitoring camera %v", cameraID)
	return nil
}

// StopCamera stops monitoring a camera and waits for its loop to exit.
// Returns false if the camera was not being monitored.
func (m *Monitor) StopCamera(cameraID int64) bool {
	m.camerasLock.Lock()
	cam := m.cameras[cameraID]
	delete(m.cameras, cameraID)
	m.camerasLock.Unlock()
	if cam == nil {
		return false
	}
	cam.mustStop.Store(true)
	<-cam.stopped
	cam.source.Close()
	m.liveTracks.DeleteLabelValues(cameraIDLabel(cameraID))
	m.Log.Infof("Stopped monitoring camera %v", cameraID)
	return true
}

// StopAll stops every camera. Called at shutdown.
func (m *Monitor) StopAll() {
	m.camerasLock.Lock()
	ids := make([]int64, 0, len(m.cameras))
	for id := range m.cameras {
		ids = append(ids, id)
	}
	m.camerasLock.Unlock()
	for _, id := range ids {
		m.StopCamera(id)
	}
}

func (m *Monitor) IsRunning(cameraID int64) bool {
	m.camerasLock.Lock()
	defer m.camerasLock.Unlock()
	return m.cameras[cameraID] != nil
}

// SetTrackerConfig swaps the tracking config of a running camera.
// Takes effect on the next frame.
func (m *Monitor) SetTrackerConfig(cameraID int64, cfg track.Config) error {
	cam := m.camera(cameraID)
	if cam == nil {
		return fmt.Errorf("Camera %v is not being monitored", cameraID)
	}
	return cam.tracker.SetConfig(cfg)
}

// TrackerConfig returns the active tracking config of a running camera.
func (m *Monitor) TrackerConfig(cameraID int64) (track.Config, error) {
	cam := m.camera(cameraID)
	if cam == nil {
		return track.Config{}, fmt.Errorf("Camera %v is not being monitored", cameraID)
	}
	return cam.tracker.Config(), nil
}

// LatestState returns the result of the most recently processed frame,
// or nil if nothing has been processed yet.
func (m *Monitor) LatestState(cameraID int64) *track.FrameResult {
	cam := m.camera(cameraID)
	if cam == nil {
		return nil
	}
	return cam.lastResult.Load()
}

// LatestFrame returns the most recently processed video frame. Used for
// snapshots.
func (m *Monitor) LatestFrame(cameraID int64) *videosource.Frame {
	cam := m.camera(cameraID)
	if cam == nil {
		return nil
	}
	return cam.lastFrame.Load()
}

func (m *Monitor) camera(cameraID int64) *cameraMonitor {
	m.camerasLock.Lock()
	defer m.camerasLock.Unlock()
	return m.cameras[cameraID]
}

// How long to sleep when the source has no new frame. Cameras run at
// 10-30 FPS, so 15ms keeps latency low without spinning.
const idleSleep = 15 * time.Millisecond

func (m *Monitor) runCamera(cam *cameraMonitor) {
	defer close(cam.stopped)

	camLabel := cameraIDLabel(cam.id)
	prevSeq := int64(0)
	lastErrAt := time.Time{}

	for !cam.mustStop.Load() {
		frame := cam.source.Latest(prevSeq)
		if frame == nil {
			time.Sleep(idleSleep)
			continue
		}
		prevSeq = frame.Seq

		objects, err := m.detector.DetectObjects(frame.Image, m.params)
		if err != nil {
			if time.Now().Sub(lastErrAt) > 15*time.Second {
				m.Log.Errorf("Detection failed on camera %v: %v", cam.id, err)
				lastErrAt = time.Now()
			}
			continue
		}

		result := cam.tracker.ProcessFrame(frame.PTS, objects)
		cam.lastResult.Store(result)
		cam.lastFrame.Store(frame)

		m.framesProcessed.WithLabelValues(camLabel).Inc()
		m.liveTracks.WithLabelValues(camLabel).Set(float64(len(result.Tracks)))
		for _, ev := range result.Events {
			m.crossings.WithLabelValues(camLabel, ev.Direction.String()).Inc()
		}

		if len(result.Events) > 0 && m.countDB != nil {
			if err := m.countDB.AddCrossings(cam.id, result.Events); err != nil {
				m.Log.Errorf("Failed to save crossings for camera %v: %v", cam.id, err)
			}
		}

		m.sendToWatchers(&TrackState{CameraID: cam.id, Result: result})
	}
}

func cameraIDLabel(id int64) string {
	return fmt.Sprintf("%d", id)
}
