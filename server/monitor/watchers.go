package monitor

import "github.com/footfall/footfall/pkg/gen"

const WatcherChannelSize = 100

// Register to receive tracking results for a specific camera.
func (m *Monitor) AddWatcher(cameraID int64) chan *TrackState {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *TrackState, WatcherChannelSize)
	m.watchers[cameraID] = append(m.watchers[cameraID], ch)
	return ch
}

// Unregister from tracking results for a specific camera
func (m *Monitor) RemoveWatcher(cameraID int64, ch chan *TrackState) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers[cameraID] {
		if w == ch {
			m.watchers[cameraID] = gen.DeleteFromSliceUnordered(m.watchers[cameraID], i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcher failed to find channel for camera %v", cameraID)
}

func (m *Monitor) sendToWatchers(state *TrackState) {
	m.watchersLock.RLock()
	// If a watcher stalls, we drop frames for it rather than stalling the
	// camera loop. A stalled websocket must never hold up counting.
	for _, ch := range m.watchers[state.CameraID] {
		if len(ch) >= cap(ch)*9/10 {
			m.Log.Warnf("Monitor watcher on camera %v is falling behind. I am going to drop frames.", state.CameraID)
		} else {
			ch <- state
		}
	}
	m.watchersLock.RUnlock()
}
