package videosource

import (
	"fmt"
	"image"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"
)

// Frame is one decoded video frame. Seq increases by one for every frame
// captured, so a consumer can tell whether it has already seen the latest.
type Frame struct {
	Image image.Image
	Seq   int64
	PTS   time.Time
}

// Source delivers the most recent frame from a video stream.
// The capture side overwrites a single latest-frame slot, so a consumer
// that polls slower than the camera's frame rate sees only the newest
// frame, and never builds up a backlog.
type Source interface {
	// Latest returns the newest frame if its sequence number is greater
	// than prevSeq, or nil if no newer frame has arrived.
	Latest(prevSeq int64) *Frame
	Close()
}

// frameBuffer is the single latest-frame slot shared between the capture
// goroutine and the consumer.
type frameBuffer struct {
	lock   sync.Mutex
	latest *Frame
	seq    int64
}

func (b *frameBuffer) put(img image.Image, pts time.Time) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.seq++
	b.latest = &Frame{
		Image: img,
		Seq:   b.seq,
		PTS:   pts,
	}
}

func (b *frameBuffer) latestAfter(prevSeq int64) *Frame {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.latest == nil || b.latest.Seq <= prevSeq {
		return nil
	}
	return b.latest
}

// How many consecutive failed reads before we tear the capture down and
// reopen it. RTSP streams drop; a file reaching EOF also lands here.
const maxFailedReads = 10

const reopenDelay = 3 * time.Second

// CaptureSource reads frames from an RTSP stream, local device, or video
// file via OpenCV, on its own goroutine.
type CaptureSource struct {
	log      logs.Log
	source   string
	buf      frameBuffer
	mustStop atomic.Bool
	stopped  chan struct{}
}

// NewCaptureSource opens the given source and starts capturing.
// source is an RTSP/HTTP URL, a file path, or a numeric local device index.
func NewCaptureSource(log logs.Log, source string) (*CaptureSource, error) {
	capture, err := openCapture(source)
	if err != nil {
		return nil, fmt.Errorf("Failed to open video source '%v': %w", source, err)
	}
	s := &CaptureSource{
		log:     log,
		source:  source,
		stopped: make(chan struct{}),
	}
	go s.runLoop(capture)
	return s, nil
}

func openCapture(source string) (*gocv.VideoCapture, error) {
	if deviceID, err := strconv.Atoi(source); err == nil {
		return gocv.OpenVideoCapture(deviceID)
	}
	return gocv.OpenVideoCapture(source)
}

func (s *CaptureSource) runLoop(capture *gocv.VideoCapture) {
	defer close(s.stopped)
	defer func() {
		if capture != nil {
			capture.Close()
		}
	}()

	mat := gocv.NewMat()
	defer mat.Close()

	failedReads := 0
	for !s.mustStop.Load() {
		if capture == nil {
			time.Sleep(reopenDelay)
			var err error
			capture, err = openCapture(s.source)
			if err != nil {
				s.log.Warnf("Failed to reopen video source '%v': %v", s.source, err)
				capture = nil
			}
			continue
		}
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			failedReads++
			if failedReads >= maxFailedReads {
				s.log.Warnf("Video source '%v' stopped producing frames, reopening", s.source)
				capture.Close()
				capture = nil
				failedReads = 0
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		failedReads = 0
		img, err := mat.ToImage()
		if err != nil {
			s.log.Errorf("Failed to convert frame from '%v': %v", s.source, err)
			continue
		}
		s.buf.put(img, time.Now())
	}
}

func (s *CaptureSource) Latest(prevSeq int64) *Frame {
	return s.buf.latestAfter(prevSeq)
}

// Close stops the capture goroutine and waits for it to exit.
func (s *CaptureSource) Close() {
	s.mustStop.Store(true)
	<-s.stopped
}
