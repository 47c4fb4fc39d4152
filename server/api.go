package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	open := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Each rate limited endpoint gets its own limiter, so we don't need
	// httprate.KeyByEndpoint.
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	open("GET", "/api/ping", s.httpPing)

	open("GET", "/api/cameras", s.httpConfigGetCameras)
	ratelimited("POST", "/api/cameras", s.httpConfigAddCamera, 10, time.Minute)
	open("GET", "/api/camera/:cameraID", s.httpConfigGetCamera)
	ratelimited("POST", "/api/camera/:cameraID", s.httpConfigChangeCamera, 30, time.Minute)
	ratelimited("DELETE", "/api/camera/:cameraID", s.httpConfigRemoveCamera, 10, time.Minute)
	open("GET", "/api/camera/:cameraID/config", s.httpConfigGetTracker)
	ratelimited("POST", "/api/camera/:cameraID/config", s.httpConfigSetTracker, 30, time.Minute)

	ratelimited("POST", "/api/camera/:cameraID/start", s.httpCamStart, 30, time.Minute)
	ratelimited("POST", "/api/camera/:cameraID/stop", s.httpCamStop, 30, time.Minute)
	open("GET", "/api/camera/:cameraID/state", s.httpCamState)
	open("GET", "/api/camera/:cameraID/snapshot", s.httpCamSnapshot)
	open("GET", "/api/camera/:cameraID/events", s.httpCamEvents)
	open("GET", "/ws/camera/:cameraID/track", s.httpCamTrackStream)

	open("GET", "/api/report/totals", s.httpReportTotals)
	open("GET", "/api/report/hourly", s.httpReportHourly)
	open("GET", "/api/report/counts", s.httpReportChart)
	open("GET", "/api/config/system", s.httpConfigGetSystem)
	ratelimited("POST", "/api/config/system", s.httpConfigSetSystem, 10, time.Minute)

	router.Handler("GET", "/metrics", promhttp.HandlerFor(s.monitor.Registry(), promhttp.HandlerOpts{}))

	s.httpRouter = router
}
