package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/julienschmidt/httprouter"

	"github.com/footfall/footfall/server/configdb"
)

func (s *Server) httpConfigGetSystem(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cfg, err := s.configDB.GetConfig()
	www.Check(err)
	www.SendJSON(w, cfg)
}

func (s *Server) httpConfigSetSystem(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cfg := configdb.ConfigJSON{}
	www.ReadJSON(w, r, &cfg, 1024*1024)
	if err := configdb.ValidateConfig(&cfg); err != nil {
		www.PanicBadRequestf("Invalid config: %v", err)
	}
	www.Check(s.configDB.SetConfig(&cfg))
	s.restartReporter(cfg.Report)
	s.Log.Infof("System config updated")
	www.SendOK(w)
}

func (s *Server) hourlyWindow(r *http.Request) (start, end time.Time, cameraID int64) {
	cameraID = www.QueryInt64(r, "camera")
	end = time.Now()
	if v := www.QueryInt64(r, "end"); v != 0 {
		end = time.Unix(v, 0)
	}
	start = end.Add(-24 * time.Hour)
	if v := www.QueryInt64(r, "start"); v != 0 {
		start = time.Unix(v, 0)
	}
	return
}

// Hourly entry/exit totals as JSON.
// Query params: camera, start, end (unix seconds; default is the last 24 hours).
func (s *Server) httpReportHourly(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	start, end, cameraID := s.hourlyWindow(r)
	totals, err := s.countDB.HourlyTotals(cameraID, start, end)
	www.Check(err)
	www.SendJSON(w, totals)
}

// Hourly entry/exit totals rendered as an HTML bar chart.
// This is a quick way to eyeball traffic without a front-end.
func (s *Server) httpReportChart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	start, end, cameraID := s.hourlyWindow(r)
	totals, err := s.countDB.HourlyTotals(cameraID, start, end)
	www.Check(err)

	hours := make([]string, 0, len(totals))
	entries := make([]opts.BarData, 0, len(totals))
	exits := make([]opts.BarData, 0, len(totals))
	for _, t := range totals {
		hours = append(hours, t.Hour)
		entries = append(entries, opts.BarData{Value: t.Entries})
		exits = append(exits, opts.BarData{Value: t.Exits})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Footfall", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pedestrian traffic per hour",
			Subtitle: start.Format(time.RFC3339) + " to " + end.Format(time.RFC3339),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(hours).
		AddSeries("entries", entries).
		AddSeries("exits", exits)

	buf := bytes.Buffer{}
	if err := bar.Render(&buf); err != nil {
		www.PanicServerErrorf("Failed to render chart: %v", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
