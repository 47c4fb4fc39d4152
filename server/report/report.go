// Package report pushes count totals to an external collection endpoint at
// a fixed interval.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/footfall/footfall/server/configdb"
	"github.com/footfall/footfall/server/countdb"
)

// Payload is the JSON body of one report.
type Payload struct {
	Device  string    `json:"device"`
	Inside  int64     `json:"inside"`  // Total entries
	Outside int64     `json:"outside"` // Total exits
	Delta   int64     `json:"delta"`   // Inside - Outside (occupancy estimate)
	Total   int64     `json:"total"`   // Inside + Outside (traffic volume)
	Time    time.Time `json:"time"`
}

// Reporter periodically POSTs the cumulative totals from the count database
// to the configured endpoint. A failed send is logged and retried at the
// next interval; totals are cumulative, so a missed report loses nothing.
type Reporter struct {
	log     logs.Log
	countDB *countdb.CountDB
	cfg     configdb.ReportJSON
	client  *http.Client
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewReporter starts the reporting loop. If cfg.Enabled is false the
// reporter does nothing until Close.
func NewReporter(log logs.Log, countDB *countdb.CountDB, cfg configdb.ReportJSON) *Reporter {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		log:     log,
		countDB: countDB,
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go r.runLoop(ctx)
	return r
}

// Close stops the reporting loop and waits for it to exit.
func (r *Reporter) Close() {
	r.cancel()
	<-r.stopped
}

func (r *Reporter) runLoop(ctx context.Context) {
	defer close(r.stopped)
	if !r.cfg.Enabled {
		<-ctx.Done()
		return
	}
	r.log.Infof("Reporting totals to %v every %v seconds", r.cfg.URL, r.cfg.IntervalSeconds)
	ticker := time.NewTicker(time.Duration(r.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SendNow(ctx); err != nil && ctx.Err() == nil {
				r.log.Warnf("Report to %v failed: %v", r.cfg.URL, err)
			}
		}
	}
}

// SendNow builds a report from the current totals and POSTs it.
func (r *Reporter) SendNow(ctx context.Context) error {
	entries, exits, err := r.countDB.Totals(0, time.Time{})
	if err != nil {
		return fmt.Errorf("Failed to read totals: %w", err)
	}
	payload := &Payload{
		Device:  r.cfg.Device,
		Inside:  entries,
		Outside: exits,
		Delta:   entries - exits,
		Total:   entries + exits,
		Time:    time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Endpoint returned %v", resp.Status)
	}
	return nil
}
