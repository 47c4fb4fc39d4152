package configdb

import (
	"encoding/json"
	"fmt"
	"net/url"
)

const systemConfigKey = "main"

// Root system config
type ConfigJSON struct {
	Report ReportJSON `json:"report"` // Periodic upload of count totals
}

// ReportJSON configures the periodic push of count totals to an external
// collection endpoint.
type ReportJSON struct {
	Enabled         bool   `json:"enabled"`
	URL             string `json:"url"`             // Endpoint that receives the totals (HTTP POST, JSON body)
	Device          string `json:"device"`          // Device name included in every report
	IntervalSeconds int    `json:"intervalSeconds"` // Seconds between reports
}

func DefaultSystemConfig() ConfigJSON {
	return ConfigJSON{
		Report: ReportJSON{
			Device:          "footfall",
			IntervalSeconds: 60,
		},
	}
}

// Returns an error if there is anything invalid about the config, or nil if everything is OK
func ValidateConfig(c *ConfigJSON) error {
	r := &c.Report
	if !r.Enabled {
		return nil
	}
	if r.URL == "" {
		return fmt.Errorf("Report URL is required when reporting is enabled")
	}
	if u, err := url.Parse(r.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("Invalid report URL '%v'", r.URL)
	}
	if r.IntervalSeconds < 1 {
		return fmt.Errorf("Report interval must be at least 1 second")
	}
	return nil
}

func parseSystemConfig(value string) (*ConfigJSON, error) {
	cfg := DefaultSystemConfig()
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, fmt.Errorf("Failed to parse system config: %w", err)
	}
	return &cfg, nil
}

func encodeSystemConfig(c *ConfigJSON) (string, error) {
	j, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(j), nil
}
