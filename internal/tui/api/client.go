// Package api provides the HTTP client the TUI uses to talk to tirewatchd
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tirewatch/internal/alerting"
	"tirewatch/internal/schema"
	"tirewatch/internal/session"
)

// Client handles API communication with the tirewatchd backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Tick          int    `json:"tick"`
	AlertsTotal   int    `json:"alerts_total"`
	UptimeSeconds int    `json:"uptime_seconds"`
}

// AlertsResponse represents the alert history response
type AlertsResponse struct {
	Alerts []alerting.Alert `json:"alerts"`
	Counts alerting.Counts  `json:"counts"`
}

// SensorsResponse represents the sensor inventory response
type SensorsResponse struct {
	Sensors []schema.SensorSpec  `json:"sensors"`
	Damage  []schema.DamageEvent `json:"damage"`
}

// Stats aggregates everything the dashboard needs in one fetch
type Stats struct {
	Healthy      bool
	HealthStatus string
	StatusReason string
	Tick         int
	AlertsTotal  int
	Worst        alerting.Severity
	Uptime       string
	Snapshot     *session.Snapshot
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetHealth fetches health status
func (c *Client) GetHealth() (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON("/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetSnapshot fetches the latest tick snapshot
func (c *Client) GetSnapshot() (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.getJSON("/v1/snapshot", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetAlerts fetches the most recent alerts, newest last
func (c *Client) GetAlerts(limit int) (*AlertsResponse, error) {
	path := "/v1/alerts"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}

	var resp AlertsResponse
	if err := c.getJSON(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSensors fetches the sensor inventory and active damage events
func (c *Client) GetSensors() (*SensorsResponse, error) {
	var resp SensorsResponse
	if err := c.getJSON("/v1/sensors", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStats fetches combined stats for the dashboard
func (c *Client) GetStats() (*Stats, error) {
	stats := &Stats{
		Healthy:      false,
		HealthStatus: "unknown",
		StatusReason: "Unable to connect to backend",
	}

	health, err := c.GetHealth()
	if err != nil {
		stats.StatusReason = err.Error()
		return stats, nil
	}

	stats.HealthStatus = health.Status
	stats.Healthy = health.Status == "healthy"
	stats.Tick = health.Tick
	stats.AlertsTotal = health.AlertsTotal
	stats.Uptime = formatUptime(health.UptimeSeconds)
	if stats.Healthy {
		stats.StatusReason = "Monitoring nominal"
	} else {
		stats.StatusReason = "Emergency-grade alert active"
	}

	if snap, err := c.GetSnapshot(); err == nil {
		stats.Snapshot = snap
		stats.Worst = worstSeverity(snap.Counts)
	}

	return stats, nil
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func worstSeverity(counts alerting.Counts) alerting.Severity {
	var worst alerting.Severity
	for _, sev := range alerting.Severities() {
		if counts.BySeverity[sev] > 0 {
			worst = sev
		}
	}
	return worst
}

func formatUptime(seconds int) string {
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
