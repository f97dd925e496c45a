// Package analytics is the HTTP client for the fleet analytics backend.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleet_dashboard/internal/models"
)

const (
	pathVehicles      = "/get-vehicle-list"
	pathHealth        = "/vehicle-health-status"
	pathHeatmap       = "/generate-fleet-heatmap"
	pathMaintenance   = "/predictive_maintenance"
	pathFailure       = "/failure-analysis"
	pathFailureReport = "/send-failure-report"

	queryDateLayout = "2006-01-02"
	maxBodyBytes    = 16 << 20
)

// Client talks to the analytics backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil httpClient means
// http.DefaultClient; per-call deadlines come from the context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// backendMessage covers the {"message"} / {"error"} envelopes the backend
// uses outside of successful payloads.
type backendMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(queryDateLayout)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values) (int, []byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", models.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", models.ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read %s: %v", models.ErrNetworkFailure, path, err)
	}
	return resp.StatusCode, body, nil
}

// getJSON decodes a successful response into out. found is false when the
// backend reports no data: a 404 carrying a message, or an empty/null body.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) (found bool, err error) {
	status, body, err := c.do(ctx, http.MethodGet, path, q)
	if err != nil {
		return false, err
	}

	if status == http.StatusNotFound {
		var msg backendMessage
		if json.Unmarshal(body, &msg) == nil && msg.Message != "" && msg.Error == "" {
			return false, nil
		}
	}
	if status < 200 || status > 299 {
		return false, statusError(path, status, body)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", models.ErrMalformedResponse, path, err)
	}
	return true, nil
}

func statusError(path string, status int, body []byte) error {
	var msg backendMessage
	detail := http.StatusText(status)
	if json.Unmarshal(body, &msg) == nil {
		switch {
		case msg.Error != "":
			detail = msg.Error
		case msg.Message != "":
			detail = msg.Message
		}
	}
	return fmt.Errorf("%w: %s returned %d: %s", models.ErrNetworkFailure, path, status, detail)
}

// Vehicles lists the fleet, in backend order.
func (c *Client) Vehicles(ctx context.Context) ([]models.VehicleSummary, error) {
	var payload struct {
		Vehicles []vehicleRow `json:"vehicles"`
	}
	found, err := c.getJSON(ctx, pathVehicles, nil, &payload)
	if err != nil || !found {
		return []models.VehicleSummary{}, err
	}
	return normalizeVehicles(payload.Vehicles)
}

// Heatmap returns binned location counts for the selected vehicle and range.
func (c *Client) Heatmap(ctx context.Context, sel models.Selection) ([]models.HeatmapPoint, error) {
	q := url.Values{}
	q.Set("vehicle_id", sel.EntityID)
	q.Set("start_date", formatDate(sel.DateRange.Start))
	q.Set("end_date", formatDate(sel.DateRange.End))

	var payload struct {
		HeatmapData []json.RawMessage `json:"heatmap_data"`
	}
	found, err := c.getJSON(ctx, pathHeatmap, q, &payload)
	if err != nil || !found {
		return []models.HeatmapPoint{}, err
	}
	return normalizeHeatmap(payload.HeatmapData)
}

// Health returns the daily anomaly verdicts for the selected vehicle.
func (c *Client) Health(ctx context.Context, sel models.Selection) ([]models.HealthRecord, error) {
	q := url.Values{}
	q.Set("vehicle_reg_no", sel.EntityID)

	var rows []healthRow
	found, err := c.getJSON(ctx, pathHealth, q, &rows)
	if err != nil || !found {
		return []models.HealthRecord{}, err
	}
	return normalizeHealth(rows)
}

// Schedule returns the replacement forecasts of the selected vehicle. The
// backend may answer with the whole fleet, so rows are filtered here too.
func (c *Client) Schedule(ctx context.Context, sel models.Selection) ([]models.MaintenanceTask, error) {
	q := url.Values{}
	q.Set("vehicle_reg_no", sel.EntityID)

	var rows []maintenanceRow
	found, err := c.getJSON(ctx, pathMaintenance, q, &rows)
	if err != nil || !found {
		return []models.MaintenanceTask{}, err
	}
	return normalizeMaintenance(rows, sel.EntityID)
}

// FailureAnalysis returns the failure clusters and predicted failure labels.
func (c *Client) FailureAnalysis(ctx context.Context, sel models.Selection) (models.FailureAnalysis, error) {
	q := url.Values{}
	q.Set("vehicle_number", sel.EntityID)

	var payload failurePayload
	found, err := c.getJSON(ctx, pathFailure, q, &payload)
	if err != nil || !found {
		return models.FailureAnalysis{Clusters: []models.FailureCluster{}, Predicted: []string{}}, err
	}
	return normalizeFailure(payload)
}

// ErrReportRejected is returned when the backend answers a failure report
// with an error message.
var ErrReportRejected = errors.New("failure report rejected")

// SendFailureReport asks the backend to mail the current failure report and
// returns its confirmation message.
func (c *Client) SendFailureReport(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, http.MethodPost, pathFailureReport, nil)
	if err != nil {
		return "", err
	}
	var msg backendMessage
	decodeErr := json.Unmarshal(body, &msg)

	if status < 200 || status > 299 {
		if decodeErr == nil && msg.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrReportRejected, msg.Error)
		}
		return "", statusError(pathFailureReport, status, body)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode %s: %v", models.ErrMalformedResponse, pathFailureReport, decodeErr)
	}
	if msg.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrReportRejected, msg.Error)
	}
	return msg.Message, nil
}
