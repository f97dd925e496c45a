package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fleet_dashboard/internal/models"
)

// Layouts accepted for health dates and replacement forecasts. Values without
// a zone are read as UTC.
var (
	healthDateLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	forecastLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// toFloat accepts a JSON number or a numeric string.
func toFloat(raw json.RawMessage) (float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unexpected value %s", string(raw))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %s", string(raw))
	}
	return f, nil
}

func parseTime(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// normalizeHeatmap converts [lat, lon, count(, date)] rows. Extra columns
// are ignored.
func normalizeHeatmap(rows []json.RawMessage) ([]models.HeatmapPoint, error) {
	out := make([]models.HeatmapPoint, 0, len(rows))
	for i, raw := range rows {
		var cols []json.RawMessage
		if err := json.Unmarshal(raw, &cols); err != nil {
			return nil, malformed("heatmap row %d: %v", i, err)
		}
		if len(cols) < 3 {
			return nil, malformed("heatmap row %d: want at least 3 columns, got %d", i, len(cols))
		}
		var vals [3]float64
		for c := range vals {
			f, err := toFloat(cols[c])
			if err != nil {
				return nil, malformed("heatmap row %d column %d: %v", i, c, err)
			}
			vals[c] = f
		}
		out = append(out, models.HeatmapPoint{Lat: vals[0], Lon: vals[1], Weight: vals[2]})
	}
	return out, nil
}

type healthRow struct {
	Date         string          `json:"date"`
	AnomalyScore json.RawMessage `json:"anomaly_score"`
}

// normalizeHealth maps the classifier output (1 normal, -1 anomaly) onto
// HealthRecords. String labels are accepted as well.
func normalizeHealth(rows []healthRow) ([]models.HealthRecord, error) {
	out := make([]models.HealthRecord, 0, len(rows))
	for i, r := range rows {
		date, err := parseTime(r.Date, healthDateLayouts)
		if err != nil {
			return nil, malformed("health row %d: %v", i, err)
		}
		score, err := anomalyScore(r.AnomalyScore)
		if err != nil {
			return nil, malformed("health row %d: %v", i, err)
		}
		out = append(out, models.HealthRecord{Date: date, AnomalyScore: score})
	}
	return out, nil
}

func anomalyScore(raw json.RawMessage) (models.AnomalyScore, error) {
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		switch strings.ToUpper(strings.TrimSpace(label)) {
		case "ANOMALY", "AT RISK":
			return models.ScoreAnomaly, nil
		case "NORMAL", "HEALTHY":
			return models.ScoreNormal, nil
		}
	}
	f, err := toFloat(raw)
	if err != nil {
		return "", fmt.Errorf("anomaly_score: %v", err)
	}
	// only an exact 1 is normal
	if f != 1 {
		return models.ScoreAnomaly, nil
	}
	return models.ScoreNormal, nil
}

type maintenanceRow struct {
	VehicleRegNo               string   `json:"vehicle_reg_no"`
	SpareName                  string   `json:"spare_name"`
	NextExpectedReplacement    *string  `json:"next_expected_replacement"`
	UnitPrice                  *float64 `json:"unit_price"`
	QuantityAvailable          *float64 `json:"quantity_available"`
	UsageBeforeLastReplacement *float64 `json:"usage_before_last_replacement"`
	EmergencyCondition         *float64 `json:"emergency_condition"`
	TamperCondition            *float64 `json:"tamper_condition"`
}

func deref(f *float64) float64 {
	if f == nil || math.IsNaN(*f) {
		return 0
	}
	return *f
}

// normalizeMaintenance keeps the rows of one vehicle, in payload order. A
// null or empty forecast date leaves NextReplacementAt nil.
func normalizeMaintenance(rows []maintenanceRow, vehicle string) ([]models.MaintenanceTask, error) {
	out := make([]models.MaintenanceTask, 0, len(rows))
	for i, r := range rows {
		if r.VehicleRegNo != vehicle {
			continue
		}
		task := models.MaintenanceTask{
			ID:                              r.VehicleRegNo + "/" + r.SpareName,
			SpareName:                       r.SpareName,
			VehicleID:                       r.VehicleRegNo,
			UsageHoursBeforeLastReplacement: deref(r.UsageBeforeLastReplacement),
			QuantityAvailable:               int(math.Ceil(deref(r.QuantityAvailable))),
			UnitPrice:                       deref(r.UnitPrice),
			EmergencyCondition:              deref(r.EmergencyCondition),
			TamperCondition:                 deref(r.TamperCondition),
		}
		if r.NextExpectedReplacement != nil && strings.TrimSpace(*r.NextExpectedReplacement) != "" {
			t, err := parseTime(*r.NextExpectedReplacement, forecastLayouts)
			if err != nil {
				return nil, malformed("maintenance row %d: %v", i, err)
			}
			task.NextReplacementAt = &t
		}
		out = append(out, task)
	}
	return out, nil
}

type clusterRow struct {
	Highlight   string          `json:"highlight"`
	ClusterSize json.RawMessage `json:"cluster_size"`
}

type failurePayload struct {
	ClusterData     []clusterRow      `json:"cluster_data"`
	Predictions     []json.RawMessage `json:"predictions"`
	SilhouetteScore *float64          `json:"silhouette_score"`
}

// normalizeFailure flattens the association rules of every prediction into
// one label list. Predictions come either as {"cluster", "rules"} objects or
// as [cluster, [rules...]] pairs.
func normalizeFailure(p failurePayload) (models.FailureAnalysis, error) {
	out := models.FailureAnalysis{
		Clusters:   make([]models.FailureCluster, 0, len(p.ClusterData)),
		Predicted:  []string{},
		Silhouette: deref(p.SilhouetteScore),
	}
	for i, c := range p.ClusterData {
		size, err := toFloat(c.ClusterSize)
		if err != nil {
			return models.FailureAnalysis{}, malformed("cluster %d: cluster_size: %v", i, err)
		}
		out.Clusters = append(out.Clusters, models.FailureCluster{Label: c.Highlight, Size: int(size)})
	}
	for i, raw := range p.Predictions {
		rules, err := predictionRules(raw)
		if err != nil {
			return models.FailureAnalysis{}, malformed("prediction %d: %v", i, err)
		}
		out.Predicted = append(out.Predicted, rules...)
	}
	return out, nil
}

func predictionRules(raw json.RawMessage) ([]string, error) {
	var obj struct {
		Rules []string `json:"rules"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Rules, nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("want [cluster, rules], got %d elements", len(pair))
	}
	var rules []string
	if err := json.Unmarshal(pair[1], &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

type vehicleRow struct {
	VehicleID     json.RawMessage `json:"vehicle_id"`
	VehicleNumber string          `json:"vehicle_number"`
}

func normalizeVehicles(rows []vehicleRow) ([]models.VehicleSummary, error) {
	out := make([]models.VehicleSummary, 0, len(rows))
	for i, r := range rows {
		id, err := idString(r.VehicleID)
		if err != nil {
			return nil, malformed("vehicle %d: vehicle_id: %v", i, err)
		}
		out = append(out, models.VehicleSummary{ID: id, DisplayNumber: r.VehicleNumber})
	}
	return out, nil
}

// idString accepts numeric or string identifiers.
func idString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
