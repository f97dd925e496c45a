package dashboard

import (
	"fleet_dashboard/internal/models"
)

// PanelState is the lifecycle of one panel for the current selection.
type PanelState struct {
	Domain    models.Domain    `json:"domain"`
	Status    models.Status    `json:"status"`
	Token     models.Token     `json:"token"`
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Count     int              `json:"count"`
}

type HeatmapPanel struct {
	PanelState
	Points     []models.HeatmapPoint `json:"points"`
	Bounds     *models.Bounds        `json:"bounds,omitempty"`
	HasOverlay bool                  `json:"has_overlay"`
}

type HealthPanel struct {
	PanelState
	Series []models.HealthPoint `json:"series"`
}

type SchedulePanel struct {
	PanelState
	Bars      []models.ScheduleBar `json:"bars"`
	ZoomLevel int                  `json:"zoom_level"`
	Usage     []models.UsageRow    `json:"usage"`
}

type ClustersPanel struct {
	PanelState
	Clusters    []models.FailureCluster `json:"clusters"`
	Predicted   []string                `json:"predicted"`
	Highlighted []int                   `json:"highlighted"`
	Silhouette  float64                 `json:"silhouette"`
}

// View is everything the dashboard renders for one selection generation.
type View struct {
	Selection models.Selection `json:"selection"`
	Token     models.Token     `json:"token"`
	Heatmap   HeatmapPanel     `json:"heatmap"`
	Health    HealthPanel      `json:"health"`
	Schedule  SchedulePanel    `json:"schedule"`
	Clusters  ClustersPanel    `json:"clusters"`
}

func panel(domain models.Domain, status models.Status, token models.Token) PanelState {
	return PanelState{Domain: domain, Status: status, Token: token}
}

// resetView returns a view with every panel in status and no data.
func resetView(sel models.Selection, token models.Token, status models.Status) View {
	return View{
		Selection: sel,
		Token:     token,
		Heatmap: HeatmapPanel{
			PanelState: panel(models.DomainHeatmap, status, token),
			Points:     []models.HeatmapPoint{},
		},
		Health: HealthPanel{
			PanelState: panel(models.DomainHealth, status, token),
			Series:     []models.HealthPoint{},
		},
		Schedule: SchedulePanel{
			PanelState: panel(models.DomainSchedule, status, token),
			Bars:       []models.ScheduleBar{},
			ZoomLevel:  1,
			Usage:      []models.UsageRow{},
		},
		Clusters: ClustersPanel{
			PanelState:  panel(models.DomainClusters, status, token),
			Clusters:    []models.FailureCluster{},
			Predicted:   []string{},
			Highlighted: []int{},
		},
	}
}

// Panel returns the panel of domain as rendered in v.
func (v View) Panel(domain models.Domain) (any, bool) {
	switch domain {
	case models.DomainHeatmap:
		return v.Heatmap, true
	case models.DomainHealth:
		return v.Health, true
	case models.DomainSchedule:
		return v.Schedule, true
	case models.DomainClusters:
		return v.Clusters, true
	}
	return nil, false
}

// States lists the panel states in render order.
func (v View) States() []PanelState {
	return []PanelState{v.Heatmap.PanelState, v.Health.PanelState, v.Schedule.PanelState, v.Clusters.PanelState}
}
