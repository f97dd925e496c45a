package models

// FailureCluster is one slice of the failure-reason pie.
type FailureCluster struct {
	Label string `json:"label"`
	Size  int    `json:"size"`
}

// FailureAnalysis is the clusters panel payload.
type FailureAnalysis struct {
	Clusters   []FailureCluster `json:"clusters"`
	Predicted  []string         `json:"predicted"`
	Silhouette float64          `json:"silhouette"`
}
