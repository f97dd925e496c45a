package models

import "errors"

// Domain names one of the independently fetched data sets.
type Domain string

const (
	DomainHeatmap  Domain = "heatmap"
	DomainHealth   Domain = "health"
	DomainSchedule Domain = "schedule"
	DomainClusters Domain = "clusters"
)

// Domains lists every panel domain in render order.
var Domains = []Domain{DomainHeatmap, DomainHealth, DomainSchedule, DomainClusters}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
	StatusStale   Status = "stale"
)

type ErrorKind string

const (
	KindNetworkFailure    ErrorKind = "network_failure"
	KindMalformedResponse ErrorKind = "malformed_response"
)

var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// KindOf classifies a fetch error. Anything that is not a payload problem
// counts as a transport failure.
func KindOf(err error) ErrorKind {
	if errors.Is(err, ErrMalformedResponse) {
		return KindMalformedResponse
	}
	return KindNetworkFailure
}
