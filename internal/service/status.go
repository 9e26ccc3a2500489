package service

// Status is the user-visible state of the tracker, mirrored by the status
// banner of the host page. Cached data stays readable in every state.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusSyncing            Status = "syncing"
	StatusOffline            Status = "offline"
	StatusRateLimited        Status = "rate_limited"
	StatusServiceUnavailable Status = "service_unavailable"
	StatusDegraded           Status = "degraded"
)
