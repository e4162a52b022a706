package api

type (
	// HealthStatus represents the overall health of the service
	HealthStatus string

	// TriggerResponse is returned when a workflow trigger is accepted
	TriggerResponse struct {
		JobID      JobID      `json:"jobId"`
		WorkflowID WorkflowID `json:"workflowId"`
		Status     string     `json:"status"`
	}

	// JobsListResponse contains a list of job summaries
	JobsListResponse struct {
		Jobs  []*JobDigest `json:"jobs"`
		Count int          `json:"count"`
	}

	// WorkflowsListResponse contains the registered workflow definitions
	WorkflowsListResponse struct {
		Workflows []*Workflow `json:"workflows"`
		Count     int         `json:"count"`
	}

	// EngineStatus summarizes the orchestrator's job population
	EngineStatus struct {
		Workflows int `json:"workflows"`
		Running   int `json:"running"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
	}

	// HealthResponse provides service health information, including the
	// reachability of every integrated external service
	HealthResponse struct {
		Services map[string]bool `json:"services"`
		Service  string          `json:"service"`
		Version  string          `json:"version"`
		Status   HealthStatus    `json:"status"`
	}

	// ExternalEvent is posted by an automation platform when work it was
	// handed for a job completes or fails
	ExternalEvent struct {
		Data   Args   `json:"data,omitempty"`
		JobID  JobID  `json:"jobId,omitempty"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	// SubscribeRequest narrows the events a WebSocket client receives
	SubscribeRequest struct {
		Type       string     `json:"type"`
		JobID      JobID      `json:"jobId,omitempty"`
		WorkflowID WorkflowID `json:"workflowId,omitempty"`
	}

	// MetricsResponse is a point-in-time reading of every instrument
	MetricsResponse struct {
		Metrics []*MetricPoint `json:"metrics"`
	}

	// MetricPoint is one data point of an instrument. Value holds the
	// running total of a counter or the sum of a histogram's samples
	MetricPoint struct {
		Attributes map[string]string `json:"attributes,omitempty"`
		Name       string            `json:"name"`
		Kind       MetricKind        `json:"kind"`
		Value      float64           `json:"value"`
		Count      uint64            `json:"count,omitempty"`
	}

	// MetricKind distinguishes counters from histograms
	MetricKind string

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)

const (
	MetricCounter   MetricKind = "counter"
	MetricHistogram MetricKind = "histogram"
)

// TriggerStarted is the status reported for an accepted trigger
const TriggerStarted = "started"

// IsSuccess reports whether the external event signals successful
// completion. Anything else is treated as a failure
func (e *ExternalEvent) IsSuccess() bool {
	switch e.Status {
	case "completed", "success", "succeeded":
		return true
	default:
		return false
	}
}
