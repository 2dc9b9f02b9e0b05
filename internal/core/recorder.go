package core

// Recorder receives operational events from the engine. internal/metrics
// exports them to Prometheus.
type Recorder interface {
	Submit(table, action, outcome string)
	ValidationFailed(table, action string)
	Allocation(category, outcome string)
	WorkspacesActive(n int)
}

// Outcome labels passed to Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
)

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) Submit(string, string, string)   {}
func (NopRecorder) ValidationFailed(string, string) {}
func (NopRecorder) Allocation(string, string)       {}
func (NopRecorder) WorkspacesActive(int)            {}
