package types

import "fmt"

// DownloadTask identifies one unit of work: the daily history of Symbol during Year.
type DownloadTask struct {
	Symbol string
	Year   int
}

func (t DownloadTask) String() string {
	return fmt.Sprintf("%s/%d", t.Symbol, t.Year)
}

// OutcomeStatus is the terminal status of a task.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// TaskOutcome records what happened to a single DownloadTask.
type TaskOutcome struct {
	Task   DownloadTask
	Status OutcomeStatus
	// Path is the resolved output file, set for every status.
	Path string
	// Rows is the number of rows written. Zero unless Status is OutcomeSuccess.
	Rows int
	// Err is the failure cause. Only set when Status is OutcomeFailed.
	Err error
}

// Reason returns a human readable failure reason, or an empty string when the task did not fail.
func (o TaskOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}

	return o.Err.Error()
}
