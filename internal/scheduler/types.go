package scheduler

import "timeblock/internal/storage"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// TaskError records a task the run could not schedule.
type TaskError struct {
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Error     string `json:"error"`
}

// RunResult summarizes one scheduling run. Status is "partial" when at least
// one task failed; infrastructure failures abort the run instead and never
// appear here.
type RunResult struct {
	Status                string          `json:"status"`
	Message               string          `json:"message,omitempty"`
	ScheduledEvents       []storage.Event `json:"scheduled_events"`
	Errors                []TaskError     `json:"errors"`
	TotalTasks            int             `json:"total_tasks"`
	SuccessfullyScheduled int             `json:"successfully_scheduled"`
}
