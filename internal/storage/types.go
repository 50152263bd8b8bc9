package storage

import (
	"encoding/json"
	"errors"
	"time"

	"timeblock/pkg/naivetime"
)

// ErrNotFound is returned when a task or event id does not exist.
var ErrNotFound = errors.New("storage: not found")

// Task is a unit of work the scheduler places into the calendar.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
	// TotalDuration is the total effort in minutes.
	TotalDuration int `json:"total_duration"`
	Chunking      bool `json:"chunking"`
	// Chunk bounds in minutes; zero means "use the default".
	ChunkingMaxDuration int  `json:"chunking_max_duration,omitempty"`
	ChunkingMinDuration int  `json:"chunking_min_duration,omitempty"`
	Priority            int  `json:"priority"`
	Completed           bool `json:"completed"`
}

// Event is a calendar entry, either user-created busy time or a scheduled
// task chunk. TaskID links generated events back to their task.
type Event struct {
	ID             string
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	TaskID         string
	ExternalSyncID string
}

type eventJSON struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	TaskID         string `json:"task_id,omitempty"`
	ExternalSyncID string `json:"external_sync_id,omitempty"`
}

// MarshalJSON renders Start and End as naive local timestamps so API payloads
// and file snapshots carry the same wall-clock representation the scheduler
// computes with.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Start:          naivetime.Format(e.Start),
		End:            naivetime.Format(e.End),
		TaskID:         e.TaskID,
		ExternalSyncID: e.ExternalSyncID,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := naivetime.Parse(raw.Start)
	if err != nil {
		return err
	}
	end, err := naivetime.Parse(raw.End)
	if err != nil {
		return err
	}
	*e = Event{
		ID:             raw.ID,
		Title:          raw.Title,
		Description:    raw.Description,
		Start:          start,
		End:            end,
		TaskID:         raw.TaskID,
		ExternalSyncID: raw.ExternalSyncID,
	}
	return nil
}
