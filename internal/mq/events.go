package mq

import "time"

// EntrySubmittedEvent is published after a batch entry committed at least one line
type EntrySubmittedEvent struct {
	Officer     string    `json:"officer"`
	Accepted    []string  `json:"accepted"`
	Total       int       `json:"total"`
	Success     int       `json:"success"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ImportCompletedEvent is published after a bulk import finished
type ImportCompletedEvent struct {
	JobID       string    `json:"job_id"`
	Table       string    `json:"table"`
	Rows        int       `json:"rows"`
	ArchiveKey  string    `json:"archive_key,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
