package queue

import (
	"time"

	"github.com/video-analitics/queuesorter/pkg/settings"
	"github.com/video-analitics/queuesorter/pkg/sorting"
)

type Priority struct {
	ItemID   string `json:"item_id"`
	Priority int    `json:"priority"`
}

// OrderCommitted is published once per committed sort or undo.
type OrderCommitted struct {
	ID          string     `json:"id"`
	Queue       string     `json:"queue"`
	Priorities  []Priority `json:"priorities"`
	CommittedAt time.Time  `json:"committed_at"`
}

type Progress struct {
	Queue     string    `json:"queue"`
	State     string    `json:"state"`
	Retriever string    `json:"retriever,omitempty"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	At        time.Time `json:"at"`
}

// SortRequest triggers a sort from the command stream. Either Preset or
// Commands is set.
type SortRequest struct {
	ID           string            `json:"id"`
	Queue        string            `json:"queue"`
	Preset       string            `json:"preset,omitempty"`
	Commands     []sorting.Command `json:"commands,omitempty"`
	Range        *settings.Range   `json:"range,omitempty"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (o OrderCommitted) MessageID() string { return o.ID }
func (r SortRequest) MessageID() string    { return r.ID }
