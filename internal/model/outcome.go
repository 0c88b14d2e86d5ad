package model

import "fmt"

// BatchOutcome aggregates the per-file attempts of one upload run
type BatchOutcome struct {
	Total     int          `json:"total"`
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Batches   int          `json:"batches"`
	Completed bool         `json:"completed"`
	Failure   *ItemFailure `json:"failure,omitempty"`
}

// ItemFailure identifies the upload that aborted a run
type ItemFailure struct {
	Index    int    `json:"index"` // 0-based position in the matched set
	RecordID string `json:"record_id"`
	File     string `json:"file"`
	Message  string `json:"message"`
}

// Summary renders the aggregate count shown to the user
func (o BatchOutcome) Summary() string {
	return fmt.Sprintf("processed %d of %d", o.Succeeded, o.Total)
}
