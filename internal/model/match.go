package model

// UnmatchedReason explains why a file did not resolve to a record
type UnmatchedReason string

const (
	ReasonNone      UnmatchedReason = ""
	ReasonEmptyKey  UnmatchedReason = "empty-key" // Name normalized to nothing
	ReasonNoRecord  UnmatchedReason = "no-record" // No record shares the key
	ReasonAmbiguous UnmatchedReason = "ambiguous" // Key collided and the policy rejected it
)

// MatchResult classifies one candidate file. A result is matched when
// RecordID is set; otherwise Reason says why not.
type MatchResult struct {
	RecordID string          `json:"record_id,omitempty"`
	File     CandidateFile   `json:"file"`
	Key      string          `json:"key"`
	Reason   UnmatchedReason `json:"reason,omitempty"`
}

// Matched reports whether the file resolved to a record
func (r MatchResult) Matched() bool {
	return r.RecordID != ""
}

// Collision records two or more records sharing one key
type Collision struct {
	Key       string   `json:"key"`
	RecordIDs []string `json:"record_ids"` // In record iteration order
	Kept      string   `json:"kept,omitempty"`
}

// Partition is the output of one matching pass
type Partition struct {
	Matched    []MatchResult `json:"matched"`
	Unmatched  []MatchResult `json:"unmatched"`
	Collisions []Collision   `json:"collisions,omitempty"`
}

// Len returns the number of classified files
func (p Partition) Len() int {
	return len(p.Matched) + len(p.Unmatched)
}
