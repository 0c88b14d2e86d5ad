package model

// CanonicalRecord is one authoritative record (a report or blog post)
// fetched from the CMS. The client only ever holds a read-only snapshot.
type CanonicalRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CandidateFile is a local file selected for association with a record
type CandidateFile struct {
	UID          string `json:"uid"`           // Random token for list identity
	DisplayName  string `json:"display_name"`  // Truncated name for tables
	OriginalName string `json:"original_name"` // Full base name, used for matching
	Path         string `json:"path"`          // Where the bytes live
	Size         int64  `json:"size"`
}
