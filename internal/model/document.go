package model

import "time"

// Document is a reviewable document as the persistent store exposes it:
// filename, extracted text, creation timestamp, and type. Extraction and
// upload mechanics live outside this engine.
type Document struct {
	ID        string    `json:"id"`
	MatterID  string    `json:"matter_id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"text"`
	DocType   string    `json:"doc_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
