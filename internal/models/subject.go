package models

import "time"

// Subject represents an academic subject. Read-only from the agenda
// engine's point of view.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Track     string    `db:"track" json:"track"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Track     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
