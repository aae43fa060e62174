package models

import "time"

// Group is a named student grouping (klasse or hold) used for dashboard
// filtering.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GroupDetail carries the group together with its member count.
type GroupDetail struct {
	Group
	MemberCount int `db:"member_count" json:"member_count"`
}
