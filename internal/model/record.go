package model

import "time"

// Record is the resource managed by the record API.
type Record struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRecordInput is the request payload for creating a record.
type CreateRecordInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
