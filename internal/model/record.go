// internal/model/record.go
package model

import (
	"github.com/google/uuid"
)

// Record is a row of the users table.
type Record struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID string    `db:"user_id" json:"user_id"`
	Email  string    `db:"email" json:"email"`
	Name   string    `db:"name" json:"name"`
}
