package project

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

// Project is the slice of the project record the settlement engine needs
type Project struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Budget    int64     `db:"budget" json:"budget"`
	Status    Status    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
