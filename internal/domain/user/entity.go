package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the slice of the directory record the settlement engine needs
type User struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	ContactEmail sql.NullString `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone sql.NullString `db:"contact_phone" json:"contact_phone,omitempty"`
	Tokens       int64          `db:"tokens" json:"tokens"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
