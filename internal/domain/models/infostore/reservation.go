package infostore

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a claim on a filename inside a folder. A zero ID means the
// claim was skipped because no filename was given.
type Reservation struct {
	ID        uuid.UUID
	ContextID int64
	FolderID  int64
	Filename  string
	CreatedAt time.Time
}

// Skipped reports whether no row backs this reservation.
func (r *Reservation) Skipped() bool {
	return r.ID == uuid.Nil
}
