package infostore

import (
	"context"
	"time"

	models "infostore/internal/domain/models/infostore"
)

// FolderReader looks folders up. Implemented by the repository and by the
// cache that wraps it.
type FolderReader interface {
	GetByID(ctx context.Context, contextID, id int64) (*models.Folder, error)
}

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	FolderReader

	// Create creates a new folder
	Create(ctx context.Context, folder *models.Folder) error
}

// ReservationRepository guards filename uniqueness inside a folder.
type ReservationRepository interface {
	// Reserve claims filename in folderID. excludeID is the document being
	// renamed, or 0. A blank filename is never reserved and always succeeds.
	// ok=false is the normal "name taken" outcome, not an error.
	Reserve(ctx context.Context, contextID, folderID int64, filename string, excludeID int64) (r *models.Reservation, ok bool, err error)

	// Release drops the claim. Failures are logged, never returned.
	Release(ctx context.Context, r *models.Reservation)

	// SweepExpired deletes reservations created before the cutoff and
	// returns how many were removed.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
