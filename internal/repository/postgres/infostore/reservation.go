package infostore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	"infostore/internal/domain/repositories"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

var _ repo.ReservationRepository = (*PostgresReservationRepository)(nil)

// PostgresReservationRepository serializes filename claims per folder by
// locking the folder row for the duration of the check-and-insert.
type PostgresReservationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
	now    func() time.Time
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(config *postgres.RepositoryConfig) *PostgresReservationRepository {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReservationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     config.TxManager,
		logger: logger,
		now:    time.Now,
	}
}

// Reserve claims filename in folderID. It runs in a transaction of its own
// even when ctx carries one, so the folder lock is held only for the check.
func (r *PostgresReservationRepository) Reserve(ctx context.Context, contextID, folderID int64, filename string, excludeID int64) (*models.Reservation, bool, error) {
	if contextID <= 0 {
		return nil, false, domain.NewCodeError("reserve: missing context id")
	}
	if strings.TrimSpace(filename) == "" {
		return &models.Reservation{ContextID: contextID, FolderID: folderID}, true, nil
	}

	res := &models.Reservation{
		ID:        uuid.New(),
		ContextID: contextID,
		FolderID:  folderID,
		Filename:  filename,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}
	free := false

	err := r.tx.ExecNewTx(ctx, func(ctx context.Context) error {
		db := postgres.GetExecutor(ctx, r.pool)

		lock := fmt.Sprintf(`SELECT module FROM %s WHERE cid = $1 AND id = $2 FOR UPDATE`, r.tables.Folders)
		var module string
		if err := db.QueryRow(ctx, lock, contextID, folderID).Scan(&module); err != nil {
			if postgres.IsPgNoRowsError(err) {
				return &domain.NotFoundError{Message: fmt.Sprintf("folder %d not found", folderID)}
			}
			return classifyWriteError("lock folder", err)
		}
		if module != models.ModuleInfostore {
			return &domain.UserInputError{Message: fmt.Sprintf("folder %d is not a document folder", folderID)}
		}

		taken := fmt.Sprintf(`
			SELECT EXISTS (
				SELECT 1 FROM %s h JOIN %s v
					ON v.cid = h.cid AND v.infostore_id = h.id AND v.version_number = h.version
				WHERE h.cid = $1 AND h.folder_id = $2 AND v.filename = $3 AND h.id <> $4
			) OR EXISTS (
				SELECT 1 FROM %s
				WHERE cid = $1 AND folder_id = $2 AND filename = $3
			)
		`, r.tables.Documents, r.tables.DocumentVersions, r.tables.Reservations)
		var inUse bool
		if err := db.QueryRow(ctx, taken, contextID, folderID, filename, excludeID).Scan(&inUse); err != nil {
			return classifyWriteError("check filename", err)
		}
		if inUse {
			return nil
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (id, cid, folder_id, filename, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, r.tables.Reservations)
		if _, err := db.Exec(ctx, insert, res.ID, contextID, folderID, filename, models.ToMillis(res.CreatedAt)); err != nil {
			if postgres.IsPgDuplicateError(err) {
				return nil
			}
			return classifyWriteError("insert reservation", err)
		}
		free = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reserve filename: %w", err)
	}
	if !free {
		r.logger.Debug("filename not free",
			"context_id", contextID,
			"folder_id", folderID,
			"filename", filename,
		)
		return nil, false, nil
	}
	return res, true, nil
}

// Release drops the claim. A stale row only delays other writers until the
// janitor removes it, so failures are logged and swallowed.
func (r *PostgresReservationRepository) Release(ctx context.Context, res *models.Reservation) {
	if res == nil || res.Skipped() {
		return
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND cid = $2`, r.tables.Reservations)
	if _, err := r.pool.Exec(ctx, query, res.ID, res.ContextID); err != nil {
		r.logger.Warn("release reservation failed",
			"context_id", res.ContextID,
			"folder_id", res.FolderID,
			"reservation_id", res.ID,
			"error", err,
		)
	}
}

// SweepExpired deletes reservations created before cutoff.
func (r *PostgresReservationRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, r.tables.Reservations)
	tag, err := r.pool.Exec(ctx, query, models.ToMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sweep reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
