package infostore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	"infostore/internal/repository/postgres"
)

var _ repo.FolderRepository = (*PostgresFolderRepository)(nil)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) *PostgresFolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create creates a new folder. The id is drawn from the folder sequence.
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ContextID <= 0 {
		return domain.NewCodeError("create folder: missing context id")
	}
	if folder.Module == "" {
		folder.Module = models.ModuleInfostore
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if folder.CreationDate.IsZero() {
		folder.CreationDate = now
	}
	folder.LastModified = now

	query := fmt.Sprintf(`
		INSERT INTO %s (cid, id, parent_id, name, module, created_by, creating_date, last_modified)
		VALUES ($1, nextval('%s_id_seq'), $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, r.tables.Folders, r.tables.Folders)

	db := postgres.GetExecutor(ctx, r.pool)
	err := db.QueryRow(ctx, query,
		folder.ContextID,
		folder.ParentID,
		folder.Name,
		folder.Module,
		folder.CreatedBy,
		models.ToMillis(folder.CreationDate),
		models.ToMillis(folder.LastModified),
	).Scan(&folder.ID)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("folder '%s': %w", folder.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, contextID, id int64) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT parent_id, name, module, created_by, creating_date, last_modified
		FROM %s
		WHERE cid = $1 AND id = $2
	`, r.tables.Folders)

	folder := models.Folder{ContextID: contextID, ID: id}
	var created, modified int64
	db := postgres.GetExecutor(ctx, r.pool)
	err := db.QueryRow(ctx, query, contextID, id).Scan(
		&folder.ParentID,
		&folder.Name,
		&folder.Module,
		&folder.CreatedBy,
		&created,
		&modified,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %d not found", id)}
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	folder.CreationDate = models.FromMillis(created)
	folder.LastModified = models.FromMillis(modified)

	return &folder, nil
}
