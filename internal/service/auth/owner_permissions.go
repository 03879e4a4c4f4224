package auth

import (
	"context"
	"errors"
	"fmt"

	"infostore/internal/domain"
	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
	svc "infostore/internal/domain/services/infostore"
)

var _ svc.PermissionResolver = (*OwnerPermissions)(nil)

// OwnerPermissions implements PermissionResolver using folder ownership.
// The folder's creator gets PermissionAdmin; everyone else in the same
// context gets Others.
//
// This is the simplest model. The real ACL evaluator plugs in through the
// same interface.
type OwnerPermissions struct {
	folders repo.FolderReader
	others  models.PermissionLevel
}

// NewOwnerPermissions creates an ownership-based resolver
func NewOwnerPermissions(folders repo.FolderReader, others models.PermissionLevel) *OwnerPermissions {
	return &OwnerPermissions{folders: folders, others: others}
}

// PermissionFor returns the caller's level on folderID. A missing folder
// yields PermissionNone rather than an error so listings fail closed.
func (p *OwnerPermissions) PermissionFor(ctx context.Context, contextID, folderID int64, caller models.Caller) (models.PermissionLevel, error) {
	if caller.ContextID != contextID {
		return models.PermissionNone, nil
	}
	folder, err := p.folders.GetByID(ctx, contextID, folderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.PermissionNone, nil
		}
		return models.PermissionNone, fmt.Errorf("resolve folder permission: %w", err)
	}
	if folder.CreatedBy == caller.UserID {
		return models.PermissionAdmin, nil
	}
	return p.others, nil
}
