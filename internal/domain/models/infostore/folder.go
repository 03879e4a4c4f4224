package infostore

import "time"

// ModuleInfostore marks folders that hold documents.
const ModuleInfostore = "infostore"

// Folder is the minimal folder record the engine needs: the lock target for
// filename reservations and the owner used by the default permission resolver.
type Folder struct {
	ContextID    int64     `json:"-"`
	ID           int64     `json:"id"`
	ParentID     *int64    `json:"parent_id"` // NULL = root level
	Name         string    `json:"name"`
	Module       string    `json:"module"`
	CreatedBy    int64     `json:"created_by"`
	CreationDate time.Time `json:"creation_date"`
	LastModified time.Time `json:"last_modified"`
}

// IsDocumentFolder reports whether documents may be stored in the folder.
func (f *Folder) IsDocumentFolder() bool {
	return f.Module == ModuleInfostore
}
