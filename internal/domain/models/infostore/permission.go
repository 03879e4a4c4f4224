package infostore

// PermissionLevel is the caller's effective right on a folder, as decided by
// the external permission evaluator.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	// PermissionSeeFolder allows listing but not reading foreign documents.
	PermissionSeeFolder
	PermissionReadOwn
	PermissionReadAll
	PermissionWrite
	PermissionAdmin
)

// Caller identifies who is acting, always inside exactly one context.
type Caller struct {
	ContextID int64
	UserID    int64
}

// CanRead reports whether a document created by owner may be read in full.
func (p PermissionLevel) CanRead(caller Caller, owner int64) bool {
	if p >= PermissionReadAll {
		return true
	}
	return p == PermissionReadOwn && caller.UserID == owner
}

var permissionNames = map[string]PermissionLevel{
	"none":       PermissionNone,
	"see_folder": PermissionSeeFolder,
	"read_own":   PermissionReadOwn,
	"read_all":   PermissionReadAll,
	"write":      PermissionWrite,
	"admin":      PermissionAdmin,
}

// ParsePermissionLevel maps a configuration name such as "read_all" to its
// level.
func ParsePermissionLevel(name string) (PermissionLevel, bool) {
	p, ok := permissionNames[name]
	return p, ok
}
