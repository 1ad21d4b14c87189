package files

import (
	"errors"
	"time"
)

// Node kinds.
const (
	KindFolder = "folder"
	KindFile   = "file"
)

// Node is a file or folder in the hierarchy. Files carry a storage key
// pointing at the byte store; folders never do.
type Node struct {
	ID          int64      `json:"id"`
	ParentID    *int64     `json:"parent_id,omitempty"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type,omitempty"`
	StorageKey  string     `json:"-"`
	OwnerID     *int64     `json:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

// ShareLink grants anonymous download access to a single file node until
// it expires or is revoked.
type ShareLink struct {
	ID        int64      `json:"id"`
	NodeID    int64      `json:"node_id"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

var (
	// ErrNotFound is returned for unknown or soft-deleted nodes.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidName rejects empty names and names containing path separators.
	ErrInvalidName = errors.New("invalid node name")
	// ErrNameTaken is returned when a sibling with the same name exists.
	ErrNameTaken = errors.New("a node with that name already exists here")
	// ErrNotFolder is returned when a file is used as a parent.
	ErrNotFolder = errors.New("parent is not a folder")
	// ErrNotFile is returned for folder downloads and folder share links.
	ErrNotFile = errors.New("node is not a file")
	// ErrCycle rejects moves that would place a folder under itself.
	ErrCycle = errors.New("cannot move a folder into its own subtree")
	// ErrShareLinkInvalid covers unknown, expired and revoked tokens alike
	// so a caller cannot probe which one it was.
	ErrShareLinkInvalid = errors.New("share link is invalid")
)
