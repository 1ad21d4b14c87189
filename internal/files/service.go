package files

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/daison12006013/docms/internal/audit"
	"github.com/daison12006013/docms/internal/platform/storage"
	"github.com/daison12006013/docms/internal/shared"
)

const maxNameLength = 255

// DefaultShareTTL applies when a share link is created without an
// explicit lifetime.
const DefaultShareTTL = 7 * 24 * time.Hour

// Service implements the file manager on top of a repository and a
// storage driver.
type Service struct {
	repo    RepositoryPort
	store   storage.Driver
	auditor *audit.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store storage.Driver, auditor *audit.Logger) *Service {
	return &Service{repo: repo, store: store, auditor: auditor}
}

// cleanName normalizes a node name to NFC and rejects anything that could
// escape the hierarchy.
func cleanName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" || len(name) > maxNameLength {
		return "", ErrInvalidName
	}
	if name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", ErrInvalidName
	}
	return name, nil
}

// checkParent verifies the target parent exists and is a folder. A nil
// parent is the root level.
func (s *Service) checkParent(ctx context.Context, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.repo.GetNode(ctx, *parentID)
	if err != nil {
		return err
	}
	if parent.Kind != KindFolder {
		return ErrNotFolder
	}
	return nil
}

// CreateFolder adds an empty folder under the given parent.
func (s *Service) CreateFolder(ctx context.Context, actorID *int64, parentID *int64, name string) (Node, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return Node{}, err
	}
	if err := s.checkParent(ctx, parentID); err != nil {
		return Node{}, err
	}
	node, err := s.repo.CreateNode(ctx, Node{
		ParentID: parentID,
		Kind:     KindFolder,
		Name:     cleaned,
		OwnerID:  actorID,
	})
	if err != nil {
		return Node{}, err
	}
	s.auditor.Record(ctx, actorID, "folder.create", "node", &node.ID, node.Name)
	return node, nil
}

// Upload streams a file into the storage driver under a fresh uuid key,
// then records the node. The storage object is removed again when the
// insert fails so no orphan bytes are left behind.
func (s *Service) Upload(ctx context.Context, actorID *int64, parentID *int64, name, contentType string, size int64, r io.Reader) (Node, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return Node{}, err
	}
	if err := s.checkParent(ctx, parentID); err != nil {
		return Node{}, err
	}

	key := uuid.NewString()
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return Node{}, err
	}

	node, err := s.repo.CreateNode(ctx, Node{
		ParentID:    parentID,
		Kind:        KindFile,
		Name:        cleaned,
		Size:        size,
		ContentType: contentType,
		StorageKey:  key,
		OwnerID:     actorID,
	})
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return Node{}, err
	}
	s.auditor.Record(ctx, actorID, "file.upload", "node", &node.ID, node.Name)
	return node, nil
}

// Get fetches a single live node.
func (s *Service) Get(ctx context.Context, id int64) (Node, error) {
	return s.repo.GetNode(ctx, id)
}

// Rename changes a node's name in place.
func (s *Service) Rename(ctx context.Context, actorID *int64, id int64, name string) (Node, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return Node{}, err
	}
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	previous := node.Name
	node.Name = cleaned
	updated, err := s.repo.UpdateNode(ctx, node)
	if err != nil {
		return Node{}, err
	}
	s.auditor.Record(ctx, actorID, "node.rename", "node", &updated.ID, previous+" -> "+updated.Name)
	return updated, nil
}

// Move reparents a node. Moving a folder into its own subtree is refused.
func (s *Service) Move(ctx context.Context, actorID *int64, id int64, newParentID *int64) (Node, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	if err := s.checkParent(ctx, newParentID); err != nil {
		return Node{}, err
	}
	if newParentID != nil {
		if *newParentID == id {
			return Node{}, ErrCycle
		}
		if node.Kind == KindFolder {
			inside, err := s.isDescendant(ctx, id, *newParentID)
			if err != nil {
				return Node{}, err
			}
			if inside {
				return Node{}, ErrCycle
			}
		}
	}
	node.ParentID = newParentID
	updated, err := s.repo.UpdateNode(ctx, node)
	if err != nil {
		return Node{}, err
	}
	s.auditor.Record(ctx, actorID, "node.move", "node", &updated.ID, updated.Name)
	return updated, nil
}

// isDescendant reports whether candidate sits inside root's subtree.
func (s *Service) isDescendant(ctx context.Context, rootID, candidateID int64) (bool, error) {
	subtree, err := s.repo.Subtree(ctx, rootID)
	if err != nil {
		return false, err
	}
	for _, n := range subtree {
		if n.ID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

// Delete soft-deletes a node and, for folders, everything underneath it.
// Storage objects stay in place; listings and downloads stop immediately.
func (s *Service) Delete(ctx context.Context, actorID *int64, id int64) error {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.SoftDeleteSubtree(ctx, id); err != nil {
		return err
	}
	s.auditor.Record(ctx, actorID, "node.delete", "node", &id, node.Name)
	return nil
}

// Children lists one level of the hierarchy with pagination.
func (s *Service) Children(ctx context.Context, parentID *int64, sort string, page, perPage int) ([]Node, shared.Pagination, error) {
	if err := s.checkParent(ctx, parentID); err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, 0)
	nodes, total, err := s.repo.ListChildren(ctx, parentID, sort, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return nodes, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Tree returns a node and its whole live subtree, parents first.
func (s *Service) Tree(ctx context.Context, rootID int64) ([]Node, error) {
	return s.repo.Subtree(ctx, rootID)
}

// Search finds live nodes by name.
func (s *Service) Search(ctx context.Context, query string, page, perPage int) ([]Node, shared.Pagination, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, shared.NewPagination(1, perPage, 0), nil
	}
	p := shared.NewPagination(page, perPage, 0)
	nodes, total, err := s.repo.SearchNodes(ctx, query, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return nodes, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Download opens the byte stream behind a file node. The caller owns the
// returned ReadCloser.
func (s *Service) Download(ctx context.Context, id int64) (Node, io.ReadCloser, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, nil, err
	}
	if node.Kind != KindFile {
		return Node{}, nil, ErrNotFile
	}
	rc, err := s.store.Get(ctx, node.StorageKey)
	if err != nil {
		return Node{}, nil, err
	}
	return node, rc, nil
}

// CreateShareLink issues a tokenized download link for a file node.
func (s *Service) CreateShareLink(ctx context.Context, actorID *int64, nodeID int64, ttl time.Duration) (ShareLink, error) {
	node, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return ShareLink{}, err
	}
	if node.Kind != KindFile {
		return ShareLink{}, ErrNotFile
	}
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	link, err := s.repo.CreateShareLink(ctx, ShareLink{
		NodeID:    nodeID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl),
		CreatedBy: actorID,
	})
	if err != nil {
		return ShareLink{}, err
	}
	s.auditor.Record(ctx, actorID, "share.create", "share_link", &link.ID, node.Name)
	return link, nil
}

// ResolveShareLink turns a token into a download stream. Expired and
// revoked links, and links whose node has been deleted, all fail with the
// same error.
func (s *Service) ResolveShareLink(ctx context.Context, token string) (Node, io.ReadCloser, error) {
	link, err := s.repo.GetShareLinkByToken(ctx, token)
	if err != nil {
		return Node{}, nil, ErrShareLinkInvalid
	}
	if link.RevokedAt != nil || time.Now().After(link.ExpiresAt) {
		return Node{}, nil, ErrShareLinkInvalid
	}
	node, err := s.repo.GetNode(ctx, link.NodeID)
	if err != nil {
		return Node{}, nil, ErrShareLinkInvalid
	}
	if node.Kind != KindFile {
		return Node{}, nil, ErrShareLinkInvalid
	}
	rc, err := s.store.Get(ctx, node.StorageKey)
	if err != nil {
		return Node{}, nil, err
	}
	return node, rc, nil
}

// RevokeShareLink invalidates a link immediately.
func (s *Service) RevokeShareLink(ctx context.Context, actorID *int64, id int64) error {
	if err := s.repo.RevokeShareLink(ctx, id); err != nil {
		return err
	}
	s.auditor.Record(ctx, actorID, "share.revoke", "share_link", &id, "")
	return nil
}

// PurgeExpiredShareLinks removes expired rows, returning the count.
func (s *Service) PurgeExpiredShareLinks(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredShareLinks(ctx)
}

// DefaultTrashRetention is how long soft-deleted nodes stay recoverable
// before the maintenance sweep reclaims them.
const DefaultTrashRetention = 30 * 24 * time.Hour

// PurgeTrash hard-deletes nodes soft-deleted before the retention window
// and reclaims their stored bytes. Rows are removed first; storage
// failures after that point are joined into the returned error while the
// row count still reflects what was purged.
func (s *Service) PurgeTrash(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultTrashRetention
	}
	keys, removed, err := s.repo.PurgeDeletedNodes(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	var storageErrs []error
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			storageErrs = append(storageErrs, err)
		}
	}
	return removed, errors.Join(storageErrs...)
}
