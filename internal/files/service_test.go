package files

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daison12006013/docms/internal/platform/storage"
)

type memRepo struct {
	nextNodeID int64
	nextLinkID int64
	nodes      map[int64]Node
	links      map[int64]ShareLink
}

func newMemRepo() *memRepo {
	return &memRepo{nextNodeID: 1, nextLinkID: 1, nodes: map[int64]Node{}, links: map[int64]ShareLink{}}
}

func (m *memRepo) siblingTaken(parentID *int64, name string, excludeID int64) bool {
	for _, n := range m.nodes {
		if n.ID == excludeID || n.DeletedAt != nil || n.Name != name {
			continue
		}
		if (n.ParentID == nil) != (parentID == nil) {
			continue
		}
		if n.ParentID == nil || *n.ParentID == *parentID {
			return true
		}
	}
	return false
}

func (m *memRepo) CreateNode(ctx context.Context, n Node) (Node, error) {
	if m.siblingTaken(n.ParentID, n.Name, 0) {
		return Node{}, ErrNameTaken
	}
	n.ID = m.nextNodeID
	m.nextNodeID++
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	m.nodes[n.ID] = n
	return n, nil
}

func (m *memRepo) GetNode(ctx context.Context, id int64) (Node, error) {
	n, ok := m.nodes[id]
	if !ok || n.DeletedAt != nil {
		return Node{}, ErrNotFound
	}
	return n, nil
}

func (m *memRepo) UpdateNode(ctx context.Context, n Node) (Node, error) {
	current, ok := m.nodes[n.ID]
	if !ok || current.DeletedAt != nil {
		return Node{}, ErrNotFound
	}
	if m.siblingTaken(n.ParentID, n.Name, n.ID) {
		return Node{}, ErrNameTaken
	}
	n.UpdatedAt = time.Now()
	m.nodes[n.ID] = n
	return n, nil
}

func (m *memRepo) ListChildren(ctx context.Context, parentID *int64, sortKey string, limit, offset int) ([]Node, int, error) {
	var matched []Node
	for _, n := range m.nodes {
		if n.DeletedAt != nil {
			continue
		}
		if (n.ParentID == nil) != (parentID == nil) {
			continue
		}
		if n.ParentID != nil && *n.ParentID != *parentID {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memRepo) Subtree(ctx context.Context, rootID int64) ([]Node, error) {
	root, err := m.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	out := []Node{root}
	frontier := []int64{rootID}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, n := range m.nodes {
			if n.DeletedAt != nil || n.ParentID == nil {
				continue
			}
			for _, id := range frontier {
				if *n.ParentID == id {
					out = append(out, n)
					next = append(next, n.ID)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

func (m *memRepo) SoftDeleteSubtree(ctx context.Context, id int64) (int64, error) {
	subtree, err := m.Subtree(ctx, id)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	for _, n := range subtree {
		n.DeletedAt = &now
		m.nodes[n.ID] = n
	}
	return int64(len(subtree)), nil
}

func (m *memRepo) PurgeDeletedNodes(ctx context.Context, cutoff time.Time) ([]string, int64, error) {
	var keys []string
	var removed int64
	for id, n := range m.nodes {
		if n.DeletedAt == nil || !n.DeletedAt.Before(cutoff) {
			continue
		}
		if n.Kind == KindFile && n.StorageKey != "" {
			keys = append(keys, n.StorageKey)
		}
		delete(m.nodes, id)
		removed++
	}
	return keys, removed, nil
}

func (m *memRepo) SearchNodes(ctx context.Context, query string, limit, offset int) ([]Node, int, error) {
	var matched []Node
	for _, n := range m.nodes {
		if n.DeletedAt == nil && strings.Contains(strings.ToLower(n.Name), strings.ToLower(query)) {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memRepo) CreateShareLink(ctx context.Context, l ShareLink) (ShareLink, error) {
	l.ID = m.nextLinkID
	m.nextLinkID++
	l.CreatedAt = time.Now()
	m.links[l.ID] = l
	return l, nil
}

func (m *memRepo) GetShareLink(ctx context.Context, id int64) (ShareLink, error) {
	l, ok := m.links[id]
	if !ok {
		return ShareLink{}, ErrShareLinkInvalid
	}
	return l, nil
}

func (m *memRepo) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	for _, l := range m.links {
		if l.Token == token {
			return l, nil
		}
	}
	return ShareLink{}, ErrShareLinkInvalid
}

func (m *memRepo) RevokeShareLink(ctx context.Context, id int64) error {
	l, ok := m.links[id]
	if !ok || l.RevokedAt != nil {
		return ErrShareLinkInvalid
	}
	now := time.Now()
	l.RevokedAt = &now
	m.links[id] = l
	return nil
}

func (m *memRepo) DeleteExpiredShareLinks(ctx context.Context) (int64, error) {
	var removed int64
	for id, l := range m.links {
		if time.Now().After(l.ExpiresAt) {
			delete(m.links, id)
			removed++
		}
	}
	return removed, nil
}

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	driver, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	repo := newMemRepo()
	return NewService(repo, driver, nil), repo
}

func upload(t *testing.T, svc *Service, parentID *int64, name, content string) Node {
	t.Helper()
	node, err := svc.Upload(context.Background(), nil, parentID, name, "text/plain", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	return node
}

func TestUploadAndDownload(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	node := upload(t, svc, nil, "report.txt", "hello")
	require.Equal(t, KindFile, node.Kind)
	require.NotEmpty(t, node.StorageKey)

	got, rc, err := svc.Download(ctx, node.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, node.ID, got.ID)
}

func TestNameValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, name := range []string{"", "  ", "a/b", `a\b`, ".", "..", "evil\x00"} {
		_, err := svc.CreateFolder(ctx, nil, nil, name)
		require.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	// Decomposed input is normalized to the composed form.
	folder, err := svc.CreateFolder(ctx, nil, nil, "Café")
	require.NoError(t, err)
	require.Equal(t, "Café", folder.Name)
}

func TestSiblingNameConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateFolder(ctx, nil, nil, "docs")
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, nil, nil, "docs")
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestUploadIntoFileRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	file := upload(t, svc, nil, "a.txt", "x")
	_, err := svc.Upload(ctx, nil, &file.ID, "b.txt", "text/plain", 1, strings.NewReader("y"))
	require.ErrorIs(t, err, ErrNotFolder)
}

func TestMoveCycleRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	parent, err := svc.CreateFolder(ctx, nil, nil, "parent")
	require.NoError(t, err)
	child, err := svc.CreateFolder(ctx, nil, &parent.ID, "child")
	require.NoError(t, err)

	_, err = svc.Move(ctx, nil, parent.ID, &child.ID)
	require.ErrorIs(t, err, ErrCycle)
	_, err = svc.Move(ctx, nil, parent.ID, &parent.ID)
	require.ErrorIs(t, err, ErrCycle)

	// Moving the child out to the root is fine.
	moved, err := svc.Move(ctx, nil, child.ID, nil)
	require.NoError(t, err)
	require.Nil(t, moved.ParentID)
}

func TestDeleteIsRecursive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	folder, err := svc.CreateFolder(ctx, nil, nil, "docs")
	require.NoError(t, err)
	file := upload(t, svc, &folder.ID, "a.txt", "x")

	require.NoError(t, svc.Delete(ctx, nil, folder.ID))

	_, err = svc.Get(ctx, folder.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, file.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.Download(ctx, file.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTrashPurgeRemovesRowsAndBytes(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	kept := upload(t, svc, nil, "keep.txt", "keep")
	gone := upload(t, svc, nil, "gone.txt", "gone")
	require.NoError(t, svc.Delete(ctx, nil, gone.ID))

	// Age the soft delete past the retention window.
	stored := repo.nodes[gone.ID]
	old := time.Now().Add(-DefaultTrashRetention - time.Hour)
	stored.DeletedAt = &old
	repo.nodes[gone.ID] = stored

	removed, err := svc.PurgeTrash(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok := repo.nodes[gone.ID]
	require.False(t, ok)
	_, err = svc.store.Get(ctx, stored.StorageKey)
	require.Error(t, err)

	// The live file is untouched.
	_, rc, err := svc.Download(ctx, kept.ID)
	require.NoError(t, err)
	rc.Close()
}

func TestShareLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	file := upload(t, svc, nil, "a.txt", "shared")
	link, err := svc.CreateShareLink(ctx, nil, file.ID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	node, rc, err := svc.ResolveShareLink(ctx, link.Token)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, "shared", string(body))
	require.Equal(t, file.ID, node.ID)

	// Unknown token fails closed.
	_, _, err = svc.ResolveShareLink(ctx, "nope")
	require.ErrorIs(t, err, ErrShareLinkInvalid)

	// Revocation takes immediate effect.
	require.NoError(t, svc.RevokeShareLink(ctx, nil, link.ID))
	_, _, err = svc.ResolveShareLink(ctx, link.Token)
	require.ErrorIs(t, err, ErrShareLinkInvalid)
}

func TestShareLinkExpiryFailsClosed(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	file := upload(t, svc, nil, "a.txt", "shared")
	link, err := svc.CreateShareLink(ctx, nil, file.ID, time.Hour)
	require.NoError(t, err)

	// Force the expiry into the past.
	stored := repo.links[link.ID]
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	repo.links[link.ID] = stored

	_, _, err = svc.ResolveShareLink(ctx, link.Token)
	require.ErrorIs(t, err, ErrShareLinkInvalid)

	purged, err := svc.PurgeExpiredShareLinks(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}

func TestShareLinkForDeletedNodeFailsClosed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	file := upload(t, svc, nil, "a.txt", "shared")
	link, err := svc.CreateShareLink(ctx, nil, file.ID, time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, nil, file.ID))
	_, _, err = svc.ResolveShareLink(ctx, link.Token)
	require.ErrorIs(t, err, ErrShareLinkInvalid)
}

func TestShareLinkOnFolderRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	folder, err := svc.CreateFolder(ctx, nil, nil, "docs")
	require.NoError(t, err)
	_, err = svc.CreateShareLink(ctx, nil, folder.ID, time.Hour)
	require.ErrorIs(t, err, ErrNotFile)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	upload(t, svc, nil, "quarterly-report.txt", "x")
	upload(t, svc, nil, "notes.txt", "y")

	nodes, pagination, err := svc.Search(ctx, "report", 1, 10)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "quarterly-report.txt", nodes[0].Name)
	require.Equal(t, 1, pagination.Total)

	// Empty queries return nothing instead of everything.
	nodes, _, err = svc.Search(ctx, "   ", 1, 10)
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestTreeListsSubtree(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	root, err := svc.CreateFolder(ctx, nil, nil, "root")
	require.NoError(t, err)
	sub, err := svc.CreateFolder(ctx, nil, &root.ID, "sub")
	require.NoError(t, err)
	upload(t, svc, &sub.ID, "deep.txt", "x")

	nodes, err := svc.Tree(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Equal(t, root.ID, nodes[0].ID)
}
