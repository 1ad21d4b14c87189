package files

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daison12006013/docms/internal/platform/db"
)

const uniqueViolation = "23505"

// RepositoryPort defines persistence for nodes and share links.
type RepositoryPort interface {
	CreateNode(ctx context.Context, n Node) (Node, error)
	GetNode(ctx context.Context, id int64) (Node, error)
	UpdateNode(ctx context.Context, n Node) (Node, error)
	ListChildren(ctx context.Context, parentID *int64, sort string, limit, offset int) ([]Node, int, error)
	Subtree(ctx context.Context, rootID int64) ([]Node, error)
	SoftDeleteSubtree(ctx context.Context, id int64) (int64, error)
	PurgeDeletedNodes(ctx context.Context, cutoff time.Time) ([]string, int64, error)
	SearchNodes(ctx context.Context, query string, limit, offset int) ([]Node, int, error)

	CreateShareLink(ctx context.Context, l ShareLink) (ShareLink, error)
	GetShareLink(ctx context.Context, id int64) (ShareLink, error)
	GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error)
	RevokeShareLink(ctx context.Context, id int64) error
	DeleteExpiredShareLinks(ctx context.Context) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const nodeColumns = `id, parent_id, kind, name, size, content_type, storage_key, owner_id, created_at, updated_at, deleted_at`

func scanNode(row pgx.Row) (Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.ParentID, &n.Kind, &n.Name, &n.Size, &n.ContentType, &n.StorageKey, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, ErrNotFound
	}
	return n, err
}

// CreateNode inserts a node. A live sibling with the same name maps to
// ErrNameTaken via the partial unique index.
func (r *Repository) CreateNode(ctx context.Context, n Node) (Node, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO nodes (parent_id, kind, name, size, content_type, storage_key, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+nodeColumns,
		n.ParentID, n.Kind, n.Name, n.Size, n.ContentType, n.StorageKey, n.OwnerID)
	created, err := scanNode(row)
	if isUniqueViolation(err) {
		return Node{}, ErrNameTaken
	}
	return created, err
}

// GetNode fetches a live node by id.
func (r *Repository) GetNode(ctx context.Context, id int64) (Node, error) {
	return scanNode(r.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+` FROM nodes WHERE id = $1 AND deleted_at IS NULL`, id))
}

// UpdateNode persists name and parent changes.
func (r *Repository) UpdateNode(ctx context.Context, n Node) (Node, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE nodes SET name = $2, parent_id = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+nodeColumns,
		n.ID, n.Name, n.ParentID)
	updated, err := scanNode(row)
	if isUniqueViolation(err) {
		return Node{}, ErrNameTaken
	}
	return updated, err
}

// Allowed sort keys for listings. Keys are whitelisted because they are
// interpolated into the ORDER BY clause.
var sortClauses = map[string]string{
	"name":       "name ASC",
	"name_desc":  "name DESC",
	"created_at": "created_at ASC",
	"newest":     "created_at DESC",
	"size":       "size ASC",
	"size_desc":  "size DESC",
}

func sortClause(sort string) string {
	if clause, ok := sortClauses[sort]; ok {
		return clause
	}
	return "kind DESC, name ASC"
}

// ListChildren returns a page of live children of a folder. A nil parent
// lists the root level.
func (r *Repository) ListChildren(ctx context.Context, parentID *int64, sort string, limit, offset int) ([]Node, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM nodes
		WHERE parent_id IS NOT DISTINCT FROM $1 AND deleted_at IS NULL`, parentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE parent_id IS NOT DISTINCT FROM $1 AND deleted_at IS NULL
		ORDER BY `+sortClause(sort)+`
		LIMIT $2 OFFSET $3`, parentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectNodes(rows)
	return out, total, err
}

// Subtree returns the root node and every live descendant, parents before
// children.
func (r *Repository) Subtree(ctx context.Context, rootID int64) ([]Node, error) {
	rows, err := r.pool.Query(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT `+nodeColumns+`, 0 AS depth FROM nodes WHERE id = $1 AND deleted_at IS NULL
			UNION ALL
			SELECT n.id, n.parent_id, n.kind, n.name, n.size, n.content_type, n.storage_key, n.owner_id, n.created_at, n.updated_at, n.deleted_at, s.depth + 1
			FROM nodes n
			JOIN subtree s ON n.parent_id = s.id
			WHERE n.deleted_at IS NULL
		)
		SELECT `+nodeColumns+` FROM subtree ORDER BY depth, name`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := collectNodes(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SoftDeleteSubtree marks a node and all its live descendants deleted and
// returns how many rows were touched.
func (r *Repository) SoftDeleteSubtree(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM nodes WHERE id = $1 AND deleted_at IS NULL
			UNION ALL
			SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
			WHERE n.deleted_at IS NULL
		)
		UPDATE nodes SET deleted_at = NOW()
		WHERE id IN (SELECT id FROM subtree)`, id)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return tag.RowsAffected(), nil
}

// PurgeDeletedNodes hard-deletes every node soft-deleted before the
// cutoff and returns the storage keys of the removed files so the sweep
// can reclaim their bytes. Share links on the purged nodes go with them
// through the cascading foreign key. Keys are collected before the
// delete inside one transaction because the self-referencing cascade
// makes DELETE ... RETURNING skip rows it has already removed.
func (r *Repository) PurgeDeletedNodes(ctx context.Context, cutoff time.Time) ([]string, int64, error) {
	var keys []string
	var removed int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT storage_key FROM nodes
			WHERE deleted_at IS NOT NULL AND deleted_at < $1
			  AND kind = $2 AND storage_key <> ''`, cutoff.UTC(), KindFile)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM nodes
			WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff.UTC())
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return keys, removed, nil
}

// SearchNodes finds live nodes whose name matches the query.
func (r *Repository) SearchNodes(ctx context.Context, query string, limit, offset int) ([]Node, int, error) {
	pattern := "%" + query + "%"

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM nodes WHERE name ILIKE $1 AND deleted_at IS NULL`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE name ILIKE $1 AND deleted_at IS NULL
		ORDER BY name
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectNodes(rows)
	return out, total, err
}

func collectNodes(rows pgx.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const shareLinkColumns = `id, node_id, token, expires_at, created_by, revoked_at, created_at`

func scanShareLink(row pgx.Row) (ShareLink, error) {
	var l ShareLink
	err := row.Scan(&l.ID, &l.NodeID, &l.Token, &l.ExpiresAt, &l.CreatedBy, &l.RevokedAt, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ShareLink{}, ErrShareLinkInvalid
	}
	return l, err
}

// CreateShareLink inserts a share link.
func (r *Repository) CreateShareLink(ctx context.Context, l ShareLink) (ShareLink, error) {
	return scanShareLink(r.pool.QueryRow(ctx, `
		INSERT INTO share_links (node_id, token, expires_at, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+shareLinkColumns,
		l.NodeID, l.Token, l.ExpiresAt.UTC(), l.CreatedBy))
}

// GetShareLink fetches a share link by id.
func (r *Repository) GetShareLink(ctx context.Context, id int64) (ShareLink, error) {
	return scanShareLink(r.pool.QueryRow(ctx, `
		SELECT `+shareLinkColumns+` FROM share_links WHERE id = $1`, id))
}

// GetShareLinkByToken fetches a share link by token. Validity checks are
// the service's job.
func (r *Repository) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	return scanShareLink(r.pool.QueryRow(ctx, `
		SELECT `+shareLinkColumns+` FROM share_links WHERE token = $1`, token))
}

// RevokeShareLink marks a link revoked.
func (r *Repository) RevokeShareLink(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE share_links SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareLinkInvalid
	}
	return nil
}

// DeleteExpiredShareLinks removes links past their expiry.
func (r *Repository) DeleteExpiredShareLinks(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM share_links WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ RepositoryPort = (*Repository)(nil)
