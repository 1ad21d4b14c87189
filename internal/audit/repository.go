package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and reads audit entries.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert writes one audit row.
func (r *PGRepository) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())`,
		e.ActorID, e.Action, e.Entity, e.EntityID, e.Detail)
	return err
}

// List returns a filtered page of entries, newest first, plus the total count.
func (r *PGRepository) List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error) {
	where := `WHERE ($1::bigint IS NULL OR actor_id = $1)
		AND ($2 = '' OR entity = $2)
		AND ($3 = '' OR action = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, f.Actor, f.Entity, f.Action).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, entity, entity_id, COALESCE(detail, ''), created_at
		FROM audit_logs `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`,
		f.Actor, f.Entity, f.Action, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
