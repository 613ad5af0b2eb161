package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicecrm/backend/domain"
)

// anchorRow is the stable-order tuple of a keyset anchor.
type anchorRow struct {
	createdAt      time.Time
	lastModifiedAt time.Time
}

func collectIDSet[T ~string](ctx context.Context, pool *pgxpool.Pool, query string, arg string) (domain.IDSet[T], error) {
	rows, err := pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := domain.NewIDSet[T]()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set.Add(T(id))
	}
	return set, rows.Err()
}
