package blob

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStorage struct {
	pool *pgxpool.Pool
}

var _ Storage = (*postgresStorage)(nil)

// NewPostgresStorage uses the drive_blob table (see pkg/db/migrate).
func NewPostgresStorage(pool *pgxpool.Pool) Storage {
	return &postgresStorage{pool: pool}
}

func (s *postgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"select data from drive_blob where key=$1", key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *postgresStorage) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
insert into drive_blob (key, data, updated_at) values ($1, $2, now())
on conflict (key) do update set data=excluded.data, updated_at=excluded.updated_at`,
		key, data)
	return err
}

func (s *postgresStorage) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, "delete from drive_blob where key=$1", key)
	return err
}
