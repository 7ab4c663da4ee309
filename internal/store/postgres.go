package store

import (
	"context"
	"database/sql"
	"errors"
	"region-sync/internal/logger"
	"region-sync/internal/region"

	_ "github.com/lib/pq"
)

// Postgres：关系型持久存储，索引来自 regions_idx_seq 序列（自 0 起）
type Postgres struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (s *Postgres) DB() *sql.DB { return s.db }

func (s *Postgres) Persist(ctx context.Context, r region.Region) (int64, error) {
	var idx int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO regions(idx, name, latitude, longitude, ts, user_id)
        VALUES(nextval('regions_idx_seq'), $1, $2, $3, $4, $5)
        RETURNING idx`,
		r.Name, r.Latitude, r.Longitude, r.Timestamp, r.OwnerID,
	).Scan(&idx)
	if err != nil {
		return 0, err
	}
	logger.L().Debug("db_region_persisted", "idx", idx, "name", r.Name)
	return idx, nil
}

func (s *Postgres) FetchAll(ctx context.Context) ([]region.Region, error) {
	recs, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	return regionsOf(recs), nil
}

func (s *Postgres) List(ctx context.Context, limit int) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT idx, name, latitude, longitude, ts, user_id FROM regions ORDER BY idx LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT idx, name, latitude, longitude, ts, user_id FROM regions ORDER BY idx`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Index, &rec.Name, &rec.Latitude, &rec.Longitude, &rec.Timestamp, &rec.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_regions_listed", "count", len(out))
	return out, nil
}

func (s *Postgres) Get(ctx context.Context, idx int64) (Record, error) {
	rec := Record{Index: idx}
	err := s.db.QueryRowContext(ctx, `SELECT name, latitude, longitude, ts, user_id FROM regions WHERE idx=$1`, idx).
		Scan(&rec.Name, &rec.Latitude, &rec.Longitude, &rec.Timestamp, &rec.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Postgres) Delete(ctx context.Context, idx int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM regions WHERE idx=$1`, idx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM regions`).Scan(&n)
	return n, err
}

func (s *Postgres) Close() error { return s.db.Close() }
