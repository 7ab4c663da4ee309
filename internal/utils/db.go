package utils

import (
	"database/sql"

	_ "github.com/lib/pq"
)

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return db, nil
}

func BuildPostgresDSNFromEnv() string {
	user := EnvString("PG_USER", "postgres")
	dsn := "postgres://" + user
	if pass := EnvString("PG_PASSWORD", ""); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + EnvString("PG_HOST", "localhost") + ":" + EnvString("PG_PORT", "5432") +
		"/" + EnvString("PG_DB", "regions") + "?sslmode=" + EnvString("PG_SSLMODE", "disable")
	return dsn
}

// OpenPostgresFromEnv：连接池大小由 PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 覆盖
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := OpenPostgres(BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(EnvInt("PG_MAX_OPEN_CONNS", 50))
	db.SetMaxIdleConns(EnvInt("PG_MAX_IDLE_CONNS", 25))
	return db, nil
}
