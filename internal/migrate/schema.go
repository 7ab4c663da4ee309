package migrate

import (
	"context"
	"database/sql"
	"region-sync/internal/logger"
)

// Statements：regions 表与索引序列的建表语句，按顺序执行
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；序列自 0 起，与文档数据库的键一致
var Statements = []string{
	`CREATE SEQUENCE IF NOT EXISTS regions_idx_seq MINVALUE 0 START WITH 0`,
	`CREATE TABLE IF NOT EXISTS regions (
            idx BIGINT PRIMARY KEY,
            name TEXT NOT NULL,
            latitude DOUBLE PRECISION NOT NULL,
            longitude DOUBLE PRECISION NOT NULL,
            ts BIGINT NOT NULL,
            user_id INT NOT NULL CHECK (user_id >= 0)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_regions_name ON regions(name)`,
}

// EnsureSchema：首次运行自动创建所需表与序列
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
