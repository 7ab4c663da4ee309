package utils

import (
	"region-sync/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisOptionsFromEnv：由 REDIS_HOST/PORT/PASS/DB 构造连接参数
// 约束：REDIS_DB 解析失败或为负时回退到 0
func RedisOptionsFromEnv() *redis.Options {
	addr := EnvString("REDIS_HOST", "127.0.0.1") + ":" + EnvString("REDIS_PORT", "6379")
	db := EnvInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	return &redis.Options{Addr: addr, Password: EnvString("REDIS_PASS", ""), DB: db}
}

// OpenRedisFromEnv：从环境变量打开 Redis 客户端
func OpenRedisFromEnv() *redis.Client {
	o := RedisOptionsFromEnv()
	logger.L().Debug("redis_env", "addr", o.Addr, "db", o.DB)
	return redis.NewClient(o)
}
