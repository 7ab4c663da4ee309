// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"region-sync/internal/api"
	"region-sync/internal/geo"
	"region-sync/internal/geocode"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"region-sync/internal/middleware"
	"region-sync/internal/migrate"
	"region-sync/internal/pipeline"
	"region-sync/internal/remote"
	"region-sync/internal/store"
	"region-sync/internal/utils"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// openStore：按 REGION_STORE 选择持久存储；redis 同时返回客户端供缓存复用
func openStore(ctx context.Context) (store.Admin, *redis.Client, error) {
	l := logger.L()
	switch kind := utils.EnvString("REGION_STORE", "redis"); kind {
	case "memory":
		l.Warn("store_memory", "reason", "regions are lost on restart")
		return store.NewMemory(), nil, nil
	case "postgres":
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store.AttachDB(db), nil, nil
	case "redis":
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		return store.NewRedis(rc, utils.EnvString("REDIS_REGION_PREFIX", store.DefaultRedisPrefix)), rc, nil
	default:
		return nil, nil, errors.New("unknown REGION_STORE: " + kind)
	}
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiBase := utils.EnvString("API_BASE", "/api")
	st, rc, err := openStore(ctx)
	if err != nil {
		l.Error("store_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg := pipeline.Config{
		RemoteTimeout:   remote.ClampTimeout(utils.EnvDuration("REMOTE_QUERY_TIMEOUT", remote.DefaultTimeout)),
		ProximityMeters: utils.EnvFloat("PROXIMITY_METERS", geo.ProximityMeters),
		AutoStart:       utils.EnvBool("WORKER_AUTOSTART", true),
	}
	l.Info("config_pipeline", "api_base", apiBase, "remote_timeout", cfg.RemoteTimeout, "proximity_m", cfg.ProximityMeters, "autostart", cfg.AutoStart)
	p := pipeline.New(st, cfg)
	if cfg.AutoStart {
		if err := p.StartPersistenceWorker(ctx); err != nil {
			l.Error("worker_start_error", "err", err)
		}
	}

	var resolver geocode.Resolver
	if key := os.Getenv("AMAP_SERVER_KEY"); key != "" {
		resolver = geocode.NewCached(geocode.NewAMap(key, nil), rc, utils.EnvDuration("GEOCODE_CACHE_TTL", time.Hour))
		l.Info("geocode_enabled", "provider", "amap", "cache", rc != nil)
	}
	var replay *api.ReplayGuard
	if utils.EnvBool("REPLAY_GUARD_ENABLED", false) {
		replay = api.NewReplayGuard(rc, utils.EnvDuration("REPLAY_GUARD_WINDOW", 10*time.Second))
		l.Info("replay_guard", "enabled", replay != nil)
	}

	apiMux := api.BuildRoutes(api.Deps{
		Core:       p,
		Records:    st,
		Geocoder:   resolver,
		Replay:     replay,
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		WorkerCtx:  ctx,
	})
	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := utils.EnvString("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		if utils.EnvBool("TLS_ENABLE", false) {
			certPath := utils.EnvString("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
			keyPath := utils.EnvString("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
			if err := utils.EnsureSelfSignedCert(certPath, keyPath, "region-sync.local"); err != nil {
				errc <- err
				return
			}
			l.Info("listening_tls", "addr", addr, "cert", certPath)
			errc <- s.ListenAndServeTLS(certPath, keyPath)
			return
		}
		l.Info("listening", "addr", addr)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = s.Shutdown(shutdownCtx)
	if err := p.Close(shutdownCtx); err != nil {
		l.Error("pipeline_close_error", "err", err)
	}
	l.Info("shutdown_done", "pending_dropped", p.PendingLen())
}
