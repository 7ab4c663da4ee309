// 运维工具：交互式查看与清理持久化区域
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"region-sync/internal/geo"
	"region-sync/internal/migrate"
	"region-sync/internal/store"
	"region-sync/internal/utils"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  list [limit]")
	fmt.Fprintln(w, "  get <idx>")
	fmt.Fprintln(w, "  del <idx>")
	fmt.Fprintln(w, "  count")
	fmt.Fprintln(w, "  near <lat> <lon> [meters]")
	fmt.Fprintln(w, "  help")
	fmt.Fprintln(w, "  exit")
}

func formatRecord(rec store.Record) string {
	return fmt.Sprintf("%d -> %s | %.6f,%.6f | %s | user=%d | ts=%d",
		rec.Index, rec.Name, rec.Latitude, rec.Longitude,
		geo.Geohash(rec.Latitude, rec.Longitude, 7), rec.OwnerID, rec.Timestamp)
}

// near：列出与给定点距离小于 meters 的记录
func near(ctx context.Context, st store.Admin, lat, lon, meters float64) ([]string, error) {
	recs, err := st.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range recs {
		if d := geo.Distance(lat, lon, rec.Latitude, rec.Longitude); d < meters {
			out = append(out, fmt.Sprintf("%s | %.2fm", formatRecord(rec), d))
		}
	}
	return out, nil
}

// exec：执行单条命令；返回 false 表示退出
func exec(ctx context.Context, st store.Admin, w io.Writer, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	parseIdx := func() (int64, bool) {
		if len(parts) < 2 {
			fmt.Fprintf(w, "usage: %s <idx>\n", parts[0])
			return 0, false
		}
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n < 0 {
			fmt.Fprintln(w, "error: bad idx")
			return 0, false
		}
		return n, true
	}
	switch strings.ToLower(parts[0]) {
	case "exit", "quit":
		return false
	case "help":
		printHelp(w)
	case "list":
		limit := 20
		if len(parts) >= 2 {
			if n, e := strconv.Atoi(parts[1]); e == nil && n >= 0 {
				limit = n
			}
		}
		recs, err := st.List(ctx, limit)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return true
		}
		for _, rec := range recs {
			fmt.Fprintln(w, formatRecord(rec))
		}
	case "get":
		idx, ok := parseIdx()
		if !ok {
			return true
		}
		rec, err := st.Get(ctx, idx)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(w, "none")
		} else if err != nil {
			fmt.Fprintln(w, "error:", err)
		} else {
			fmt.Fprintln(w, formatRecord(rec))
		}
	case "del":
		idx, ok := parseIdx()
		if !ok {
			return true
		}
		if err := st.Delete(ctx, idx); err != nil {
			fmt.Fprintln(w, "error:", err)
		} else {
			fmt.Fprintln(w, "ok")
		}
	case "count":
		n, err := st.Count(ctx)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
		} else {
			fmt.Fprintln(w, n)
		}
	case "near":
		if len(parts) < 3 {
			fmt.Fprintln(w, "usage: near <lat> <lon> [meters]")
			return true
		}
		lat, e1 := strconv.ParseFloat(parts[1], 64)
		lon, e2 := strconv.ParseFloat(parts[2], 64)
		if e1 != nil || e2 != nil {
			fmt.Fprintln(w, "error: bad coordinate")
			return true
		}
		meters := geo.ProximityMeters
		if len(parts) >= 4 {
			if m, e := strconv.ParseFloat(parts[3], 64); e == nil && m > 0 {
				meters = m
			}
		}
		xs, err := near(ctx, st, lat, lon, meters)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			return true
		}
		if len(xs) == 0 {
			fmt.Fprintln(w, "none")
		}
		for _, s := range xs {
			fmt.Fprintln(w, s)
		}
	default:
		fmt.Fprintln(w, "unknown command")
	}
	return true
}

func openStore(ctx context.Context) (store.Admin, error) {
	switch kind := utils.EnvString("REGION_STORE", "redis"); kind {
	case "postgres":
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, err
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return store.AttachDB(db), nil
	case "redis":
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, err
		}
		return store.NewRedis(rc, utils.EnvString("REDIS_REGION_PREFIX", store.DefaultRedisPrefix)), nil
	default:
		return nil, errors.New("unsupported REGION_STORE: " + kind)
	}
}

func main() {
	var envFile string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else if strings.HasSuffix(os.Args[i], ".env") {
			envFile = os.Args[i]
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load(".env")
	}
	ctx := context.Background()
	st, err := openStore(ctx)
	if err != nil {
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()
	fmt.Println("regions kv cli ready")
	printHelp(os.Stdout)
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		if !exec(ctx, st, os.Stdout, strings.TrimSpace(in.Text())) {
			return
		}
	}
}
