package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkglog"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkguid"
)

// defaults apply when neither the config file nor the environment sets a key.
var defaults = map[string]any{
	"tz":                            "UTC",
	"log.level":                     "info",
	"service.name":                  "csvpass",
	"service.mode":                  "deferred",
	"server.address.http":           ":8080",
	"server.cors.allowed_origins":   "*",
	"server.cors.allow_credentials": true,
	"staging.uploads_dir":           "uploads",
	"staging.processed_dir":         "processed",
	"sync.max_bytes":                16 << 20,
	"deferred.max_bytes":            0,
	"task.store":                    "memory",
	"task.id":                       "uuid",
	"redis.addr":                    "localhost:6379",
	"redis.password":                "",
	"redis.db":                      0,
	"redis.prefix":                  "csvpass:task:",
	"retention.ttl":                 "0s",
	"retention.interval":            "1m",
	"cleanup.workers":               2,
	"cleanup.max_retries":           3,
	"cleanup.base_backoff":          "200ms",
}

func (a *App) initConfig() {
	cfg, err := pkgconfig.NewViper(a.opts.ConfigPath, defaults)
	if err != nil {
		slog.Error("failed to init config", "path", a.opts.ConfigPath, "error", err)
		os.Exit(1)
	}

	if a.opts.Mode != "" {
		cfg.Set("service.mode", a.opts.Mode)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	pkglog.InitLogging(cfg.GetString("service.name"), cfg.GetString("log.level"))

	a.config = cfg
}

func (a *App) initLibraries() {
	a.goroutine = pkgroutine.NewManager(100)
	a.uuid = pkguid.NewUUID()

	switch kind := a.config.GetString("task.id"); kind {
	case "snowflake":
		sf, err := pkguid.NewSnowflakeString()
		if err != nil {
			slog.Error("failed to init snowflake generator", "error", err)
			os.Exit(1)
		}
		a.taskID = sf
	case "", "uuid":
		a.taskID = a.uuid
	default:
		slog.Error("unknown task id generator", "task.id", kind)
		os.Exit(1)
	}
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("server.cors.allowed_origins"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", pkgrouter.HeaderCorrelationID},
		AllowCredentials: a.config.GetBool("server.cors.allow_credentials"),
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

//nolint:unparam // is always nil
func (a *App) initClosers() {
	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}

	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
}
