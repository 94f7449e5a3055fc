package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-groupride/internal/config"
	"backend-groupride/internal/db"
	"backend-groupride/internal/export"
	"backend-groupride/internal/history"
	"backend-groupride/internal/remotesync"
	"backend-groupride/internal/ride"
	"backend-groupride/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

var (
	openSQLiteFn = db.OpenSQLite
	dialAMQPFn   = remotesync.Dial
	shutdownFn   = func(app *fiber.App, ctx context.Context) error { return app.ShutdownWithContext(ctx) }
)

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	var pg *pgxpool.Pool
	if cfg.HistoryBackend != "sqlite" {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			log.Printf("postgres connection failed: %v", err)
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	cleanup := []func(){func() {
		if pg != nil {
			pg.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}}
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	store, closeStore, err := openHistory(ctx, cfg, pg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeStore)

	uploader, closeUploader, err := openUploader(cfg, rdb)
	if err != nil {
		log.Printf("remote sync disabled: %v", err)
	}
	if closeUploader != nil {
		cleanup = append(cleanup, closeUploader)
	}

	srv := server.NewServer(cfg, server.Deps{
		History:  store,
		Exporter: openExporter(ctx, pg),
		Uploader: uploader,
		Redis:    rdb,
	})
	cleanup = append(cleanup, func() {
		if err := srv.Close(); err != nil {
			log.Printf("group session close: %v", err)
		}
	})

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return shutdownFn(srv.App, shutdownCtx)
}

// openHistory picks the ride store. Postgres is used when it is configured
// and reachable; otherwise rides stay in the on-device SQLite file.
func openHistory(ctx context.Context, cfg config.Config, pg *pgxpool.Pool) (history.Store, func(), error) {
	if cfg.HistoryBackend != "sqlite" && pg != nil {
		store := history.NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
	if cfg.HistoryBackend != "sqlite" {
		log.Printf("postgres unavailable, keeping history in %s", cfg.SQLitePath)
	}

	conn, err := openSQLiteFn(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := history.NewSQLiteStore(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, closeSQLite(conn), nil
}

func closeSQLite(conn *sql.DB) func() {
	return func() {
		if err := conn.Close(); err != nil {
			log.Printf("sqlite close: %v", err)
		}
	}
}

// openExporter returns nil when there is no calendar database to write to.
func openExporter(ctx context.Context, pg *pgxpool.Pool) ride.Exporter {
	if pg == nil {
		return nil
	}
	cal := export.NewCalendar(pg)
	if err := cal.EnsureSchema(ctx); err != nil {
		log.Printf("calendar export disabled: %v", err)
		return nil
	}
	return cal
}

var errNoRedis = errors.New("redis is not configured")

func openUploader(cfg config.Config, rdb *redis.Client) (ride.Uploader, func(), error) {
	switch cfg.RemoteSyncBackend {
	case "", "none":
		return nil, nil, nil
	case "redis":
		if rdb == nil {
			return nil, nil, errNoRedis
		}
		return remotesync.NewRedisQueue(rdb, remotesync.DefaultQueueKey, cfg.DeviceID, nil), nil, nil
	case "amqp":
		conn, err := dialAMQPFn(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				log.Printf("amqp close: %v", err)
			}
		}
		uploader, err := remotesync.NewAMQPUploader(conn.Channel, cfg.AMQPExchange, cfg.DeviceID, nil)
		if err != nil {
			closeConn()
			return nil, nil, err
		}
		return uploader, closeConn, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote sync backend %q", cfg.RemoteSyncBackend)
	}
}
