package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/virtual-closet/closet/pkg/app"
	kcs "github.com/virtual-closet/closet/pkg/configs/server"
	kdb "github.com/virtual-closet/closet/pkg/db"
	kinmem "github.com/virtual-closet/closet/pkg/db/inmemory"
	kpg "github.com/virtual-closet/closet/pkg/db/postgres"
	xe "github.com/virtual-closet/closet/pkg/errors"
	"github.com/virtual-closet/closet/pkg/metrics"
	"github.com/virtual-closet/closet/pkg/storage"
	"github.com/virtual-closet/closet/pkg/utils/retry"
	"github.com/virtual-closet/closet/pkg/workloads/generator"

	"github.com/virtual-closet/closet/cmd/closetd/handlers"
)

// BuildServer composes an App from configuration.
//
// With the default configuration, the App has no routes.
// Resources opened here are owned by the App, and released on its shutdown.
// logger receives messages about building.
func BuildServer(ctx context.Context, conf kcs.Config, logger *log.Logger, options ...app.Option) (*app.App, error) {
	opts := []app.Option{app.WithLogLevel(conf.LogLevel)}

	if conf.CORS.Enabled() || conf.Dolls.Enabled {
		opts = append(opts, app.WithMount(corsMount(conf.CORS)))
	}
	if conf.Metrics.Enabled {
		opts = append(opts, app.WithMount(metricsMount(conf.Metrics.Path)))
	}

	var db kdb.ClosetDatabase
	if conf.Dolls.Enabled {
		_db, err := openDatabase(ctx, conf.Database, logger)
		if err != nil {
			return nil, err
		}
		db = _db

		mount, err := dollsMount(db, conf.Dolls)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		opts = append(opts, app.WithMount(mount), app.WithCloser(db.Close))
	}

	a, err := app.New(append(opts, options...)...)
	if err != nil {
		if db != nil {
			err = errors.Join(err, db.Close())
		}
		return nil, err
	}
	return a, nil
}

func openDatabase(ctx context.Context, conf kcs.DatabaseConfig, logger *log.Logger) (kdb.ClosetDatabase, error) {
	if conf.URI == "" {
		logger.Warn("database.uri is not set. dolls are recorded in memory, and lost on exit.")
		return kinmem.New(), nil
	}
	db, err := kpg.New(
		ctx, conf.URI,
		kpg.WithConnectRetry(conf.ConnectAttempts, retry.ExponentialBackoff(time.Second, 2)),
	)
	if err != nil {
		return nil, xe.WrapWithNote("database", err)
	}
	return db, nil
}

func corsMount(conf kcs.CORSConfig) app.Mount {
	return func(e *echo.Echo) error {
		origins := conf.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: conf.AllowMethods,
			AllowHeaders: conf.AllowHeaders,
		}))
		return nil
	}
}

func metricsMount(path string) app.Mount {
	return func(e *echo.Echo) error {
		m := metrics.New()
		e.Use(m.Middleware)
		e.GET(path, echo.WrapHandler(m.Handler()))
		return nil
	}
}

func dollsMount(db kdb.ClosetDatabase, conf kcs.DollsConfig) (app.Mount, error) {
	store, err := storage.New(conf.StorageDir)
	if err != nil {
		return nil, xe.WrapWithNote("dolls.storage_dir", err)
	}
	gen, err := generator.New(conf.Generator.Create, conf.Generator.Apply, conf.Generator.Timeout)
	if err != nil {
		return nil, xe.WrapWithNote("dolls.generator", err)
	}
	locks := handlers.NewLocks()

	return func(e *echo.Echo) error {
		e.Add(
			http.MethodPost, "/create_doll",
			handlers.CreateDollHandler(db.Dolls(), store, gen, conf.PublicURL),
		)
		e.Add(
			http.MethodGet, "/get_doll/:id",
			handlers.GetDollHandler(store, "id"),
		)
		e.Add(
			http.MethodPost, "/upload_clothing/:id",
			handlers.UploadClothingHandler(db.Dolls(), store, gen, locks, conf.PublicURL, "id"),
		)
		return nil
	}, nil
}
