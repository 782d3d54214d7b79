package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/virtual-closet/closet/pkg/app"
	"github.com/virtual-closet/closet/pkg/buildtime"
	kcs "github.com/virtual-closet/closet/pkg/configs/server"
	"github.com/virtual-closet/closet/pkg/reload"
	"github.com/virtual-closet/closet/pkg/utils/filewatch"
)

type flags struct {
	configPath string
	host       string
	port       string
	loglevel   string
	reload     bool
}

// loadConfig reads the config file, and applies command line flags over it.
func loadConfig(f flags) (kcs.Config, error) {
	conf, err := kcs.Load(f.configPath)
	if err != nil {
		return kcs.Config{}, err
	}
	if f.host != "" {
		conf.Server.Host = f.host
	}
	if f.port != "" {
		p, err := strconv.Atoi(f.port)
		if err != nil {
			return kcs.Config{}, errors.Join(kcs.ErrInvalidConfig, err)
		}
		conf.Server.Port = p
	}
	if f.loglevel != "" {
		conf.LogLevel = f.loglevel
	}
	if err := conf.Validate(); err != nil {
		return kcs.Config{}, err
	}
	return conf, nil
}

func main() {
	f := flags{}
	flag.StringVar(&f.configPath, "config", os.Getenv("CLOSET_CONFIG"), "path to config file. (env: CLOSET_CONFIG)")
	flag.StringVar(&f.host, "host", "", "host to bind. (default: 0.0.0.0)")
	flag.StringVar(&f.port, "port", "", "port to bind. (default: 8000)")
	flag.StringVar(&f.loglevel, "loglevel", "", "log level. debug|info|warn|error|off (default: info)")
	flag.BoolVar(&f.reload, "reload", false, "rebuild the server when watched files are modified")
	pversion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.VersionString())
		return
	}

	logger := log.New("closetd")

	conf, err := loadConfig(f)
	if err != nil {
		logger.Fatalf("cannot read configuration: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if f.reload {
		err = runWithReload(ctx, f, conf, logger)
	} else {
		err = run(ctx, conf, logger)
	}
	if err != nil {
		logger.Error(err)
		cancel()
		os.Exit(1)
	}
}

// run serves the process-wide App until ctx is done.
func run(ctx context.Context, conf kcs.Config, logger *log.Logger) error {
	closet := app.NewHolder(func() (*app.App, error) {
		return BuildServer(ctx, conf, logger)
	})

	a, err := closet.Get()
	if err != nil {
		return err
	}

	served := make(chan error, 1)
	go func() {
		served <- a.Start(conf.Addr())
	}()
	logger.Infof("serving at %s", conf.Addr())

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	graceful, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := a.Shutdown(graceful)

	// the signal can come before Start takes the App. Then Start finds it stopped.
	servedErr := <-served
	if errors.Is(servedErr, app.ErrStopped) {
		servedErr = nil
	}
	return errors.Join(shutdownErr, servedErr)
}

// runWithReload serves Apps built from the latest config, until ctx is done.
//
// Address is fixed at start. Changes of server.host and server.port take no effect.
func runWithReload(ctx context.Context, f flags, conf kcs.Config, logger *log.Logger) error {
	build := func(ctx context.Context) (*app.App, error) {
		c, err := loadConfig(f)
		if err != nil {
			return nil, err
		}
		return BuildServer(ctx, c, logger)
	}

	watch := conf.Reload.Watch
	if f.configPath != "" {
		watch = append(watch, f.configPath)
	}

	sv := reload.New(
		build, conf.Addr(), watch, logger,
		reload.WithWatchOptions(
			filewatch.Recursive(),
			filewatch.WithExtensions(conf.Reload.Extensions...),
			filewatch.Excluding(conf.Dolls.StorageDir),
		),
		reload.WithShutdownTimeout(conf.Server.ShutdownTimeout),
		reload.WithSettle(200*time.Millisecond),
		reload.OnServe(func(generation int, a *app.App) {
			logger.Infof("serving at %s (generation %d)", a.Addr(), generation)
		}),
	)
	return sv.Run(ctx)
}
