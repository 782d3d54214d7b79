// Package reload serves Apps, and rebuilds them when watched files are modified.
//
// It is a development convenience: each modification shuts the running App down
// gracefully, and a new App built from scratch is served on the same address.
package reload

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/virtual-closet/closet/pkg/app"
	xe "github.com/virtual-closet/closet/pkg/errors"
	"github.com/virtual-closet/closet/pkg/utils/filewatch"
)

// Builder builds a new App for each generation.
type Builder func(ctx context.Context) (*app.App, error)

type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type Supervisor struct {
	build           Builder
	addr            string
	watch           []string
	watchOptions    []filewatch.Option
	shutdownTimeout time.Duration
	settle          time.Duration
	logger          Logger
	onServe         func(generation int, a *app.App)
}

type Option func(*Supervisor) *Supervisor

// WithWatchOptions passes options to filewatch.
func WithWatchOptions(o ...filewatch.Option) Option {
	return func(s *Supervisor) *Supervisor {
		s.watchOptions = append(s.watchOptions, o...)
		return s
	}
}

// WithShutdownTimeout bounds graceful shutdown of each generation. Default is 15 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Supervisor) *Supervisor {
		s.shutdownTimeout = d
		return s
	}
}

// WithSettle sets a time to wait after a modification before rebuilding.
//
// Modifications during the time are coalesced into one reload. Default is 100 milliseconds.
func WithSettle(d time.Duration) Option {
	return func(s *Supervisor) *Supervisor {
		s.settle = d
		return s
	}
}

// OnServe registers a hook called when a generation starts serving.
//
// Generations are counted from 1. Builds which failed are not counted.
func OnServe(f func(generation int, a *app.App)) Option {
	return func(s *Supervisor) *Supervisor {
		s.onServe = f
		return s
	}
}

func New(build Builder, addr string, watch []string, logger Logger, options ...Option) *Supervisor {
	s := &Supervisor{
		build:           build,
		addr:            addr,
		watch:           watch,
		shutdownTimeout: 15 * time.Second,
		settle:          100 * time.Millisecond,
		logger:          logger,
		onServe:         func(int, *app.App) {},
	}
	for _, o := range options {
		s = o(s)
	}
	return s
}

// Run serves Apps until ctx is done.
//
// When a build fails, Run logs it and waits for the next modification.
// When a generation fails to serve (for example, the address is in use), Run returns the error.
// When ctx is done, Run shuts the running App down and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	generation := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		// start watching before building, not to miss modifications during the build.
		modified, stopWatch, err := filewatch.UntilModifyContext(ctx, s.watch, s.watchOptions...)
		if err != nil {
			return xe.Wrap(err)
		}

		a, err := s.build(ctx)
		if err != nil {
			s.logger.Errorf("failed to build app: %s", err)
			s.logger.Warnf("waiting for changes before retrying")
			<-modified.Done()
			stopWatch()
			s.wait(ctx)
			continue
		}

		generation += 1
		served, err := s.serve(a)
		if err != nil {
			stopWatch()
			a.Shutdown(context.Background())
			return err
		}
		s.logger.Infof("generation %d: serving on %s", generation, s.addr)
		s.onServe(generation, a)

		select {
		case err := <-served:
			stopWatch()
			if err != nil {
				return err
			}
			return errors.New("reload: app stopped unexpectedly")
		case <-modified.Done():
			stopWatch()
		}

		if ctx.Err() == nil {
			s.logger.Infof("generation %d: reloading: %s", generation, context.Cause(modified))
		}
		if err := s.shutdown(a, served); err != nil {
			return err
		}
		s.wait(ctx)
	}
}

// wait sleeps for settle, or until ctx is done.
func (s *Supervisor) wait(ctx context.Context) {
	if s.settle <= 0 {
		return
	}
	t := time.NewTimer(s.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Supervisor) serve(a *app.App) (<-chan error, error) {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- a.Serve(l)
	}()
	return ch, nil
}

func (s *Supervisor) shutdown(a *app.App, served <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-served; err != nil && !errors.Is(err, app.ErrStopped) {
		s.logger.Warnf("app stopped with error: %s", err)
	}
	return nil
}
