// Package app provides the application object of the closet server.
//
// An App is an HTTP application: an echo instance with its middleware and routes,
// and a lifecycle of Unstarted -> Running -> Stopped .
// Routes and middleware are fixed when the App is built by New, and never change after.
//
// With no Mount, an App has no routes.
// Then every request is answered by echo's default "not found" handler.
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/virtual-closet/closet/pkg/echoutil"
	xe "github.com/virtual-closet/closet/pkg/errors"
)

type State int

const (
	Unstarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("app: already started")
	ErrStopped        = errors.New("app: stopped")
)

// Mount installs middleware or routes onto echo.
type Mount func(e *echo.Echo) error

type config struct {
	loglevel  string
	logOutput io.Writer
	mounts    []Mount
	closers   []func() error
}

type Option func(*config) *config

// WithLogLevel sets log level: debug|info|warn|error|off .
func WithLogLevel(level string) Option {
	return func(c *config) *config {
		c.loglevel = level
		return c
	}
}

// WithLogOutput changes where the App writes its logs. Default is stdout.
func WithLogOutput(w io.Writer) Option {
	return func(c *config) *config {
		c.logOutput = w
		return c
	}
}

// WithMount adds Mount. Mounts are applied in the order of options.
func WithMount(m ...Mount) Option {
	return func(c *config) *config {
		c.mounts = append(c.mounts, m...)
		return c
	}
}

// WithCloser adds a function to release a resource owned by the App.
//
// Closers are called once the App is stopped, in the reverse order of options.
func WithCloser(f func() error) Option {
	return func(c *config) *config {
		c.closers = append(c.closers, f)
		return c
	}
}

type App struct {
	e       *echo.Echo
	closers []func() error

	mux      sync.Mutex
	state    State
	listener net.Listener
	done     chan struct{}
	closed   sync.Once
	closeErr error
}

// New builds an App.
//
// New itself acquires no external resources. When a Mount fails, New returns its error.
func New(options ...Option) (*App, error) {
	conf := &config{loglevel: "info"}
	for _, o := range options {
		conf = o(conf)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if conf.logOutput != nil {
		e.Logger.SetOutput(conf.logOutput)
	}
	echoutil.SetLevel(e, conf.loglevel)
	e.HTTPErrorHandler = echoutil.ErrorHandler(e)
	e.Use(echoutil.LogHandlerFunc)

	for _, m := range conf.mounts {
		if err := m(e); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	return &App{
		e:       e,
		closers: conf.closers,
		state:   Unstarted,
		done:    make(chan struct{}),
	}, nil
}

// Handler is the http.Handler dispatching requests to routes of the App.
func (a *App) Handler() http.Handler {
	return a.e
}

func (a *App) Routes() []*echo.Route {
	return a.e.Routes()
}

func (a *App) Logger() echo.Logger {
	return a.e.Logger
}

func (a *App) State() State {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.state
}

// Addr returns the address the App listens on. It is nil unless the App is running.
func (a *App) Addr() net.Addr {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.state != Running || a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Done is closed when the App is stopped.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Start listens on address (host:port) and serves.
//
// It blocks until the App is stopped. When it is stopped by Shutdown, it returns nil.
func (a *App) Start(address string) error {
	if err := a.startable(); err != nil {
		return err
	}
	l, err := net.Listen("tcp", address)
	if err != nil {
		return xe.Wrap(err)
	}
	return a.Serve(l)
}

// Serve serves on the listener. The App takes ownership of it.
//
// It blocks until the App is stopped. When it is stopped by Shutdown, it returns nil.
func (a *App) Serve(l net.Listener) error {
	a.mux.Lock()
	if a.state != Unstarted {
		err := a.stateErr()
		a.mux.Unlock()
		l.Close()
		return err
	}
	a.state = Running
	a.listener = l
	a.e.Listener = l
	a.mux.Unlock()

	err := a.e.Start("")

	a.stop()
	if errors.Is(err, http.ErrServerClosed) {
		return a.closeErr
	}
	if a.closeErr != nil {
		return errors.Join(xe.Wrap(err), a.closeErr)
	}
	return xe.Wrap(err)
}

// Shutdown stops the App gracefully.
//
// It waits for in-flight requests until ctx is done. Shutting down an unstarted App
// makes it stopped without serving. Shutting down a stopped App is no-op.
func (a *App) Shutdown(ctx context.Context) error {
	a.mux.Lock()
	switch a.state {
	case Unstarted:
		a.state = Stopped
		a.mux.Unlock()
		a.stop()
		return a.closeErr
	case Stopped:
		a.mux.Unlock()
		return nil
	}
	a.mux.Unlock()

	if err := a.e.Shutdown(ctx); err != nil {
		return xe.Wrap(err)
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return xe.Wrap(context.Cause(ctx))
	}
}

func (a *App) startable() error {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.state != Unstarted {
		return a.stateErr()
	}
	return nil
}

// stateErr should be called with a.mux locked.
func (a *App) stateErr() error {
	if a.state == Stopped {
		return ErrStopped
	}
	return ErrAlreadyStarted
}

func (a *App) stop() {
	a.closed.Do(func() {
		a.mux.Lock()
		a.state = Stopped
		a.mux.Unlock()

		errs := []error{}
		for i := len(a.closers) - 1; 0 <= i; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
		close(a.done)
	})
}
