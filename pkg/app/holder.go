package app

import "sync"

// Holder owns the process-wide App.
//
// The App is built on the first Get, and every later Get returns the same one.
// A Holder is created by the startup routine of the process and passed around explicitly.
type Holder struct {
	build func() (*App, error)

	once sync.Once
	app  *App
	err  error
}

func NewHolder(build func() (*App, error)) *Holder {
	return &Holder{build: build}
}

// Get returns the App, building it if it is not yet.
//
// When building fails, Get returns the same error forever.
func (h *Holder) Get() (*App, error) {
	h.once.Do(func() {
		h.app, h.err = h.build()
	})
	return h.app, h.err
}
