// Package inmemory is a ClosetDatabase living in the process memory.
//
// Records are lost when the process exits. It is for development and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	kdb "github.com/virtual-closet/closet/pkg/db"
)

type Option func(*database) *database

// WithClock replaces the clock which timestamps records.
func WithClock(now func() time.Time) Option {
	return func(d *database) *database {
		d.now = now
		return d
	}
}

type database struct {
	now   func() time.Time
	dolls *dolls
}

func New(options ...Option) kdb.ClosetDatabase {
	d := &database{now: time.Now}
	for _, o := range options {
		d = o(d)
	}
	d.dolls = &dolls{now: d.now, records: map[string]kdb.Doll{}}
	return d
}

func (d *database) Dolls() kdb.DollInterface {
	return d.dolls
}

func (d *database) Close() error {
	return nil
}

type dolls struct {
	now     func() time.Time
	mux     sync.RWMutex
	records map[string]kdb.Doll
}

func (m *dolls) Insert(ctx context.Context, spec kdb.DollSpec) (kdb.Doll, error) {
	if err := spec.Validate(); err != nil {
		return kdb.Doll{}, err
	}

	m.mux.Lock()
	defer m.mux.Unlock()

	if _, ok := m.records[spec.ID]; ok {
		return kdb.Doll{}, fmt.Errorf("%w: doll %s", kdb.ErrConflict, spec.ID)
	}
	now := m.now().UTC()
	d := kdb.Doll{DollSpec: spec, CreatedAt: now, UpdatedAt: now}
	m.records[spec.ID] = d
	return d, nil
}

func (m *dolls) Get(ctx context.Context, id string) (kdb.Doll, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	d, ok := m.records[id]
	if !ok {
		return kdb.Doll{}, fmt.Errorf("%w: doll %s", kdb.ErrMissing, id)
	}
	return d, nil
}

func (m *dolls) UpdateFile(ctx context.Context, id string, filePath string, fileURL string) (kdb.Doll, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	d, ok := m.records[id]
	if !ok {
		return kdb.Doll{}, fmt.Errorf("%w: doll %s", kdb.ErrMissing, id)
	}
	d.FilePath = filePath
	d.FileURL = fileURL
	d.UpdatedAt = m.now().UTC()
	m.records[id] = d
	return d, nil
}
