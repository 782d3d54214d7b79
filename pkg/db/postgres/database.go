package postgres

import (
	"context"
	"errors"
	"io/fs"

	kpool "github.com/virtual-closet/closet/pkg/conn/db/postgres/pool"
	kdb "github.com/virtual-closet/closet/pkg/db"
	kpgdolls "github.com/virtual-closet/closet/pkg/db/postgres/dolls"
	kpgschema "github.com/virtual-closet/closet/pkg/db/postgres/schema"
	xe "github.com/virtual-closet/closet/pkg/errors"
	"github.com/virtual-closet/closet/pkg/utils/retry"
)

type closetDBPostgres struct {
	pool  kpool.Pool
	dolls kdb.DollInterface
}

type Config struct {
	// SchemaRepository is applied onto the database on New.
	//
	// When it is nil, schema is not upgraded.
	SchemaRepository fs.FS

	// ConnectBackoff spaces connection attempts. Connection is tried once more per backoff.
	ConnectBackoff retry.Backoff
}

func DefaultConfig() Config {
	return Config{
		SchemaRepository: kpgschema.Repository(),
		ConnectBackoff:   retry.Limit(0, nil),
	}
}

type Option func(*Config) *Config

func WithSchemaRepository(repository fs.FS) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

// WithConnectRetry retries connecting up to attempts times in total.
func WithConnectRetry(attempts int, b retry.Backoff) Option {
	return func(c *Config) *Config {
		c.ConnectBackoff = retry.Limit(attempts-1, b)
		return c
	}
}

func New(
	ctx context.Context,
	url string,
	options ...Option,
) (kdb.ClosetDatabase, error) {
	c := DefaultConfig()
	for _, option := range options {
		c = *option(&c)
	}

	p, err := retry.Blocking(ctx, c.ConnectBackoff, func() (kpool.Pool, error) {
		p, err := kpool.Connect(ctx, url)
		if err != nil {
			return nil, errors.Join(retry.ErrRetry, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}

	if c.SchemaRepository != nil {
		if err := kpgschema.New(p, c.SchemaRepository).Upgrade(ctx); err != nil {
			p.Close()
			return nil, xe.WrapWithNote("schema upgrade", err)
		}
	}

	return &closetDBPostgres{
		pool:  p,
		dolls: kpgdolls.New(p),
	}, nil
}

func (k *closetDBPostgres) Dolls() kdb.DollInterface {
	return k.dolls
}

func (k *closetDBPostgres) Close() error {
	k.pool.Close()
	return nil
}
