package postgres_test

import (
	"context"
	"os"
	"testing"

	kpool "github.com/virtual-closet/closet/pkg/conn/db/postgres/pool"
	kdb "github.com/virtual-closet/closet/pkg/db"
	"github.com/virtual-closet/closet/pkg/db/dbtest"
	"github.com/virtual-closet/closet/pkg/db/postgres"
)

// postgres to be tested is given by CLOSET_TEST_PGURI.
//
// The database should be disposable. Tables are truncated for each test.
func connect(t *testing.T) kdb.ClosetDatabase {
	t.Helper()
	uri := os.Getenv("CLOSET_TEST_PGURI")
	if uri == "" {
		t.Skip("CLOSET_TEST_PGURI is not set")
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDolls(t *testing.T) {
	dbtest.TestDollInterface(t, func(t *testing.T) kdb.DollInterface {
		db := connect(t)
		truncate(t)
		return db.Dolls()
	})
}

func TestNew(t *testing.T) {
	t.Run("New can be called twice against the same database", func(t *testing.T) {
		connect(t)
		connect(t)
	})
}

func truncate(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	p, err := kpool.Connect(ctx, os.Getenv("CLOSET_TEST_PGURI"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.Exec(ctx, `truncate "doll"`); err != nil {
		t.Fatal(err)
	}
}
