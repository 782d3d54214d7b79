// Package dbtest has test cases which every DollInterface implementation should pass.
package dbtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kdb "github.com/virtual-closet/closet/pkg/db"
)

func Spec() kdb.DollSpec {
	id := uuid.NewString()
	return kdb.DollSpec{
		ID:        id,
		Name:      "Alice",
		Age:       29,
		Height:    170,
		Weight:    65.5,
		Gender:    kdb.Female,
		SkinColor: "medium",
		ModelType: kdb.SMPLX,
		FilePath:  "/srv/dolls/" + id + ".glb",
		FileURL:   "http://localhost:8000/get_doll/" + id + ".glb",
	}
}

// TestDollInterface runs the contract of DollInterface against implementation given by newTestee.
//
// Each call of newTestee should return an empty store.
func TestDollInterface(t *testing.T, newTestee func(t *testing.T) kdb.DollInterface) {
	ctx := context.Background()

	t.Run("Insert stores a doll, and Get returns it", func(t *testing.T) {
		testee := newTestee(t)
		spec := Spec()

		inserted, err := testee.Insert(ctx, spec)
		if err != nil {
			t.Fatal(err)
		}
		if inserted.DollSpec != spec {
			t.Errorf("unmatch spec:\n- actual  : %+v\n- expected: %+v", inserted.DollSpec, spec)
		}
		if inserted.CreatedAt.IsZero() || !inserted.CreatedAt.Equal(inserted.UpdatedAt) {
			t.Errorf("unexpected timestamps: %+v", inserted)
		}

		got, err := testee.Get(ctx, spec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(inserted) {
			t.Errorf("unmatch doll:\n- actual  : %+v\n- expected: %+v", got, inserted)
		}
	})

	t.Run("Insert rejects duplicated id", func(t *testing.T) {
		testee := newTestee(t)
		spec := Spec()
		if _, err := testee.Insert(ctx, spec); err != nil {
			t.Fatal(err)
		}

		again := spec
		again.Name = "Bob"
		if _, err := testee.Insert(ctx, again); !errors.Is(err, kdb.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}

		got, err := testee.Get(ctx, spec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Alice" {
			t.Errorf("doll is overwritten: %+v", got)
		}
	})

	t.Run("Insert rejects invalid spec", func(t *testing.T) {
		testee := newTestee(t)
		spec := Spec()
		spec.Gender = "unknown"

		if _, err := testee.Insert(ctx, spec); !errors.Is(err, kdb.ErrInvalid) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := testee.Get(ctx, spec.ID); !errors.Is(err, kdb.ErrMissing) {
			t.Errorf("invalid doll is stored: %v", err)
		}
	})

	t.Run("Get for unknown id returns ErrMissing", func(t *testing.T) {
		testee := newTestee(t)
		if _, err := testee.Get(ctx, uuid.NewString()); !errors.Is(err, kdb.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("UpdateFile replaces file and bumps UpdatedAt", func(t *testing.T) {
		testee := newTestee(t)
		spec := Spec()
		inserted, err := testee.Insert(ctx, spec)
		if err != nil {
			t.Fatal(err)
		}

		time.Sleep(5 * time.Millisecond)
		updated, err := testee.UpdateFile(ctx, spec.ID, "/srv/dolls/new.glb", "http://closet.invalid/new.glb")
		if err != nil {
			t.Fatal(err)
		}

		if updated.FilePath != "/srv/dolls/new.glb" || updated.FileURL != "http://closet.invalid/new.glb" {
			t.Errorf("file is not updated: %+v", updated)
		}
		if !updated.CreatedAt.Equal(inserted.CreatedAt) {
			t.Errorf("CreatedAt is changed: %s -> %s", inserted.CreatedAt, updated.CreatedAt)
		}
		if !updated.UpdatedAt.After(inserted.UpdatedAt) {
			t.Errorf("UpdatedAt is not bumped: %s -> %s", inserted.UpdatedAt, updated.UpdatedAt)
		}

		got, err := testee.Get(ctx, spec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(updated) {
			t.Errorf("unmatch doll:\n- actual  : %+v\n- expected: %+v", got, updated)
		}
	})

	t.Run("UpdateFile for unknown id returns ErrMissing", func(t *testing.T) {
		testee := newTestee(t)
		if _, err := testee.UpdateFile(ctx, uuid.NewString(), "/x.glb", "http://x/x.glb"); !errors.Is(err, kdb.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
