package db

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Gender string

const (
	Female  Gender = "female"
	Male    Gender = "male"
	Neutral Gender = "neutral"
)

type ModelType string

const (
	SMPL  ModelType = "smpl"
	SMPLX ModelType = "smplx"
)

func (g Gender) Valid() bool {
	return slices.Contains([]Gender{Female, Male, Neutral}, g)
}

func (m ModelType) Valid() bool {
	return m == SMPL || m == SMPLX
}

// DollSpec is what a doll is created from.
type DollSpec struct {
	ID        string
	Name      string
	Age       int
	Height    float64
	Weight    float64
	Gender    Gender
	SkinColor string
	ModelType ModelType

	// FilePath is the path of the doll model (.glb) in the storage.
	FilePath string

	// FileURL is the URL which the doll model is served at.
	FileURL string
}

// Validate checks constraints of DollSpec.
func (s DollSpec) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: id is empty", ErrInvalid)
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalid)
	case s.Age < 0:
		return fmt.Errorf("%w: age is negative: %d", ErrInvalid, s.Age)
	case s.Height <= 0:
		return fmt.Errorf("%w: height should be positive: %v", ErrInvalid, s.Height)
	case s.Weight <= 0:
		return fmt.Errorf("%w: weight should be positive: %v", ErrInvalid, s.Weight)
	case !s.Gender.Valid():
		return fmt.Errorf("%w: unknown gender: %s", ErrInvalid, s.Gender)
	case !s.ModelType.Valid():
		return fmt.Errorf("%w: unknown model type: %s", ErrInvalid, s.ModelType)
	case s.FilePath == "":
		return fmt.Errorf("%w: file path is empty", ErrInvalid)
	}
	return nil
}

type Doll struct {
	DollSpec
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Doll) Equal(o Doll) bool {
	return d.DollSpec == o.DollSpec &&
		d.CreatedAt.Equal(o.CreatedAt) &&
		d.UpdatedAt.Equal(o.UpdatedAt)
}

type DollInterface interface {
	// Insert creates a new doll record.
	//
	// # Returns
	//
	// - Doll: the record created. CreatedAt and UpdatedAt are set.
	//
	// - error: ErrInvalid when spec is not valid, ErrConflict when the id is taken.
	Insert(ctx context.Context, spec DollSpec) (Doll, error)

	// Get returns the doll record.
	//
	// # Returns
	//
	// - error: ErrMissing when no doll has the id.
	Get(ctx context.Context, id string) (Doll, error)

	// UpdateFile replaces the file of the doll, and bumps UpdatedAt.
	//
	// # Returns
	//
	// - Doll: the record updated.
	//
	// - error: ErrMissing when no doll has the id.
	UpdateFile(ctx context.Context, id string, filePath string, fileURL string) (Doll, error)
}
