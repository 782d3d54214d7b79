// Package storage lays out doll files in a directory.
//
//	<root>/<id>.glb              doll
//	<root>/<id>_updated.glb      output of applying clothes, moved onto <id>.glb
//	<root>/<id>/clothes/<name>   uploaded clothing images
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	xe "github.com/virtual-closet/closet/pkg/errors"
	kio "github.com/virtual-closet/closet/pkg/io"
)

var (
	// id or file name cannot be a part of storage path.
	ErrInvalidName = errors.New("storage: invalid name")

	// doll file is not stored.
	ErrMissing = errors.New("storage: missing")
)

type Storage struct {
	root string
}

// New creates storage rooted at dir. dir is created when it does not exist.
func New(dir string) (*Storage, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, xe.Wrap(err)
	}
	return &Storage{root: root}, nil
}

func (s *Storage) Root() string {
	return s.root
}

// ValidID checks id is a UUID in canonical, lower-case form.
func ValidID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%w: doll id %q", ErrInvalidName, id)
	}
	return nil
}

// DollPath returns path to the doll file.
func (s *Storage) DollPath(id string) (string, error) {
	if err := ValidID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id+".glb"), nil
}

// UpdatedPath returns path where the doll wearing new clothes should be written.
func (s *Storage) UpdatedPath(id string) (string, error) {
	if err := ValidID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id+"_updated.glb"), nil
}

// Stat returns ErrMissing when the doll file is not stored.
func (s *Storage) Stat(id string) (fs.FileInfo, error) {
	p, err := s.DollPath(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, fmt.Errorf("%w: doll %s", ErrMissing, id)
	} else if err != nil {
		return nil, xe.Wrap(err)
	}
	return info, nil
}

// SaveClothing writes an uploaded image for the doll, and returns its path.
//
// Directory part of name is dropped.
func (s *Storage) SaveClothing(id string, name string, r io.Reader) (string, error) {
	if err := ValidID(id); err != nil {
		return "", err
	}
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "/" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: file name %q", ErrInvalidName, name)
	}

	dest := filepath.Join(s.root, id, "clothes", base)
	if _, err := kio.WriteAll(dest, r, 0o644, 0o755); err != nil {
		return "", xe.Wrap(err)
	}
	return dest, nil
}

// DiscardUpdated removes the updated doll left by an earlier apply, if any.
func (s *Storage) DiscardUpdated(id string) error {
	p, err := s.UpdatedPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return xe.Wrap(err)
	}
	return nil
}

// Replace moves the updated doll onto the doll.
func (s *Storage) Replace(id string) error {
	src, err := s.UpdatedPath(id)
	if err != nil {
		return err
	}
	dst, err := s.DollPath(id)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: updated doll %s", ErrMissing, id)
		}
		return xe.Wrap(err)
	}
	return nil
}
