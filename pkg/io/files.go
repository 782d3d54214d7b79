package io

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// CreateAll creates file with its parent directories, if missing.
//
// dmod takes effect only on newly created directories.
func CreateAll(name string, fmod os.FileMode, dmod os.FileMode) (*os.File, error) {
	dirname := filepath.Dir(name)
	if err := os.MkdirAll(dirname, dmod); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fmod)
}

// WriteAll writes content of r into a file created by CreateAll.
//
// When writing fails, the file is removed.
func WriteAll(name string, r io.Reader, fmod os.FileMode, dmod os.FileMode) (int64, error) {
	f, err := CreateAll(name, fmod, dmod)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Join(err, os.Remove(name))
	}
	return n, nil
}
