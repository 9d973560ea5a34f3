package ml

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveFile encodes the store and installs it at path with WriteFile.
func SaveFile(path string, s *Store) error {
	blob, err := Save(s)
	if err != nil {
		return err
	}
	return WriteFile(path, blob)
}

// WriteFile writes an encoded store next to path and renames it into place
// so readers never observe a partial file.
func WriteFile(path string, blob []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install model store: %w", err)
	}
	return nil
}

func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
