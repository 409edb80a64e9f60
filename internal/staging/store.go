package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const filePrefix = "dish-"

// Store stages uploaded images on local disk for the lifetime of one interaction.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates dir when needed and returns a store rooted there.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("staging directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("staging")}, nil
}

// Dir returns the directory files are staged in.
func (s *Store) Dir() string {
	return s.dir
}

// Write stores data as dish-<interactionID>.<ext> and returns its path.
func (s *Store) Write(interactionID, ext string, data []byte) (string, error) {
	if interactionID == "" || strings.ContainsAny(interactionID, `/\`) {
		return "", fmt.Errorf("invalid interaction id %q", interactionID)
	}
	name := filePrefix + interactionID
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		// a partial write must not outlive the interaction either
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes a staged file. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes files left behind by a previous process and returns how many
// were removed.
func (s *Store) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, path := range matches {
		if err := s.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("removed stale staged files", zap.Int("count", removed), zap.String("dir", s.dir))
	}
	return removed, errors.Join(errs...)
}
