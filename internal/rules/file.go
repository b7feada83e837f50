package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"calnorm/internal/fileutil"
	appLog "calnorm/internal/log"
)

// FileRepository persists a Store as a YAML file.
//
// Behavior:
//   - Missing file: empty store, nothing written until Save.
//   - Corrupt file: empty store, logged; the file is left untouched so an
//     aborted run does not destroy it. The next successful Save replaces it.
//   - Save: atomic temp file + rename with 0600 permissions.
type FileRepository struct {
	Path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{Path: path}
}

// Load reads the rule file. Only unexpected I/O failures (permissions,
// path is a directory, ...) are returned as errors.
func (r *FileRepository) Load() (*Store, error) {
	if r.Path == "" {
		return nil, errors.New("rules path is empty")
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("rule store not found; starting with empty rules", "path", r.Path)
			return New(), nil
		}
		return nil, fmt.Errorf("read rules %s: %w", r.Path, err)
	}

	s, fresh := Load(data)
	if fresh {
		appLog.Info("rule store reset to defaults", "path", r.Path)
	} else {
		appLog.Debug("rule store loaded", "path", r.Path, "titles", len(s.Titles), "locations", len(s.Locations))
	}
	return s, nil
}

// Save writes s to the repository path.
func (r *FileRepository) Save(s *Store) error {
	if r.Path == "" {
		return errors.New("rules path is empty")
	}
	if s == nil {
		return errors.New("rule store is nil")
	}

	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(r.Path, data, 0o600); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	appLog.Info("rule store saved", "path", r.Path, "titles", len(s.Titles), "locations", len(s.Locations))
	return nil
}
