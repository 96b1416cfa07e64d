package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"help112-bot/internal/database/models"
)

// JSONFile keeps all users in one JSON object keyed by the stringified id.
// Timestamps are written as RFC 3339 strings.
type JSONFile struct {
	path string
}

// NewJSONFile creates a JSON backed record file at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Kind implements RecordFile.
func (f *JSONFile) Kind() models.StorageKind {
	return models.StorageJSON
}

// Path returns the file location.
func (f *JSONFile) Path() string {
	return f.path
}

// LoadAll reads and decodes the whole file.
func (f *JSONFile) LoadAll(ctx context.Context) (map[int64]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[int64]*models.User{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return map[int64]*models.User{}, nil
	}

	raw := make(map[string]*models.User)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}

	users := make(map[int64]*models.User, len(raw))
	for key, user := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || user == nil {
			return nil, fmt.Errorf("invalid user entry %q in %s", key, f.path)
		}
		user.UserID = id
		users[id] = user
	}
	return users, nil
}

// SaveAll encodes users and atomically replaces the file.
func (f *JSONFile) SaveAll(ctx context.Context, users map[int64]*models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := make(map[string]*models.User, len(users))
	for id, user := range users {
		raw[strconv.FormatInt(id, 10)] = user
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

// writeFileAtomic writes data to a temporary file next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
