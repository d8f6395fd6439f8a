package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/portal/internal/errors"
)

// FileRecord stores the session as JSON in a single file readable only by
// the current user.
type FileRecord struct {
	path string
}

// NewFileRecord creates a record at path.
func NewFileRecord(path string) *FileRecord {
	return &FileRecord{path: path}
}

// DefaultFilePath returns ~/.portal/session.json.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".portal", "session.json"), nil
}

// Path returns the file location.
func (r *FileRecord) Path() string {
	return r.path
}

// Load reads the record. A missing file yields ErrNoRecord.
func (r *FileRecord) Load(ctx context.Context) (*Session, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecordReadFailed, errors.KindUnknown,
			fmt.Sprintf("failed to read session record %s", r.path), err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecordReadFailed, errors.KindUnknown,
			fmt.Sprintf("failed to parse session record %s", r.path), err).
			WithSuggestion("Run 'portal logout' to remove the corrupt record")
	}
	return p.session(), nil
}

// Save writes the record through a temporary file so readers never see a
// partial write.
func (r *FileRecord) Save(ctx context.Context, s Session) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to create session directory", err)
	}

	data, err := json.MarshalIndent(toPersisted(s, time.Now().UTC()), "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to encode session record", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to write session record", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to replace session record", err)
	}
	return nil
}

// Delete removes the record. Removing a missing record is not an error.
func (r *FileRecord) Delete(ctx context.Context) error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeRecordWriteFailed, errors.KindUnknown, "failed to remove session record", err)
	}
	return nil
}

var _ Record = (*FileRecord)(nil)
