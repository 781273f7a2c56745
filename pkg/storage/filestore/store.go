package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradecollector/internal/bitget/memorystore"
)

// BackupTimeLayout is the suffix layout of backup files, e.g. trading_data_backup_20240301_120000.json.
const BackupTimeLayout = "20060102_150405"

// Store is the durable trade log: one JSON document holding an ordered array of
// trade records. Writes go to a temporary file that is renamed over the
// target, so readers observe either the previous or the new content.
type Store struct {
	mu   sync.RWMutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads all records. A missing file yields an empty slice.
func (s *Store) Load() ([]memorystore.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []memorystore.TradeRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []memorystore.TradeRecord{}, nil
	}

	var records []memorystore.TradeRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	if records == nil {
		records = []memorystore.TradeRecord{}
	}
	return records, nil
}

// Stat reports whether the store file exists and its size in bytes.
func (s *Store) Stat() (bool, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false, 0
	}
	return true, info.Size()
}

// Write replaces the store contents with records.
func (s *Store) Write(records []memorystore.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := s.writeTemp(records)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// Rotate preserves the current file under a timestamped backup name and then
// replaces the store contents with retained. The new content is fully written
// before the backup is taken, and the final swap is a single rename.
// It returns the backup path, or "" when there was no file to back up.
func (s *Store) Rotate(retained []memorystore.TradeRecord, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := s.writeTemp(retained)
	if err != nil {
		return "", err
	}

	backup := ""
	if _, err := os.Stat(s.path); err == nil {
		backup = s.backupPath(now)
		if err := linkOrCopy(s.path, backup); err != nil {
			_ = os.Remove(tmp)
			return "", fmt.Errorf("backup store: %w", err)
		}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return backup, fmt.Errorf("replace store: %w", err)
	}
	return backup, nil
}

// Backups lists existing backup files, oldest first.
func (s *Store) Backups() ([]string, error) {
	pattern := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + "_backup_*" + filepath.Ext(s.path)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *Store) backupPath(now time.Time) string {
	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	candidate := fmt.Sprintf("%s_backup_%s%s", base, now.Format(BackupTimeLayout), ext)

	// Two rotations inside the same second must not overwrite each other.
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_backup_%s_%d%s", base, now.Format(BackupTimeLayout), i, ext)
	}
}

func (s *Store) writeTemp(records []memorystore.TradeRecord) (string, error) {
	if records == nil {
		records = []memorystore.TradeRecord{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create store directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode store: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp, nil
}

func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
