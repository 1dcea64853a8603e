package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"raffle/internal/constants"
)

// FileStore writes one JSON file per draw into a directory. Files are named
// audit_<ts>.json with a _<n> suffix when that name is taken, and are
// created exclusively so no record is ever overwritten.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = constants.DefaultAuditDirectory
	}
	return &FileStore{dir: dir}
}

func (s *FileStore) Name() string {
	return constants.AuditBackendFile
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Append(ctx context.Context, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", persistenceError(s.Name(), err)
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return "", persistenceError(s.Name(), err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to create audit directory: %w", err))
	}

	for n := 0; ; n++ {
		name := fmt.Sprintf("audit_%d.json", rec.Timestamp)
		if n > 0 {
			name = fmt.Sprintf("audit_%d_%d.json", rec.Timestamp, n)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", persistenceError(s.Name(), fmt.Errorf("failed to create %s: %w", path, err))
		}

		if err := writeAndSync(f, data); err != nil {
			_ = os.Remove(path)
			return "", persistenceError(s.Name(), fmt.Errorf("failed to write %s: %w", path, err))
		}
		return path, nil
	}
}

func writeAndSync(f *os.File, data []byte) error {
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// List returns records newest first. An empty eventID matches every event.
func (s *FileStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit directory: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "audit_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := ReadRecordFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		if eventID != "" && rec.EventID != eventID {
			continue
		}
		records = append(records, rec)
	}

	sortNewestFirst(records)
	return truncate(records, limit), nil
}

// ReadRecordFile loads a single audit artifact.
func ReadRecordFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read audit record %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode audit record %s: %w", path, err)
	}
	return rec, nil
}

// encodeRecord renders the human-readable artifact: two-space indent,
// non-ASCII kept as is.
func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode audit record: %w", err)
	}
	return buf.Bytes(), nil
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp > records[j].Timestamp
		}
		return records[i].DrawID > records[j].DrawID
	})
}

func truncate(records []Record, limit int) []Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
