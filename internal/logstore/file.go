package logstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const RecordExt = ".json"

// FileStore keeps every history in memory and mirrors each one to <dir>/<id>.json. Each append
// rewrites the whole record so a file on disk is always a complete history.
type FileStore struct {
	dir string

	mu   sync.RWMutex
	logs map[string][]Entry
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and seeds the store from the records already in it. Records
// that cannot be read or decoded are skipped.
func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, errors.Wrap(err, "error creating logs directory")
	}

	s := &FileStore{
		dir:  dir,
		logs: make(map[string][]Entry),
	}
	err = s.recover()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) recover() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrap(err, "error reading logs directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != RecordExt {
			continue
		}
		id := strings.TrimSuffix(name, RecordExt)
		if validateID(id) != nil {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			log.Debug().Err(err).Msgf("skipping log record %s", name)
			continue
		}
		var record Record
		err = json.Unmarshal(raw, &record)
		if err != nil {
			log.Debug().Err(err).Msgf("skipping log record %s", name)
			continue
		}
		if record.Entries == nil {
			record.Entries = []Entry{}
		}
		s.logs[id] = record.Entries
	}
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+RecordExt)
}

func (s *FileStore) Log(id string, action installer.Action, status Status, message, output string) error {
	err := validateID(id)
	if err != nil {
		return errors.Wrapf(err, "%q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.logs[id], newEntry(action, status, message, output))
	s.logs[id] = entries

	return s.persist(id, entries)
}

// persist replaces the record for id. The caller holds the write lock.
func (s *FileStore) persist(id string, entries []Entry) error {
	raw, err := json.MarshalIndent(&Record{
		InstallerID: id,
		Entries:     entries,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "error creating log record")
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(raw)
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, "error writing log record")
	}
	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "error writing log record")
	}

	err = os.Rename(tmp.Name(), s.path(id))
	if err != nil {
		return errors.Wrap(err, "error replacing log record")
	}
	return nil
}

func (s *FileStore) Logs(id string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.logs[id]...)
}

func (s *FileStore) All() map[string][]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string][]Entry, len(s.logs))
	for id, entries := range s.logs {
		all[id] = append([]Entry{}, entries...)
	}
	return all
}
