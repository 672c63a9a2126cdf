package logstore

import (
	"context"
	"fmt"
	"time"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// LogEntry is the row layout used by SQLStore. Rows are never updated; the auto-increment key gives
// append order.
type LogEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	InstallerID string `gorm:"index;not null"`
	Timestamp   time.Time
	Action      string
	Status      string
	Message     string
	Output      string
}

func (LogEntry) TableName() string {
	return "installer_logs"
}

func (l *LogEntry) entry() Entry {
	return Entry{
		Timestamp: l.Timestamp.UTC(),
		Action:    installer.Action(l.Action),
		Status:    Status(l.Status),
		Message:   l.Message,
		Output:    l.Output,
	}
}

// SQLStore keeps histories in a gorm database instead of per-id files.
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&LogEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate installer logs table: %w", err)
	}
	return &SQLStore{
		db: db,
	}, nil
}

// Log implements [Store].
func (s *SQLStore) Log(id string, action installer.Action, status Status, message, output string) error {
	if id == "" {
		return ErrInvalidID
	}
	e := newEntry(action, status, message, output)
	return gorm.G[LogEntry](s.db).Create(context.Background(), &LogEntry{
		InstallerID: id,
		Timestamp:   e.Timestamp,
		Action:      string(e.Action),
		Status:      string(e.Status),
		Message:     e.Message,
		Output:      e.Output,
	})
}

// Logs implements [Store].
func (s *SQLStore) Logs(id string) []Entry {
	rows, err := gorm.G[LogEntry](s.db).Where("installer_id = ?", id).Order("id").Find(context.Background())
	if err != nil {
		log.Warn().Err(err).Msgf("error reading logs for %s", id)
		return []Entry{}
	}

	entries := make([]Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].entry())
	}
	return entries
}

// All implements [Store].
func (s *SQLStore) All() map[string][]Entry {
	all := make(map[string][]Entry)
	rows, err := gorm.G[LogEntry](s.db).Order("id").Find(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("error reading installer logs")
		return all
	}

	for i := range rows {
		all[rows[i].InstallerID] = append(all[rows[i].InstallerID], rows[i].entry())
	}
	return all
}
