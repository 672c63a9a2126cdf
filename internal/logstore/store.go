package logstore

import (
	"errors"
	"strings"
	"time"

	"github.com/eagraf/kitsune-hub/internal/installer"
)

var ErrInvalidID = errors.New("invalid installer id")

type Status string

const (
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one immutable line of an installer's action history.
type Entry struct {
	Timestamp time.Time        `json:"timestamp"`
	Action    installer.Action `json:"action"`
	Status    Status           `json:"status"`
	Message   string           `json:"message"`
	Output    string           `json:"output"`
}

// Record is the persisted form of a single installer's history.
type Record struct {
	InstallerID string  `json:"installer_id"`
	Entries     []Entry `json:"entries"`
}

// Store is an append-only, per-installer action history.
type Store interface {
	// Log appends an entry stamped with the current UTC time.
	Log(id string, action installer.Action, status Status, message, output string) error

	// Logs returns a copy of the entries for id in append order. Unknown ids yield an empty slice.
	Logs(id string) []Entry

	// All returns a copy of every history keyed by installer id.
	All() map[string][]Entry
}

func newEntry(action installer.Action, status Status, message, output string) Entry {
	return Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Status:    status,
		Message:   message,
		Output:    output,
	}
}

// validateID rejects ids that cannot name a single file inside the log directory.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}
