package installer

import (
	"context"
	"fmt"
)

type Action string

const (
	ActionInstall   Action = "install"
	ActionUpdate    Action = "update"
	ActionUninstall Action = "uninstall"
)

var actions = map[string]Action{
	"install":   ActionInstall,
	"update":    ActionUpdate,
	"uninstall": ActionUninstall,
}

func (a Action) String() string {
	return string(a)
}

// ActionFromString returns the action with the given name, and false if there is none.
func ActionFromString(s string) (Action, bool) {
	a, ok := actions[s]
	return a, ok
}

type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindScript  Kind = "script"
)

// Installer installs, updates, uninstalls and inspects one piece of external software.
// The set of implementations is closed: *Builtin and *ScriptInstaller.
type Installer interface {
	ID() string
	Name() string
	Description() string
	Category() string
	Dependencies() []string

	CheckInstalled(ctx context.Context) bool
	// CurrentVersion returns the installed version, and false if it could not be determined.
	CurrentVersion(ctx context.Context) (string, bool)
	// LatestVersion returns the newest available version, and false if it could not be determined.
	LatestVersion(ctx context.Context) (string, bool)

	Install(ctx context.Context) (*Result, error)
	Update(ctx context.Context) (*Result, error)
	Uninstall(ctx context.Context) (*Result, error)

	kind() Kind
}

// KindOf reports which variant backs the given installer.
func KindOf(i Installer) Kind {
	return i.kind()
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Info is a read-only view of an installer, computed fresh on every call to GetInfo.
type Info struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Installed      bool     `json:"installed"`
	CurrentVersion *string  `json:"current_version"`
	LatestVersion  *string  `json:"latest_version"`
	CanUpdate      bool     `json:"can_update"`
	Dependencies   []string `json:"dependencies"`
}

// Do runs the given mutating action against the installer. A nil error always comes with a non-nil
// Result.
func Do(ctx context.Context, i Installer, action Action) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch action {
	case ActionInstall:
		res, err = i.Install(ctx)
	case ActionUpdate:
		res, err = i.Update(ctx)
	case ActionUninstall:
		res, err = i.Uninstall(ctx)
	default:
		return nil, &UnknownActionError{Action: action}
	}
	if err == nil && res == nil {
		res = noResult(i.ID(), action)
	}
	return res, err
}

func noResult(id string, action Action) *Result {
	return &Result{
		Success: false,
		Message: fmt.Sprintf("%s for %s returned no result", action, id),
	}
}

type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return "unknown action: " + string(e.Action)
}

// CanUpdate is true when the software is installed, both versions are known and they differ.
// Versions are compared as opaque strings.
func CanUpdate(installed bool, current, latest *string) bool {
	return installed && current != nil && latest != nil && *current != *latest
}

// GetInfo queries the installed state first, the current version only when installed, and the
// latest version unconditionally so uninstalled software still advertises what is available.
func GetInfo(ctx context.Context, i Installer) Info {
	installed := i.CheckInstalled(ctx)

	var current *string
	if installed {
		if v, ok := i.CurrentVersion(ctx); ok {
			current = &v
		}
	}

	var latest *string
	if v, ok := i.LatestVersion(ctx); ok {
		latest = &v
	}

	deps := i.Dependencies()
	if deps == nil {
		deps = []string{}
	}

	return Info{
		ID:             i.ID(),
		Name:           i.Name(),
		Description:    i.Description(),
		Category:       i.Category(),
		Installed:      installed,
		CurrentVersion: current,
		LatestVersion:  latest,
		CanUpdate:      CanUpdate(installed, current, latest),
		Dependencies:   deps,
	}
}
