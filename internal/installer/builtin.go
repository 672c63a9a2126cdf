package installer

import (
	"context"
	"fmt"
)

// Builtin is an installer compiled into the binary. Any nil hook behaves like a missing script:
// false, no value, or a failed Result.
type Builtin struct {
	Meta Metadata

	CheckFunc          func(ctx context.Context) bool
	CurrentVersionFunc func(ctx context.Context) (string, bool)
	LatestVersionFunc  func(ctx context.Context) (string, bool)
	InstallFunc        func(ctx context.Context) (*Result, error)
	UpdateFunc         func(ctx context.Context) (*Result, error)
	UninstallFunc      func(ctx context.Context) (*Result, error)
}

var _ Installer = (*Builtin)(nil)

type Metadata struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Dependencies []string `json:"dependencies"`
}

func (b *Builtin) ID() string          { return b.Meta.ID }
func (b *Builtin) Name() string        { return b.Meta.Name }
func (b *Builtin) Description() string { return b.Meta.Description }
func (b *Builtin) Category() string    { return b.Meta.Category }
func (b *Builtin) kind() Kind          { return KindBuiltin }

func (b *Builtin) Dependencies() []string {
	return append([]string(nil), b.Meta.Dependencies...)
}

func (b *Builtin) CheckInstalled(ctx context.Context) bool {
	if b.CheckFunc == nil {
		return false
	}
	return b.CheckFunc(ctx)
}

func (b *Builtin) CurrentVersion(ctx context.Context) (string, bool) {
	if b.CurrentVersionFunc == nil {
		return "", false
	}
	return b.CurrentVersionFunc(ctx)
}

func (b *Builtin) LatestVersion(ctx context.Context) (string, bool) {
	if b.LatestVersionFunc == nil {
		return "", false
	}
	return b.LatestVersionFunc(ctx)
}

func (b *Builtin) Install(ctx context.Context) (*Result, error) {
	return b.run(ctx, ActionInstall, b.InstallFunc)
}

func (b *Builtin) Update(ctx context.Context) (*Result, error) {
	return b.run(ctx, ActionUpdate, b.UpdateFunc)
}

func (b *Builtin) Uninstall(ctx context.Context) (*Result, error) {
	return b.run(ctx, ActionUninstall, b.UninstallFunc)
}

func (b *Builtin) run(ctx context.Context, action Action, fn func(context.Context) (*Result, error)) (*Result, error) {
	if fn == nil {
		return &Result{
			Success: false,
			Message: fmt.Sprintf("%s is not supported by %s", action, b.Meta.ID),
		}, nil
	}
	res, err := fn(ctx)
	if err == nil && res == nil {
		return noResult(b.Meta.ID, action), nil
	}
	return res, err
}

// Builtins returns the installers compiled into this binary.
func Builtins() []Installer {
	return []Installer{}
}
