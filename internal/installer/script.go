package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eagraf/kitsune-hub/internal/script"
	"github.com/rs/zerolog/log"
)

var ErrScriptNotFound = errors.New("script not found")

// ScriptInstaller is an installer whose capabilities are shell scripts named by a Descriptor.
type ScriptInstaller struct {
	desc    Descriptor
	baseDir string
	runner  script.Runner
}

var _ Installer = (*ScriptInstaller)(nil)

func NewScriptInstaller(desc *Descriptor, baseDir string, runner script.Runner) *ScriptInstaller {
	return &ScriptInstaller{
		desc:    *desc,
		baseDir: baseDir,
		runner:  runner,
	}
}

func (s *ScriptInstaller) ID() string          { return s.desc.ID }
func (s *ScriptInstaller) Name() string        { return s.desc.Name }
func (s *ScriptInstaller) Description() string { return s.desc.Description }
func (s *ScriptInstaller) Category() string    { return s.desc.Category }
func (s *ScriptInstaller) kind() Kind          { return KindScript }

func (s *ScriptInstaller) Dependencies() []string {
	return append([]string(nil), s.desc.Dependencies...)
}

// BaseDir is the directory script references are resolved against.
func (s *ScriptInstaller) BaseDir() string {
	return s.baseDir
}

func (s *ScriptInstaller) scriptPath(ref string) (string, error) {
	if ref == "" {
		return "", ErrScriptNotFound
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, ref)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}
	return path, nil
}

func (s *ScriptInstaller) run(ctx context.Context, ref string) (string, error) {
	path, err := s.scriptPath(ref)
	if err != nil {
		return "", err
	}
	return s.runner.Run(ctx, path)
}

func (s *ScriptInstaller) CheckInstalled(ctx context.Context) bool {
	out, err := s.run(ctx, s.desc.Scripts.Check)
	if err != nil {
		log.Debug().Err(err).Msgf("check for %s failed", s.desc.ID)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(out)) {
	case "1", "true", "installed":
		return true
	}
	return false
}

func (s *ScriptInstaller) CurrentVersion(ctx context.Context) (string, bool) {
	return s.version(ctx, s.desc.Scripts.Version)
}

func (s *ScriptInstaller) LatestVersion(ctx context.Context) (string, bool) {
	return s.version(ctx, s.desc.Scripts.LatestVersion)
}

func (s *ScriptInstaller) version(ctx context.Context, ref string) (string, bool) {
	out, err := s.run(ctx, ref)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}

func (s *ScriptInstaller) Install(ctx context.Context) (*Result, error) {
	return s.mutate(ctx, ActionInstall)
}

func (s *ScriptInstaller) Update(ctx context.Context) (*Result, error) {
	return s.mutate(ctx, ActionUpdate)
}

func (s *ScriptInstaller) Uninstall(ctx context.Context) (*Result, error) {
	return s.mutate(ctx, ActionUninstall)
}

func (s *ScriptInstaller) mutate(ctx context.Context, action Action) (*Result, error) {
	out, err := s.run(ctx, s.desc.Scripts.forAction(action))
	if errors.Is(err, ErrScriptNotFound) {
		return &Result{
			Success: false,
			Message: fmt.Sprintf("%s %s", action, err),
		}, nil
	} else if err != nil {
		return nil, fmt.Errorf("%s failed: %w", action, err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s completed: %s", action, strings.TrimSpace(out)),
	}, nil
}
