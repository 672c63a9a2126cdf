package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/pubsub"
	"github.com/eagraf/kitsune-hub/internal/script"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DescriptorExt       = ".json"
	DefaultPollInterval = 2 * time.Second
)

// ReloadEvent is published after the snapshot has been replaced.
type ReloadEvent struct {
	Count int
	At    time.Time
}

type snapshot map[string]installer.Installer

// Registry owns the set of descriptor-driven installers loaded from one directory. It is created once
// at startup and lives for the whole process. Readers always see one complete snapshot: reloads build
// a new map off to the side and swap it in under the write lock.
type Registry struct {
	dir      string
	runner   script.Runner
	interval time.Duration

	mu         sync.RWMutex
	installers snapshot

	reloads *pubsub.Publisher[ReloadEvent]

	// Last seen modification time per descriptor path. Only touched by the watch loop.
	modTimes map[string]time.Time
}

type Option func(*Registry)

func WithPollInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

func New(dir string, runner script.Runner, opts ...Option) *Registry {
	r := &Registry{
		dir:        dir,
		runner:     runner,
		interval:   DefaultPollInterval,
		installers: snapshot{},
		reloads:    pubsub.NewPublisher[ReloadEvent](),
		modTimes:   make(map[string]time.Time),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Dir() string {
	return r.dir
}

// Reloads returns the publisher that receives a ReloadEvent after every watch-triggered swap.
func (r *Registry) Reloads() *pubsub.Publisher[ReloadEvent] {
	return r.reloads
}

func (r *Registry) Subscribe() (<-chan ReloadEvent, func()) {
	return r.reloads.Subscribe()
}

func (r *Registry) Get(id string) (installer.Installer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.installers[id]
	return i, ok
}

// All returns the installers of the current snapshot ordered by id.
func (r *Registry) All() []installer.Installer {
	r.mu.RLock()
	all := make([]installer.Installer, 0, len(r.installers))
	for _, i := range r.installers {
		all = append(all, i)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool {
		return all[a].ID() < all[b].ID()
	})
	return all
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.installers)
}

// LoadAll rescans the directory, creating it if needed, and swaps in the result. Descriptors that
// cannot be read or parsed are left out.
func (r *Registry) LoadAll() error {
	err := os.MkdirAll(r.dir, 0755)
	if err != nil {
		return errors.Wrap(err, "error creating installers directory")
	}

	loaded, err := r.scan()
	if err != nil {
		return err
	}
	r.swap(loaded)
	return nil
}

// Reload is LoadAll followed by a ReloadEvent, for reloads requested explicitly by a caller.
func (r *Registry) Reload() error {
	err := r.LoadAll()
	if err != nil {
		return err
	}
	r.reloads.PublishEvent(ReloadEvent{
		Count: r.Len(),
		At:    time.Now().UTC(),
	})
	return nil
}

func (r *Registry) scan() (snapshot, error) {
	paths, err := r.descriptorPaths()
	if err != nil {
		return nil, err
	}

	loaded := snapshot{}
	for _, path := range paths {
		inst, err := r.loadDescriptor(path)
		if err != nil {
			log.Debug().Err(err).Msgf("skipping installer descriptor %s", path)
			continue
		}
		loaded[inst.ID()] = inst
	}
	return loaded, nil
}

func (r *Registry) descriptorPaths() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(err, "error reading installers directory")
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != DescriptorExt {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, entry.Name()))
	}
	return paths, nil
}

func (r *Registry) loadDescriptor(path string) (*installer.ScriptInstaller, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	desc, err := installer.ParseDescriptor(raw)
	if err != nil {
		return nil, err
	}
	return installer.NewScriptInstaller(desc, filepath.Dir(path), r.runner), nil
}

func (r *Registry) swap(next snapshot) {
	r.mu.Lock()
	r.installers = next
	r.mu.Unlock()
}

// Watch polls the directory every interval and reloads when a descriptor was added, modified or
// removed since the previous tick. Errors only skip the tick. Watch returns when ctx is cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick runs one poll cycle and reports whether a reload happened.
func (r *Registry) tick() bool {
	if !r.detectChanges() {
		return false
	}

	loaded, err := r.scan()
	if err != nil {
		log.Warn().Err(err).Msg("error reloading installers, retrying on next tick")
		return false
	}
	r.swap(loaded)
	r.reloads.PublishEvent(ReloadEvent{
		Count: len(loaded),
		At:    time.Now().UTC(),
	})
	return true
}

func (r *Registry) detectChanges() bool {
	paths, err := r.descriptorPaths()
	if err != nil {
		log.Debug().Err(err).Msg("unable to list installers directory")
		return false
	}

	changed := false
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		seen[path] = struct{}{}
		modified := info.ModTime()
		last, ok := r.modTimes[path]
		if !ok || modified.After(last) {
			changed = true
		}
		r.modTimes[path] = modified
	}

	for path := range r.modTimes {
		if _, ok := seen[path]; !ok {
			delete(r.modTimes, path)
			changed = true
		}
	}
	return changed
}
