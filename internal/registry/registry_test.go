package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/script"
	"github.com/stretchr/testify/require"
)

func descriptorJSON(id, name string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"description": "test installer",
		"category": "tools",
		"dependencies": [],
		"scripts": {"install": "install.sh"}
	}`, id, name)
}

func writeDescriptor(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func ids(installers []installer.Installer) []string {
	out := make([]string, 0, len(installers))
	for _, i := range installers {
		out = append(out, i.ID())
	}
	return out
}

func newTestRegistry(dir string) *Registry {
	return New(dir, script.NewProcessRunner("sh", 1), WithPollInterval(10*time.Millisecond))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "b.json", descriptorJSON("beta", "Beta"))
	writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))
	writeDescriptor(t, dir, "c.json", descriptorJSON("gamma", "Gamma"))
	writeDescriptor(t, dir, "notes.txt", "not a descriptor")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())

	require.Equal(t, []string{"alpha", "beta", "gamma"}, ids(r.All()))
	require.Equal(t, 3, r.Len())

	inst, ok := r.Get("beta")
	require.True(t, ok)
	require.Equal(t, "Beta", inst.Name())
	require.Equal(t, installer.KindScript, installer.KindOf(inst))
	require.Equal(t, dir, inst.(*installer.ScriptInstaller).BaseDir())

	_, ok = r.Get("missing")
	require.False(t, ok)
}

func TestLoadAllSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))
	writeDescriptor(t, dir, "b.json", descriptorJSON("beta", "Beta"))
	writeDescriptor(t, dir, "broken.json", `{"id": "broken", "name": `)
	writeDescriptor(t, dir, "incomplete.json", `{"id": "incomplete"}`)
	writeDescriptor(t, dir, "escape.json", descriptorJSON("../escape", "Escape"))
	writeDescriptor(t, dir, "nested.json", descriptorJSON("tools/nested", "Nested"))

	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())
	require.Equal(t, []string{"alpha", "beta"}, ids(r.All()))
}

func TestLoadAllCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "installers")

	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())
	require.Empty(t, r.All())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLoadAllDirectoryFailure(t *testing.T) {
	parent := t.TempDir()
	file := writeDescriptor(t, parent, "file", "x")

	r := newTestRegistry(filepath.Join(file, "installers"))
	require.Error(t, r.LoadAll())

	// The watch loop treats the same condition as "no change".
	require.False(t, r.tick())
}

func TestLoadAllReplacesSnapshot(t *testing.T) {
	dir := t.TempDir()
	a := writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))

	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())
	require.Equal(t, []string{"alpha"}, ids(r.All()))

	require.NoError(t, os.Remove(a))
	writeDescriptor(t, dir, "b.json", descriptorJSON("beta", "Beta"))
	require.NoError(t, r.LoadAll())
	require.Equal(t, []string{"beta"}, ids(r.All()))
}

func drain(ch <-chan ReloadEvent) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

func TestTickDetectsChanges(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))
	b := writeDescriptor(t, dir, "b.json", descriptorJSON("beta", "Beta"))

	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())
	events, unsubscribe := r.Subscribe()
	defer unsubscribe()

	// Nothing has been recorded yet, so every file is new on the first tick.
	require.True(t, r.tick())
	require.Equal(t, 1, drain(events))

	require.False(t, r.tick())
	require.Equal(t, 0, drain(events))

	writeDescriptor(t, dir, "b.json", descriptorJSON("beta", "Beta v2"))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(b, future, future))

	require.True(t, r.tick())
	require.Equal(t, 1, drain(events))
	inst, ok := r.Get("beta")
	require.True(t, ok)
	require.Equal(t, "Beta v2", inst.Name())
	require.Equal(t, []string{"alpha", "beta"}, ids(r.All()))

	require.False(t, r.tick())
	require.Equal(t, 0, drain(events))
}

func TestTickDetectsNewAndRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))

	r := newTestRegistry(dir)
	require.True(t, r.tick())
	require.Equal(t, []string{"alpha"}, ids(r.All()))

	writeDescriptor(t, dir, "c.json", descriptorJSON("gamma", "Gamma"))
	require.True(t, r.tick())
	require.Equal(t, []string{"alpha", "gamma"}, ids(r.All()))

	require.NoError(t, os.Remove(a))
	require.True(t, r.tick())
	require.Equal(t, []string{"gamma"}, ids(r.All()))
}

func TestReloadPublishes(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))

	r := newTestRegistry(dir)
	events, unsubscribe := r.Subscribe()
	defer unsubscribe()

	require.NoError(t, r.Reload())
	ev := <-events
	require.Equal(t, 1, ev.Count)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(dir)
	require.NoError(t, r.LoadAll())

	events, unsubscribe := r.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- r.Watch(ctx)
	}()

	writeDescriptor(t, dir, "a.json", descriptorJSON("alpha", "Alpha"))
	select {
	case ev := <-events:
		require.Equal(t, 1, ev.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event")
	}
	_, ok := r.Get("alpha")
	require.True(t, ok)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func generation(name string, n int) snapshot {
	s := snapshot{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("inst-%02d", i)
		s[id] = &installer.Builtin{Meta: installer.Metadata{ID: id, Name: name}}
	}
	return s
}

func TestReadersNeverSeeMixedSnapshot(t *testing.T) {
	r := newTestRegistry(t.TempDir())
	old, next := generation("old", 50), generation("new", 50)
	r.swap(old)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				all := r.All()
				if len(all) != 50 {
					t.Errorf("snapshot has %d installers", len(all))
					return
				}
				for _, i := range all {
					if i.Name() != all[0].Name() {
						t.Errorf("mixed snapshot: %s and %s", i.Name(), all[0].Name())
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		if i%2 == 0 {
			r.swap(next)
		} else {
			r.swap(old)
		}
	}
	close(stop)
	wg.Wait()
}
