package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/logstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolver map[string]installer.Installer

func (r resolver) Lookup(id string) (installer.Installer, bool) {
	i, ok := r[id]
	return i, ok
}

func result(success bool, msg string) func(context.Context) (*installer.Result, error) {
	return func(context.Context) (*installer.Result, error) {
		return &installer.Result{Success: success, Message: msg}, nil
	}
}

func succeeding(id string) *installer.Builtin {
	return &installer.Builtin{
		Meta:          installer.Metadata{ID: id, Name: id},
		InstallFunc:   result(true, "install completed: "+id),
		UpdateFunc:    result(true, "update completed: "+id),
		UninstallFunc: result(true, "uninstall completed: "+id),
	}
}

func newOrchestrator(t *testing.T, r resolver, opts ...Option) (*Orchestrator, logstore.Store) {
	logs, err := logstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewOrchestrator(r, logs, opts...), logs
}

func TestInstallWithMissingID(t *testing.T) {
	orch, logs := newOrchestrator(t, resolver{
		"a": succeeding("a"),
		"b": succeeding("b"),
	})

	resp := orch.Install(context.Background(), []string{"a", "missing", "b"})

	require.NotEmpty(t, resp.BatchID)
	require.Equal(t, 3, resp.Total)
	require.Equal(t, 2, resp.Completed)
	require.Equal(t, 1, resp.Failed)
	require.Equal(t, []Item{
		{ID: "a", Status: StatusCompleted, Progress: 100, Message: "install completed: a"},
		{ID: "missing", Status: StatusFailed, Progress: 100, Message: MessageNotFound},
		{ID: "b", Status: StatusCompleted, Progress: 100, Message: "install completed: b"},
	}, resp.Progress)

	missing := logs.Logs("missing")
	require.Len(t, missing, 2)
	require.Equal(t, logstore.StatusStarted, missing[0].Status)
	require.Equal(t, logstore.StatusFailed, missing[1].Status)
	require.Equal(t, MessageNotFound, missing[1].Message)

	a := logs.Logs("a")
	require.Len(t, a, 2)
	require.Equal(t, logstore.StatusSuccess, a[1].Status)
	require.Equal(t, installer.ActionInstall, a[1].Action)
}

func TestFailureKinds(t *testing.T) {
	orch, logs := newOrchestrator(t, resolver{
		"refuses": &installer.Builtin{
			Meta:        installer.Metadata{ID: "refuses"},
			InstallFunc: result(false, "install script not found"),
		},
		"crashes": &installer.Builtin{
			Meta: installer.Metadata{ID: "crashes"},
			InstallFunc: func(context.Context) (*installer.Result, error) {
				return nil, errors.New("install failed: command exited with error: boom")
			},
		},
		"ok": succeeding("ok"),
	})

	resp := orch.Install(context.Background(), []string{"refuses", "crashes", "ok"})
	require.Equal(t, 1, resp.Completed)
	require.Equal(t, 2, resp.Failed)

	require.Equal(t, StatusFailed, resp.Progress[0].Status)
	require.Equal(t, "install script not found", resp.Progress[0].Message)
	require.Equal(t, StatusFailed, resp.Progress[1].Status)
	require.Equal(t, "error: install failed: command exited with error: boom", resp.Progress[1].Message)
	require.Equal(t, StatusCompleted, resp.Progress[2].Status)

	crashed := logs.Logs("crashes")
	require.Len(t, crashed, 2)
	require.Equal(t, logstore.StatusFailed, crashed[1].Status)
	require.Equal(t, resp.Progress[1].Message, crashed[1].Output)
}

func TestNilResultFailsItem(t *testing.T) {
	quiet := &installer.Builtin{
		Meta: installer.Metadata{ID: "quiet"},
		InstallFunc: func(context.Context) (*installer.Result, error) {
			return nil, nil
		},
	}
	orch, _ := newOrchestrator(t, resolver{"quiet": quiet, "b": succeeding("b")})

	resp := orch.Install(context.Background(), []string{"quiet", "b"})
	require.Equal(t, 1, resp.Completed)
	require.Equal(t, 1, resp.Failed)
	require.Equal(t, StatusFailed, resp.Progress[0].Status)
	require.Equal(t, "install for quiet returned no result", resp.Progress[0].Message)
	require.Equal(t, StatusCompleted, resp.Progress[1].Status)
}

func TestTransitionsAreMonotonic(t *testing.T) {
	seen := map[string][]Item{}
	var order []string
	observer := func(batchID string, action installer.Action, item Item) {
		assert.NotEmpty(t, batchID)
		assert.Equal(t, installer.ActionInstall, action)
		if _, ok := seen[item.ID]; !ok {
			order = append(order, item.ID)
		}
		seen[item.ID] = append(seen[item.ID], item)
	}
	orch, _ := newOrchestrator(t, resolver{
		"a": succeeding("a"),
		"c": succeeding("c"),
	}, WithObserver(observer))

	orch.Install(context.Background(), []string{"c", "b", "a"})

	require.Equal(t, []string{"c", "b", "a"}, order)
	for id, items := range seen {
		require.Len(t, items, 3, id)
		require.Equal(t, StatusInstalling, items[0].Status)
		require.Equal(t, 10, items[0].Progress)
		require.Equal(t, 30, items[1].Progress)
		require.True(t, items[2].Status.Terminal())
		require.Equal(t, 100, items[2].Progress)
		for i := 1; i < len(items); i++ {
			require.GreaterOrEqual(t, items[i].Progress, items[i-1].Progress)
		}
	}
}

func TestUpdateAndUninstall(t *testing.T) {
	orch, logs := newOrchestrator(t, resolver{"a": succeeding("a")})

	resp := orch.Update(context.Background(), []string{"a"})
	require.Equal(t, 1, resp.Completed)
	require.Equal(t, "update completed: a", resp.Progress[0].Message)

	resp = orch.Uninstall(context.Background(), []string{"a", "a"})
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 2, resp.Completed)

	entries := logs.Logs("a")
	require.Len(t, entries, 6)
	require.Equal(t, installer.ActionUpdate, entries[0].Action)
	require.Equal(t, installer.ActionUninstall, entries[5].Action)
}

func TestEmptyBatch(t *testing.T) {
	orch, _ := newOrchestrator(t, resolver{})

	resp := orch.Install(context.Background(), nil)
	require.Equal(t, 0, resp.Total)
	require.NotNil(t, resp.Progress)
	require.Empty(t, resp.Progress)
}

func TestBatchIDsAreUnique(t *testing.T) {
	orch, _ := newOrchestrator(t, resolver{})
	first := orch.Install(context.Background(), []string{"x"})
	second := orch.Install(context.Background(), []string{"x"})
	require.NotEqual(t, first.BatchID, second.BatchID)
}
