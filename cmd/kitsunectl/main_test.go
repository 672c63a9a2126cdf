package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type recorded struct {
	method, path, query, body string
}

func fakeHub(t *testing.T) (*httptest.Server, *[]recorded) {
	var requests []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		requests = append(requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/installers/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"installer not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"install completed: ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func runCLI(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"kitsunectl"}, args...))
	return out.String(), err
}

func TestCommands(t *testing.T) {
	srv, requests := fakeHub(t)

	cases := []struct {
		args []string
		want recorded
	}{
		{[]string{"list", "--category", "vcs", "--installed", "true"}, recorded{"GET", "/api/installers", "category=vcs&installed=true", ""}},
		{[]string{"info", "git"}, recorded{"GET", "/api/installers/git", "", ""}},
		{[]string{"install", "git"}, recorded{"POST", "/api/installers/git/install", "", ""}},
		{[]string{"update", "git"}, recorded{"POST", "/api/installers/git/update", "", ""}},
		{[]string{"uninstall", "git"}, recorded{"POST", "/api/installers/git/uninstall", "", ""}},
		{[]string{"logs", "git"}, recorded{"GET", "/api/installers/git/logs", "", ""}},
		{[]string{"logs"}, recorded{"GET", "/api/logs", "", ""}},
		{[]string{"categories"}, recorded{"GET", "/api/categories", "", ""}},
		{[]string{"reload"}, recorded{"POST", "/api/installers/reload", "", ""}},
		{[]string{"batch", "uninstall", "a", "b"}, recorded{"POST", "/api/installers/batch-uninstall", "", `{"ids":["a","b"]}`}},
	}
	for _, tc := range cases {
		*requests = nil
		out, err := runCLI(t, append([]string{"--addr", srv.URL}, tc.args...)...)
		require.NoError(t, err, tc.args)
		require.Equal(t, []recorded{tc.want}, *requests, tc.args)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		require.Equal(t, true, decoded["success"])
	}
}

func TestYAMLOutput(t *testing.T) {
	srv, _ := fakeHub(t)

	out, err := runCLI(t, "--addr", srv.URL, "--output", "yaml", "install", "git")
	require.NoError(t, err)
	require.Contains(t, out, "success: true\n")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "install completed: ok", decoded["message"])
}

func TestErrors(t *testing.T) {
	srv, requests := fakeHub(t)

	_, err := runCLI(t, "--addr", srv.URL, "info", "missing")
	require.EqualError(t, err, "404 Not Found: installer not found")

	*requests = nil
	_, err = runCLI(t, "--addr", srv.URL, "install")
	require.Error(t, err)
	_, err = runCLI(t, "--addr", srv.URL, "batch", "install")
	require.Error(t, err)
	_, err = runCLI(t, "--addr", srv.URL, "list", "--installed", "maybe")
	require.Error(t, err)
	_, err = runCLI(t, "--addr", srv.URL, "--output", "xml", "categories")
	require.Error(t, err)
	require.Empty(t, *requests)
}

func TestProfile(t *testing.T) {
	srv, requests := fakeHub(t)
	profile := filepath.Join(t.TempDir(), "profile.yml")
	require.NoError(t, os.WriteFile(profile, []byte("addr: "+srv.URL+"\n"), 0o644))

	_, err := runCLI(t, "--profile", profile, "categories")
	require.NoError(t, err)
	require.Len(t, *requests, 1)
}
