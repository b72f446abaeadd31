package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"g1": {"official_name": "Alpha"}, "g2": {}}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.json")
	body := fmt.Sprintf(`{"catalog": {"url": %q}, "storage": {"driver": "file", "path": %q}}`,
		srv.URL, filepath.Join(dir, "known.json"))
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return cfg
}

func TestCheckStatusReset(t *testing.T) {
	cfg := setup(t)

	out, err := execute(t, "--config", cfg, "check", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "g1\tAlpha")
	assert.Contains(t, out, "g2\tg2")
	assert.Contains(t, out, "2 new, 2 fetched, 0 known")

	out, err = execute(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "known: 0")
	assert.Contains(t, out, "persisted: false")

	_, err = execute(t, "--config", cfg, "check")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "known: 2")
	assert.Contains(t, out, "persisted: true")

	_, err = execute(t, "--config", cfg, "reset")
	assert.Error(t, err)

	out, err = execute(t, "--config", cfg, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "known set cleared")

	out, err = execute(t, "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "known: 0")
}
