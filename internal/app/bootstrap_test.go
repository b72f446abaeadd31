package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamewatch/internal/config"
	logx "gamewatch/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewAppFailsFastOnMissingSettings(t *testing.T) {
	for _, k := range []string{config.EnvToken, config.EnvURL, config.EnvChannelID} {
		t.Setenv(k, "")
	}
	path := writeConfig(t, `{"catalog": {"url": "https://example.com/api/games/"}}`)

	_, err := NewApp(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "telegram.token")
	assert.Contains(t, err.Error(), "notifier.channel_id")
}

func TestLocalCheckAndDryRun(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"g1": {"official_name": "Alpha"}}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	state := filepath.Join(dir, "known.json")
	path := writeConfig(t, fmt.Sprintf(`{
		"catalog": {"url": %q},
		"storage": {"driver": "file", "path": %q}
	}`, srv.URL, state))

	l, err := OpenLocal(context.Background(), path, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	res, err := l.Check(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, res.New, 1)
	assert.Equal(t, "g1", res.New[0].ID)
	_, err = os.Stat(state)
	assert.True(t, os.IsNotExist(err), "dry run must not persist")

	res, err = l.Check(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, res.New, 1)
	_, err = os.Stat(state)
	assert.NoError(t, err)

	res, err = l.Check(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Equal(t, 3, calls)
}
