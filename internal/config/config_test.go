package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const validJSON = `{
  "telegram": {"token": "123:abc", "owner_user_ids": [42]},
  "catalog": {"url": "https://example.com/api/games/"},
  "notifier": {"channel_id": -1001, "delay": "1s"},
  "scheduler": {"interval": "10m"},
  "storage": {"driver": "file", "path": "./known_games.json"},
  "logging": {"level": "info", "console": true}
}`

func TestLoadJSON(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", validJSON))
	m.SetEnv(noEnv)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(-1001), cfg.Notifier.ChannelID)
	assert.Equal(t, []int64{42}, cfg.Telegram.OwnerUserIDs)
	assert.Same(t, cfg, m.Get())
}

func TestLoadYAML(t *testing.T) {
	body := `
telegram:
  token: "123:abc"
notifier:
  channel_id: -1001
scheduler:
  interval: "00:10"
`
	m := NewManager(writeFile(t, "config.yaml", body))
	m.SetEnv(noEnv)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "00:10", cfg.Scheduler.Interval)
	assert.Equal(t, DefaultCatalogURL, cfg.CatalogURL())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", `{"telegram": {"token": "x", "tokn": "y"}}`))
	m.SetEnv(noEnv)
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokn")
}

func TestLoadFailsFastOnMissingSettings(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", `{}`))
	m.SetEnv(noEnv)
	_, err := m.Load()
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "telegram.token")
	assert.Contains(t, err.Error(), "notifier.channel_id")
	assert.Nil(t, m.Get())
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvToken:     "999:env",
		EnvURL:       "http://localhost:8080/games",
		EnvChannelID: "-42",
	}
	m := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	m.SetEnv(func(k string) string { return env[k] })
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, "http://localhost:8080/games", cfg.CatalogURL())
	assert.Equal(t, int64(-42), cfg.Notifier.ChannelID)

	env[EnvChannelID] = "general"
	_, err = m.Load()
	require.Error(t, err)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x", GroupLog: "logs"},
		Catalog:   CatalogConfig{URL: "ftp://example.com", Timeout: "soon"},
		Notifier:  NotifierConfig{ChannelID: 1, Timezone: "Nowhere/City"},
		Storage:   StorageConfig{Driver: "redis"},
		Scheduler: SchedulerConfig{Timeout: "-1s"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"telegram.group_log", "catalog.url", "catalog.timeout", "notifier.timezone", "storage.driver", "scheduler.timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSummarize(t *testing.T) {
	a := &Config{Logging: LoggingConfig{Level: "info"}, Storage: StorageConfig{Driver: "file"}}
	b := &Config{Logging: LoggingConfig{Level: "debug"}, Storage: StorageConfig{Driver: "sqlite"}}
	ch := Summarize(a, b)
	assert.Equal(t, []string{"storage", "logging"}, ch.Sections)
	assert.Equal(t, []string{"logging"}, ch.Live)
	assert.Equal(t, []string{"storage"}, ch.RestartRequired())

	assert.Empty(t, Summarize(a, a).Sections)
}

func TestWatchPublishesValidReload(t *testing.T) {
	path := writeFile(t, "config.json", validJSON)
	m := NewManager(path)
	m.SetEnv(noEnv)
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is rejected and not published.
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {}}`), 0o600))
	time.Sleep(600 * time.Millisecond)
	select {
	case <-sub:
		t.Fatal("invalid config was published")
	default:
	}

	updated := `{"telegram": {"token": "123:abc"}, "notifier": {"channel_id": -7}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	select {
	case cfg := <-sub:
		assert.Equal(t, int64(-7), cfg.Notifier.ChannelID)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = ParseDurationField("x", "750ms")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, d)

	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)
}
