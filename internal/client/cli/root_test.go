package cli

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/tripdesk/internal/client/config"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "tripdesk.db")

	app := NewApp(cfg, logging.NewDefault(slog.LevelError))
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestRootCmd_CommandTree(t *testing.T) {
	root := NewRootCmd(newTestApp(t))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "logout", "trips", "bookings", "enquiries", "stats", "whoami", "sync", "queue"} {
		assert.Contains(t, names, want)
	}
}

func TestApp_SessionPersistence(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.saveSession("tok-abc"))

	restored := NewApp(app.Cfg, app.Log)
	t.Cleanup(func() { _ = restored.Close() })
	assert.Equal(t, "tok-abc", restored.Session.Token())

	require.NoError(t, app.dropSession())
	require.NoError(t, app.dropSession(), "idempotent")
}

func TestExtractToken(t *testing.T) {
	token, err := extractToken([]byte(`{"data":{"token":"jwt-1","user":{"id":"u1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", token)

	token, err = extractToken([]byte(`{"token":"jwt-2"}`))
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", token)

	_, err = extractToken([]byte(`{"user":{"id":"u1"}}`))
	assert.Error(t, err)
}
