package netx

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/stretchr/testify/assert"
)

func testLogger() logging.Logger {
	return logging.NewDefault(slog.LevelError)
}

func TestMonitor_TransitionsFireHandlersOnce(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:0/health", testLogger())

	var calls []bool
	m.OnChange(func(online bool) { calls = append(calls, online) })

	m.SetOnline(true) // already online, no transition
	m.SetOnline(false)
	m.SetOnline(false) // repeated state, no transition
	m.SetOnline(true)

	assert.Equal(t, []bool{false, true}, calls)
}

func TestMonitor_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(srv.URL, testLogger())
	assert.True(t, m.Probe(context.Background()))

	srv.Close()
	assert.False(t, m.Probe(context.Background()))
}
