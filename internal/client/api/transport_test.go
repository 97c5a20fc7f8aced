package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/tripdesk/internal/client/session"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransport(t *testing.T, handler http.HandlerFunc) (*Transport, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.NewStore()
	return NewTransport(srv.URL, sess, logging.NewDefault(slog.LevelError)), sess
}

func TestTransport_SuccessAndAuthHeader(t *testing.T) {
	var gotAuth string
	tr, sess := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	sess.Set("tok-123")

	body, err := tr.GetJSON(context.Background(), "/trips")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestTransport_Unauthorized(t *testing.T) {
	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := tr.GetJSON(context.Background(), "/trips")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, IsNetworkAbsent(err))
}

func TestTransport_ServerRejected(t *testing.T) {
	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"seats must be positive"}`, http.StatusUnprocessableEntity)
	})

	_, err := tr.Do(context.Background(), http.MethodPost, "/bookings", []byte(`{}`), nil)
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusUnprocessableEntity, serverErr.StatusCode)
	assert.False(t, IsNetworkAbsent(err))
}

func TestTransport_NetworkAbsent(t *testing.T) {
	sess := session.NewStore()
	// Nothing listens here; connection is refused.
	tr := NewTransport("http://127.0.0.1:1", sess, logging.NewDefault(slog.LevelError))

	_, err := tr.GetJSON(context.Background(), "/trips")
	assert.True(t, IsNetworkAbsent(err))
}

func TestQueuedError_Tagging(t *testing.T) {
	qe := &QueuedError{QueueID: "q1", Err: errors.New("dial tcp: refused")}

	assert.True(t, qe.IsOffline())
	assert.True(t, qe.Queued())
	assert.True(t, IsNetworkAbsent(qe))

	var target *QueuedError
	assert.True(t, errors.As(error(qe), &target))
	assert.Equal(t, "q1", target.QueueID)
}
