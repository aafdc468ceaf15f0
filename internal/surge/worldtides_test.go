package surge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWorldTidesClient_CurrentHeight(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "19.070000", r.URL.Query().Get("lat"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":200,"heights":[{"dt":%d,"height":0.9},{"dt":%d,"height":1.2},{"dt":%d,"height":1.5}]}`,
			now.Unix()-1800, now.Unix()+600, now.Unix()+2400)
	}))
	defer srv.Close()

	c := NewWorldTidesClient("secret", srv.URL, time.Second, zaptest.NewLogger(t))
	c.clock = clockwork.NewFakeClockAt(now)

	h, err := c.CurrentHeight(context.Background(), 19.07, 72.87)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, h, 1e-9)
}

func TestWorldTidesClient_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c := NewWorldTidesClient("", "http://127.0.0.1:1", time.Second, zaptest.NewLogger(t))
		_, err := c.CurrentHeight(context.Background(), 0, 0)
		assert.ErrorIs(t, err, ErrTideUnavailable)
	})

	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewWorldTidesClient("k", srv.URL, time.Second, zaptest.NewLogger(t))
		_, err := c.CurrentHeight(context.Background(), 0, 0)
		assert.ErrorIs(t, err, ErrTideUnavailable)
	})

	t.Run("no heights", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":200,"heights":[]}`))
		}))
		defer srv.Close()

		c := NewWorldTidesClient("k", srv.URL, time.Second, zaptest.NewLogger(t))
		_, err := c.CurrentHeight(context.Background(), 0, 0)
		assert.ErrorIs(t, err, ErrTideUnavailable)
	})
}
