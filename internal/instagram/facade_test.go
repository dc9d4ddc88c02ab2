package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFacade(t *testing.T, srv *httptest.Server, maxRetries int) *Facade {
	t.Helper()
	f := NewFacade("key", strings.TrimPrefix(srv.URL, "http://"), 1000, maxRetries)
	f.baseURL = srv.URL
	f.retryBaseDelay = time.Millisecond
	return f
}

func TestGetProfileRetriesOn429ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"1","username":"alice"}}`))
	}))
	defer srv.Close()

	f := testFacade(t, srv, 5)
	profile, err := f.GetProfile(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 3, calls)
}

func TestGetProfileGivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := testFacade(t, srv, 2)
	_, err := f.GetProfile(context.Background(), "alice")

	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestGetProfileDoesNotRetryNon429Errors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := testFacade(t, srv, 5)
	_, err := f.GetProfile(context.Background(), "alice")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
