package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autotrack/autotrack/internal/session"
)

func testIdentity() session.Identity {
	return session.Identity{
		ID:        "test-identity",
		UserAgent: "autotrack-test/1.0",
		Headers:   map[string]string{"Accept-Language": "fr-FR"},
	}
}

func TestCollyFetchSuccess(t *testing.T) {
	t.Parallel()

	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewColly(CollyConfig{Timeout: 5 * time.Second}, nil)
	page, err := f.Fetch(context.Background(), srv.URL, testIdentity())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "ok")
	require.Equal(t, "autotrack-test/1.0", gotUA)
	require.Equal(t, "fr-FR", gotLang)
}

func TestCollyFetchBlockStatusIsPageNotError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("blocked"))
	}))
	defer srv.Close()

	f := NewColly(CollyConfig{Timeout: 5 * time.Second}, nil)
	page, err := f.Fetch(context.Background(), srv.URL, testIdentity())
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, page.StatusCode)
}

func TestCollyFetchTransportError(t *testing.T) {
	t.Parallel()

	f := NewColly(CollyConfig{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/none", testIdentity())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTransport)
}

func TestCollyFetchRevisitsSameURL(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("hit"))
	}))
	defer srv.Close()

	f := NewColly(CollyConfig{Timeout: 5 * time.Second}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL, testIdentity())
		require.NoError(t, err)
	}
	require.Equal(t, 2, hits)
}

func TestStaticFetcher(t *testing.T) {
	t.Parallel()

	f := NewStatic()
	f.Register("http://example.test/?page=1", 200, []byte("<html>fixture</html>"))

	page, err := f.Fetch(context.Background(), "http://example.test/?page=1", testIdentity())
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Contains(t, string(page.Body), "fixture")

	_, err = f.Fetch(context.Background(), "http://example.test/?page=2", testIdentity())
	require.ErrorIs(t, err, ErrTransport)
}
