package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/optcache/contacts"
)

func newServer(t *testing.T, h http.HandlerFunc) *Transport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr, err := New(Config{BaseURL: srv.URL + "/", Client: srv.Client(), Limit: 6})
	require.NoError(t, err)
	return tr
}

func TestList(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		require.Equal(t, "6", r.URL.Query().Get("_limit"))
		require.Equal(t, DefaultUserAgent, r.UserAgent())
		_, _ = io.WriteString(w, `[
			{"id": 1, "name": "Leanne", "phone": "1-770", "email": "x@y"},
			{"id": 2, "name": "Ervin", "phone": "010-692", "address": {"city": "z"}}
		]`)
	})

	got, err := tr.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, contacts.Collection{
		{ID: 1, Name: "Leanne", Phone: "1-770"},
		{ID: 2, Name: "Ervin", Phone: "010-692"},
	}, got)
}

func TestCreate(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var in contacts.Input
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, contacts.Input{Name: "B", Phone: "222"}, in)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 11, "name": "B", "phone": "222"}`)
	})

	rec, err := tr.Create(context.Background(), contacts.Input{Name: "B", Phone: "222"})
	require.NoError(t, err)
	require.Equal(t, contacts.Record{ID: 11, Name: "B", Phone: "222"}, rec)
}

func TestCreateFillsEchoedFields(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id": 7}`)
	})
	rec, err := tr.Create(context.Background(), contacts.Input{Name: "B", Phone: "222"})
	require.NoError(t, err)
	require.Equal(t, contacts.Record{ID: 7, Name: "B", Phone: "222"}, rec)
}

func TestCreateWithoutID(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"name": "B"}`)
	})
	_, err := tr.Create(context.Background(), contacts.Input{Name: "B", Phone: "222"})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestRemove(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/users/3", r.URL.Path)
		_, _ = io.WriteString(w, `{}`)
	})
	id, err := tr.Remove(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, contacts.ID(3), id)
}

func TestStatusError(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})

	_, err := tr.Remove(context.Background(), 3)
	require.ErrorIs(t, err, ErrStatus)
	require.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	require.Contains(t, err.Error(), "failed to delete contact")

	require.Zero(t, StatusCode(errors.New("other")))
}

func TestMalformedBody(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a list"`)
	})
	_, err := tr.List(context.Background())
	require.ErrorIs(t, err, ErrMalformed)
	require.Zero(t, StatusCode(err))
}

type failingClient struct{ err error }

func (c failingClient) Do(*http.Request) (*http.Response, error) { return nil, c.err }

func TestTransportFailure(t *testing.T) {
	boom := errors.New("connection refused")
	tr, err := New(Config{BaseURL: "http://example.invalid", Client: failingClient{boom}})
	require.NoError(t, err)

	_, err = tr.List(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	tr, err := New(Config{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(tr.String(), "httpapi("+DefaultBaseURL))
}

func TestRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)
	tr, err := New(Config{BaseURL: srv.URL, Client: srv.Client(), RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = tr.List(context.Background())
	require.NoError(t, err)

	// the bucket is empty and refills far beyond the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = tr.List(ctx)
	require.Error(t, err)
	require.Equal(t, 1, hits)
}
