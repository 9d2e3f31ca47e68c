package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/contacts"
)

// errExitCalled is a sentinel used to catch kong's os.Exit calls in tests.
var errExitCalled = errors.New("exit called")

// api is a minimal in-memory /users service.
type api struct {
	mu      sync.Mutex
	users   []map[string]any
	nextID  int
	failAdd bool
}

func newAPI() *api {
	return &api{
		users: []map[string]any{
			{"id": 1, "name": "Leanne", "phone": "1-770", "email": "l@x"},
			{"id": 2, "name": "Ervin", "phone": "010-692"},
		},
		nextID: 11,
	}
}

func (s *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		_ = json.NewEncoder(w).Encode(s.users)
	case r.Method == http.MethodPost && r.URL.Path == "/users":
		if s.failAdd {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		in["id"] = s.nextID
		s.nextID++
		s.users = append(s.users, in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/users/"):
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/users/"))
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		for i, u := range s.users {
			if u["id"] == id || u["id"] == float64(id) {
				s.users = append(s.users[:i], s.users[i+1:]...)
				break
			}
		}
		_, _ = io.WriteString(w, "{}")
	default:
		http.NotFound(w, r)
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var cli CLI
	var stdout, stderr bytes.Buffer
	k, err := kong.New(&cli, append(kongOptions(),
		kong.Writers(&stdout, &stderr),
		kong.Exit(func(int) { panic(errExitCalled) }),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)...)
	require.NoError(t, err)

	kctx, err := k.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(&cli.Globals)
	return stdout.String(), stderr.String(), err
}

func serve(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestVersionFlag(t *testing.T) {
	var cli CLI
	var buf bytes.Buffer
	k, err := kong.New(&cli, append(kongOptions(),
		kong.Writers(&buf, &buf),
		kong.Exit(func(int) { panic(errExitCalled) }),
	)...)
	require.NoError(t, err)

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected exit from --version")
		require.ErrorIs(t, r.(error), errExitCalled)
		require.Contains(t, buf.String(), version)
	}()
	_, _ = k.Parse([]string{"--version"})
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("CONTACTS_PROVIDER", "ristretto")
	t.Setenv("CONTACTS_CODEC", "protobuf")
	t.Setenv("CONTACTS_LIMIT", "3")

	var cli CLI
	k, err := kong.New(&cli, kongOptions()...)
	require.NoError(t, err)
	_, err = k.Parse([]string{"list"})
	require.NoError(t, err)

	require.Equal(t, "ristretto", cli.Provider)
	require.Equal(t, "protobuf", cli.Codec)
	require.Equal(t, 3, cli.Limit)
	require.Equal(t, "zap", cli.Log)
}

func TestListAcrossBackends(t *testing.T) {
	url := serve(t, newAPI())
	for _, args := range [][]string{
		{"--provider=memory", "--codec=json", "--log=zap"},
		{"--provider=bigcache", "--codec=cbor", "--log=logrus"},
		{"--provider=ristretto", "--codec=msgpack", "--log=slog"},
		{"--provider=memory", "--codec=protobuf", "--hooks=slog", "-v"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			out, _, err := run(t, append([]string{"--base-url", url, "list"}, args...)...)
			require.NoError(t, err)
			require.Contains(t, out, "Leanne")
			require.Contains(t, out, "010-692")
		})
	}
}

func TestListJSON(t *testing.T) {
	url := serve(t, newAPI())
	out, _, err := run(t, "--base-url", url, "-o", "json", "list")
	require.NoError(t, err)

	var got contacts.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, contacts.Collection{
		{ID: 1, Name: "Leanne", Phone: "1-770"},
		{ID: 2, Name: "Ervin", Phone: "010-692"},
	}, got)
}

func TestAddAndDelete(t *testing.T) {
	srv := newAPI()
	url := serve(t, srv)

	out, _, err := run(t, "--base-url", url, "-o", "yaml", "add", "Ada", "555-0100")
	require.NoError(t, err)
	require.Contains(t, out, "id: 11")
	require.Contains(t, out, "name: Ada")

	out, _, err = run(t, "--base-url", url, "delete", "1")
	require.NoError(t, err)
	require.Equal(t, "deleted 1\n", out)
	require.Len(t, srv.users, 2)
}

func TestAddFailureExitCode(t *testing.T) {
	srv := newAPI()
	srv.failAdd = true
	url := serve(t, srv)

	_, _, err := run(t, "--base-url", url, "add", "Ada", "555")
	require.Error(t, err)
	require.Equal(t, 3, exitCode(err))

	_, _, err = run(t, "--base-url", url, "add", "Ada", " ")
	require.ErrorIs(t, err, contacts.ErrInvalidInput)
	require.Equal(t, 2, exitCode(err))
}

func TestImport(t *testing.T) {
	srv := newAPI()
	url := serve(t, srv)

	path := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
contacts:
  - name: Ada
    phone: "555-0100"
  - name: Grace
    phone: "555-0101"
  - name: Linus
    phone: "555-0102"
`), 0o600))

	out, stderr, err := run(t, "--base-url", url, "--hooks=otel", "-o", "json", "import", "--parallel", "2", path)
	require.NoError(t, err)

	var got contacts.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 5)
	for _, r := range got {
		require.False(t, r.IsPlaceholder(), "placeholder left after import: %v", got)
	}
	require.Contains(t, stderr, `optcache/mutation_count{key=contacts,mutation=add,outcome=committed} 3`)
}

func TestLoadImportFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	in, err := loadImportFile(write("ok.yaml", "contacts:\n  - {name: A, phone: '1'}\n"))
	require.NoError(t, err)
	require.Equal(t, []contacts.Input{{Name: "A", Phone: "1"}}, in)

	in, err = loadImportFile(write("empty.yaml", ""))
	require.NoError(t, err)
	require.Empty(t, in)

	_, err = loadImportFile(write("unknown.yaml", "contacts:\n  - {name: A, phone: '1', email: x}\n"))
	require.Error(t, err)

	_, err = loadImportFile(write("invalid.yaml", "contacts:\n  - {name: A}\n"))
	require.ErrorIs(t, err, contacts.ErrInvalidInput)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 2, exitCode(contacts.ErrPendingRecord))
	require.Equal(t, 3, exitCode(&optcache.TransportError{Op: "read", Err: errors.New("x")}))
	require.Equal(t, 1, exitCode(errors.New("other")))
}
