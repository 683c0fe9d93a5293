package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophtube/internal/client/models"
)

// fakeAPI mimics the server envelope. Access tokens named in valid are
// accepted; refresh tokens named in refreshable rotate to the next pair.
type fakeAPI struct {
	mu          sync.Mutex
	valid       map[string]bool
	refreshable map[string]models.Session
	lastLogin   map[string]string
	avatar      []byte
	revoked     int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{valid: map[string]bool{}, refreshable: map[string]models.Session{}}
}

func writeEnvelope(w http.ResponseWriter, code int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": code,
		"data":       data,
		"message":    msg,
		"success":    code < 400,
		"request_id": "req-1",
	})
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastLogin = req
		f.valid["acc-1"] = true
		f.refreshable["ref-1"] = models.Session{AccessToken: "acc-2", RefreshToken: "ref-2"}
		f.mu.Unlock()
		if req["password"] != "pw" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "invalid user credentials")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"user":         map[string]any{"_id": "u1", "username": "alice"},
			"accessToken":  "acc-1",
			"refreshToken": "ref-1",
		}, "ok")
	})

	mux.HandleFunc("POST /api/v1/users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		next, ok := f.refreshable[req["refreshToken"]]
		if ok {
			delete(f.refreshable, req["refreshToken"])
			f.valid[next.AccessToken] = true
		}
		f.mu.Unlock()
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, nil, "refresh token is expired or used")
			return
		}
		writeEnvelope(w, http.StatusOK, next, "refreshed")
	})

	mux.HandleFunc("GET /api/v1/users/current-user", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthorized request")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"_id": "u1", "username": "alice"}, "ok")
	})

	mux.HandleFunc("POST /api/v1/users/logout", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeEnvelope(w, http.StatusUnauthorized, nil, "unauthorized request")
			return
		}
		f.mu.Lock()
		f.revoked++
		f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{}, "bye")
	})

	mux.HandleFunc("POST /api/v1/users/register", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, "bad form")
			return
		}
		file, _, err := r.FormFile("avatar")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, "missing input: avatar")
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		f.mu.Lock()
		f.avatar = b
		f.mu.Unlock()
		writeEnvelope(w, http.StatusCreated, map[string]any{"_id": "u9", "username": r.FormValue("username")}, "created")
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeAPI) (*APIClient, *SessionFile) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	store := NewSessionFile(filepath.Join(t.TempDir(), "session.json"))
	c, err := NewAPIClient(srv.URL+"/", 5*time.Second, store)
	require.NoError(t, err)
	return c, store
}

func TestLogin_StoresSession(t *testing.T) {
	f := newFakeAPI()
	c, store := newTestClient(t, f)

	u, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.Equal(t, "alice", f.lastLogin["username"])
	assert.Empty(t, f.lastLogin["email"])

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.Session{AccessToken: "acc-1", RefreshToken: "ref-1"}, saved)
}

func TestLogin_ByEmail(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestClient(t, f)

	_, err := c.Login(context.Background(), "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", f.lastLogin["email"])
}

func TestLogin_Rejected(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestClient(t, f)

	_, err := c.Login(context.Background(), "alice", "bad")

	require.ErrorIs(t, err, ErrUnauthorized)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid user credentials", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.False(t, c.Session().LoggedIn())
}

func TestCurrentUser_RefreshesOnceOn401(t *testing.T) {
	f := newFakeAPI()
	c, store := newTestClient(t, f)

	_, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	// expire the access credential server side
	f.mu.Lock()
	delete(f.valid, "acc-1")
	f.mu.Unlock()

	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ref-2", saved.RefreshToken)
}

func TestRefresh_RejectedEndsSession(t *testing.T) {
	f := newFakeAPI()
	c, store := newTestClient(t, f)
	require.NoError(t, store.Save(models.Session{AccessToken: "x", RefreshToken: "stale"}))
	c.session = models.Session{AccessToken: "x", RefreshToken: "stale"}

	err := c.Refresh(context.Background())

	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, c.Session().LoggedIn())
	_, statErr := os.Stat(store.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRefresh_NotLoggedIn(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI())

	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNotLoggedIn)
}

func TestLogout(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestClient(t, f)
	_, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, 1, f.revoked)
	assert.False(t, c.Session().LoggedIn())
}

func TestLogout_ForgetsSessionWhenServerRejects(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestClient(t, f)
	c.session = models.Session{AccessToken: "unknown", RefreshToken: "unknown"}

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.Session().LoggedIn())
}

func TestRegister_SendsFiles(t *testing.T) {
	f := newFakeAPI()
	c, _ := newTestClient(t, f)

	avatar := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("png-bytes"), 0o600))

	u, err := c.Register(context.Background(), RegisterRequest{
		FullName: "Alice", Email: "a@b.c", UserName: "alice", Password: "pw", AvatarPath: avatar,
	})
	require.NoError(t, err)
	assert.Equal(t, "u9", u.ID)
	assert.Equal(t, []byte("png-bytes"), f.avatar)
}

func TestRegister_MissingLocalFile(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI())

	_, err := c.Register(context.Background(), RegisterRequest{UserName: "a", AvatarPath: "/does/not/exist.png"})

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewAPIClient(url, time.Second, NewSessionFile(filepath.Join(t.TempDir(), "s.json")))
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAuthenticatedCallWithoutSession(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI())

	_, err := c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
