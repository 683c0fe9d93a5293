package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/dbx"
	"github.com/dmitrijs2005/gophtube/internal/server/auth"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/gophtube/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/gophtube/internal/server/repositories/users"
)

// --- users directory ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int

	existsErr    error
	getErr       error
	createErr    error
	setAssetErr  error
	assetKeys    []string
	assetKeysErr error
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("u-%d", f.nextID)
	cp.UserName = strings.ToLower(cp.UserName)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, userName, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if (userName != "" && u.UserName == strings.ToLower(userName)) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUsersRepo) UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error) {
	return f.update(id, nil, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := f.update(id, nil, func(u *models.User) { u.PasswordHash = passwordHash })
	return err
}

func (f *fakeUsersRepo) SetAvatar(ctx context.Context, id string, blob models.Blob) (*models.User, error) {
	return f.update(id, f.setAssetErr, func(u *models.User) {
		u.Avatar, u.AvatarKey = blob.URL, blob.Key
	})
}

func (f *fakeUsersRepo) SetCoverImage(ctx context.Context, id string, blob models.Blob) (*models.User, error) {
	return f.update(id, f.setAssetErr, func(u *models.User) {
		u.CoverImage, u.CoverImageKey = blob.URL, blob.Key
	})
}

func (f *fakeUsersRepo) AssetKeys(ctx context.Context) ([]string, error) {
	if f.assetKeysErr != nil {
		return nil, f.assetKeysErr
	}
	return f.assetKeys, nil
}

func (f *fakeUsersRepo) update(id string, injected error, fn func(*models.User)) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if injected != nil {
		return nil, injected
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// --- session store ---

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]string
	users  *fakeUsersRepo

	setErr   error
	getErr   error
	clearErr error
	sets     int
}

func newFakeRefreshRepo(users *fakeUsersRepo) *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]string), users: users}
}

func (f *fakeRefreshRepo) Set(ctx context.Context, userID, token string) error {
	if ok, _ := f.users.Exists(ctx, userID); !ok {
		return common.ErrorNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.tokens[userID] = token
	return nil
}

func (f *fakeRefreshRepo) Get(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.tokens[userID], nil
}

func (f *fakeRefreshRepo) Clear(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.tokens, userID)
	return nil
}

func (f *fakeRefreshRepo) stored(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID]
}

// --- repository manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func newFakeRepoManager(users ...*models.User) *fakeRepoManager {
	u := newFakeUsersRepo(users...)
	return &fakeRepoManager{u: u, r: newFakeRefreshRepo(u)}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// --- blob store ---

type fakeBlobStore struct {
	mu sync.Mutex

	uploads   []string
	deleted   []string
	failPaths map[string]error
	deleteErr error
	objects   []models.StoredObject
	listErr   error

	// onUpload runs after a successful upload.
	onUpload func()
	// deleteCtxErrs records ctx.Err() seen by each Delete.
	deleteCtxErrs []error
}

func (f *fakeBlobStore) Upload(ctx context.Context, localPath string) (models.Blob, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, localPath)
	err := f.failPaths[localPath]
	hook := f.onUpload
	n := len(f.uploads)
	f.mu.Unlock()

	if err != nil {
		return models.Blob{}, err
	}
	if _, statErr := os.Stat(localPath); statErr != nil {
		return models.Blob{}, statErr
	}
	key := fmt.Sprintf("users/%d-%s", n, filepath.Base(localPath))
	if hook != nil {
		hook()
	}
	return models.Blob{Key: key, URL: "http://cdn/" + key}, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	f.deleteCtxErrs = append(f.deleteCtxErrs, ctx.Err())
	return f.deleteErr
}

func (f *fakeBlobStore) List(ctx context.Context) ([]models.StoredObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.objects, nil
}

func (f *fakeBlobStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeBlobStore) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// --- helpers ---

func newTestCodec(t *testing.T) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func stageFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
