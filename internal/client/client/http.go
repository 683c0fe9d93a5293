package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/client/models"
	"github.com/dmitrijs2005/gophtube/internal/common"
)

const apiPrefix = "/api/v1/users/"

// RegisterRequest carries the account fields and the local paths of the
// images to upload. CoverImagePath may be empty.
type RegisterRequest struct {
	FullName       string
	Email          string
	UserName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type APIClient struct {
	baseURL string
	http    *http.Client
	store   *SessionFile

	mu      sync.Mutex
	session models.Session
}

// NewAPIClient loads the stored session, if any.
func NewAPIClient(baseURL string, timeout time.Duration, store *SessionFile) (*APIClient, error) {
	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		session: s,
	}, nil
}

// Session returns the current credential pair.
func (c *APIClient) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *APIClient) setSession(s models.Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	if !s.LoggedIn() {
		return c.store.Clear()
	}
	return c.store.Save(s)
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

// body builds a fresh request body for every attempt.
type body func() (io.Reader, string, error)

func jsonBody(v any) body {
	return func() (io.Reader, string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

func multipartBody(fields map[string]string, files map[string]string) body {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		for field, path := range files {
			if path == "" {
				continue
			}
			if err := attachFile(mw, field, path); err != nil {
				return nil, "", err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// do sends one request. Authenticated requests that come back 401 are
// retried once after rotating the session.
func (c *APIClient) do(ctx context.Context, method, path string, b body, authenticated bool, out any) error {
	err := c.send(ctx, method, path, b, authenticated, out)
	if !authenticated || !errors.Is(err, ErrUnauthorized) || !c.Session().LoggedIn() {
		return err
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		return rerr
	}
	return c.send(ctx, method, path, b, authenticated, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, b body, authenticated bool, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if b != nil {
		var err error
		if reader, contentType, err = b(); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authenticated {
		s := c.Session()
		if s.AccessToken == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, RequestID: env.RequestID}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *APIClient) Register(ctx context.Context, r RegisterRequest) (*models.User, error) {
	fields := map[string]string{
		"fullName": r.FullName,
		"email":    r.Email,
		"username": r.UserName,
		"password": r.Password,
	}
	files := map[string]string{
		"avatar":     r.AvatarPath,
		"coverImage": r.CoverImagePath,
	}

	var u models.User
	if err := c.do(ctx, http.MethodPost, apiPrefix+"register", multipartBody(fields, files), false, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates with a user name, or with an email when login
// contains '@', and stores the issued session.
func (c *APIClient) Login(ctx context.Context, login, password string) (*models.User, error) {
	req := map[string]string{"password": password}
	if strings.Contains(login, "@") {
		req["email"] = login
	} else {
		req["username"] = login
	}

	var out struct {
		User         models.User `json:"user"`
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"login", jsonBody(req), false, &out); err != nil {
		return nil, err
	}

	if err := c.setSession(models.Session{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Refresh rotates the session. A rejected refresh credential ends the
// local session.
func (c *APIClient) Refresh(ctx context.Context) error {
	s := c.Session()
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}

	var pair models.Session
	err := c.send(ctx, http.MethodPost, apiPrefix+"refresh-token", jsonBody(map[string]string{
		common.RefreshTokenBodyField: s.RefreshToken,
	}), false, &pair)
	if errors.Is(err, ErrUnauthorized) {
		_ = c.setSession(models.Session{})
		return err
	}
	if err != nil {
		return err
	}

	return c.setSession(pair)
}

// Logout revokes the session on the server and forgets it locally even
// when the server call fails.
func (c *APIClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, apiPrefix+"logout", nil, true, nil)
	if cerr := c.setSession(models.Session{}); cerr != nil {
		return cerr
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotLoggedIn) {
		return nil
	}
	return err
}

func (c *APIClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, apiPrefix+"current-user", nil, true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error) {
	var u models.User
	req := map[string]string{"fullName": fullName, "email": email}
	if err := c.do(ctx, http.MethodPatch, apiPrefix+"update-account", jsonBody(req), true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, apiPrefix+"change-password", jsonBody(req), true, nil)
}

func (c *APIClient) UpdateAvatar(ctx context.Context, path string) (*models.User, error) {
	return c.replaceImage(ctx, "avatar", "avatar", path)
}

func (c *APIClient) UpdateCoverImage(ctx context.Context, path string) (*models.User, error) {
	return c.replaceImage(ctx, "cover-image", "coverImage", path)
}

func (c *APIClient) replaceImage(ctx context.Context, route, field, path string) (*models.User, error) {
	var u models.User
	b := multipartBody(nil, map[string]string{field: path})
	if err := c.do(ctx, http.MethodPatch, apiPrefix+route, b, true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
