package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/filex"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/dmitrijs2005/gophtube/internal/server/services"
)

// multipart parts above this size spill to disk
const multipartMemory = 8 << 20

type loginRequest struct {
	Email    string `json:"email"`
	UserName string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (a *API) healthcheck(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusOK, map[string]string{"status": "ok"}, "OK")
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.fail(w, r, formErr(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, err := a.stageFile(r, services.AssetAvatar)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cover, err := a.stageFile(r, services.AssetCoverImage)
	if err != nil {
		_ = filex.Remove(avatar)
		a.fail(w, r, err)
		return
	}

	user, err := a.users.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		UserName:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, http.StatusCreated, user, "User registered successfully")
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	user, pair, err := a.sessions.Login(r.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.setSessionCookies(w, pair)
	a.respond(w, http.StatusOK, map[string]any{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "User logged in successfully")
}

// refreshToken rotates the session. The cookie wins over the body field.
// Reuse of an old refresh credential also expires the client's cookies.
func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		presented = c.Value
	}
	if presented == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		presented = req.RefreshToken
	}
	if presented == "" {
		a.fail(w, r, common.ErrorUnauthorized)
		return
	}

	pair, err := a.sessions.Rotate(r.Context(), presented)
	if err != nil {
		if errors.Is(err, common.ErrReuseDetected) || errors.Is(err, common.ErrInvalidCredential) {
			a.clearSessionCookies(w)
		}
		a.fail(w, r, err)
		return
	}

	a.setSessionCookies(w, pair)
	a.respond(w, http.StatusOK, pair, "Access token refreshed")
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Revoke(r.Context(), userIDFrom(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}

	a.clearSessionCookies(w)
	a.respond(w, http.StatusOK, nil, "User logged out")
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.users.ChangePassword(r.Context(), userIDFrom(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, nil, "Password changed successfully")
}

func (a *API) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.CurrentUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, user, "User fetched successfully")
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := a.users.UpdateAccount(r.Context(), userIDFrom(r.Context()), req.FullName, req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, user, "Account details updated successfully")
}

func (a *API) updateAvatar(w http.ResponseWriter, r *http.Request) {
	a.replaceImage(w, r, services.AssetAvatar, a.users.UpdateAvatar, "Avatar image updated successfully")
}

func (a *API) updateCoverImage(w http.ResponseWriter, r *http.Request) {
	a.replaceImage(w, r, services.AssetCoverImage, a.users.UpdateCoverImage, "Cover image updated successfully")
}

func (a *API) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID, localPath string) (*models.User, error),
	message string,
) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.fail(w, r, formErr(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := a.stageFile(r, field)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := update(r.Context(), userIDFrom(r.Context()), path)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, user, message)
}

// stageFile saves the multipart file under field into the upload dir and
// returns its path, or "" when the field is absent.
func (a *API) stageFile(r *http.Request, field string) (string, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", formErr(err)
	}
	defer f.Close()

	path, err := filex.SaveToDir(a.cfg.UploadDir, hdr.Filename, f)
	if err != nil {
		return "", fmt.Errorf("%w: stage %s: %w", common.ErrorInternal, field, err)
	}
	return path, nil
}

func formErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid multipart form", common.ErrValidation)
}
