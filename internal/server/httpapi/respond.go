package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/server/services"
)

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	RequestID  string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) respond(w http.ResponseWriter, code int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, code, envelope{StatusCode: code, Data: data, Message: message, Success: code < http.StatusBadRequest})
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, errorEnvelope{
		StatusCode: code,
		Message:    message,
		RequestID:  requestIDFrom(r.Context()),
	})
}

// fail maps a service error to a status code. Server side failures are
// logged and answered with a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.log.Error(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
	}
	a.respondError(w, r, code, message)
}

func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	// a unique violation inside bind surfaces as BindFailed wrapping AlreadyExists
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "user with email or username already exists"
	// other bind failures win over what they wrap
	case errors.Is(err, common.ErrBindFailed):
		return http.StatusInternalServerError, "failed to save uploaded file"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "unauthorized request"
	case errors.Is(err, common.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid user credentials"
	case errors.Is(err, common.ErrReuseDetected):
		return http.StatusUnauthorized, "refresh token is expired or used"
	case errors.Is(err, common.ErrIdentityNotFound):
		return http.StatusNotFound, "user does not exist"
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrMissingInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUploadFailed):
		return http.StatusBadGateway, "failed to upload file"
	case errors.Is(err, common.ErrIssuanceFailed):
		return http.StatusInternalServerError, "something went wrong while generating tokens"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid request body", common.ErrValidation)
	}
	return nil
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, a.cookie(common.AccessTokenCookieName, pair.AccessToken, a.sessions.AccessTTL()))
	http.SetCookie(w, a.cookie(common.RefreshTokenCookieName, pair.RefreshToken, a.sessions.RefreshTTL()))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie(common.AccessTokenCookieName, "", -1))
	http.SetCookie(w, a.cookie(common.RefreshTokenCookieName, "", -1))
}

// cookie builds a credential cookie. A negative ttl expires it.
func (a *API) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
