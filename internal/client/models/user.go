// Package models defines the client-side view of API payloads.
package models

import "time"

// User is the public profile returned by the API.
type User struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Session is the credential pair kept between CLI runs.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoggedIn reports whether a refresh credential is held.
func (s Session) LoggedIn() bool {
	return s.RefreshToken != ""
}
