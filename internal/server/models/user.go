// Package models defines server-side data models persisted in the database
// or the blob store.
package models

import "time"

// User is a row of the users table. The stored refresh credential is kept
// out of this struct on purpose so it can never leak into a response.
type User struct {
	ID            string    `json:"_id"`
	UserName      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	PasswordHash  string    `json:"-"`
	Avatar        string    `json:"avatar"`
	AvatarKey     string    `json:"-"`
	CoverImage    string    `json:"coverImage"`
	CoverImageKey string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
