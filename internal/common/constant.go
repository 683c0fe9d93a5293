// Package common contains shared constants and sentinel errors used across
// GophTube components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Cookie and body field names shared by the HTTP API and the CLI client.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
	RefreshTokenBodyField  = "refreshToken"
)
