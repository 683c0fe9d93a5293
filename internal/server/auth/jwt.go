// Package auth encodes and verifies the signed, expiring credentials handed
// to clients: short-lived access tokens and long-lived refresh tokens.
//
// Both kinds are HS256 JWTs carrying the user identity in "sub". They are
// signed with independent secrets and carry a "typ" claim, so a credential
// of one kind never verifies as the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the signing secret and lifetime policy of a credential.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// jtiBytes is the size of the random token id; it keeps two credentials
// minted for the same identity within one second distinct.
const jtiBytes = 16

// Claims is the JWT payload of both credential kinds.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// CodecConfig carries the process-wide signing material. It is built once at
// startup from server configuration and never changes afterwards.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Codec issues and verifies credentials. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	access  policy
	refresh policy
	now     func() time.Time
}

type policy struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		access:  policy{secret: cfg.AccessSecret, ttl: cfg.AccessTTL},
		refresh: policy{secret: cfg.RefreshSecret, ttl: cfg.RefreshTTL},
		now:     now,
	}, nil
}

// IssueAccess mints an access credential for identity.
func (c *Codec) IssueAccess(identity string) (string, error) {
	return c.issue(identity, KindAccess)
}

// IssueRefresh mints a refresh credential for identity.
func (c *Codec) IssueRefresh(identity string) (string, error) {
	return c.issue(identity, KindRefresh)
}

// AccessTTL is the lifetime of access credentials.
func (c *Codec) AccessTTL() time.Duration { return c.access.ttl }

// RefreshTTL is the lifetime of refresh credentials.
func (c *Codec) RefreshTTL() time.Duration { return c.refresh.ttl }

// Verify checks the signature, type and expiry of token and returns the
// identity it was issued for. Every failure wraps common.ErrInvalidCredential.
func (c *Codec) Verify(token string, kind Kind) (string, error) {
	p, err := c.policy(kind)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidCredential, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return "", common.ErrInvalidCredential
	}
	if claims.Type != kind.String() {
		return "", fmt.Errorf("%w: unexpected token type %q", common.ErrInvalidCredential, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", common.ErrInvalidCredential)
	}

	return claims.Subject, nil
}

func (c *Codec) issue(identity string, kind Kind) (string, error) {
	p, err := c.policy(kind)
	if err != nil {
		return "", err
	}

	jti, err := common.MakeRandHexString(jtiBytes)
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Type: kind.String(),
	})

	return token.SignedString(p.secret)
}

func (c *Codec) policy(kind Kind) (policy, error) {
	switch kind {
	case KindAccess:
		return c.access, nil
	case KindRefresh:
		return c.refresh, nil
	default:
		return policy{}, fmt.Errorf("unknown credential kind %s", kind)
	}
}
