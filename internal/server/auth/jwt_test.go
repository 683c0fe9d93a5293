package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, accessTTL, refreshTTL time.Duration) *Codec {
	t.Helper()
	c, err := NewCodec(CodecConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	})
	require.NoError(t, err)
	return c
}

func TestNewCodec_RejectsBadSecrets(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(CodecConfig{AccessSecret: []byte("a")})
	require.Error(t, err)

	_, err = NewCodec(CodecConfig{AccessSecret: []byte("same"), RefreshSecret: []byte("same")})
	require.Error(t, err)
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, time.Minute, time.Hour)

	access, err := c.IssueAccess("user-123")
	require.NoError(t, err)
	refresh, err := c.IssueRefresh("user-123")
	require.NoError(t, err)

	id, err := c.Verify(access, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)

	id, err = c.Verify(refresh, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)
}

func TestIssue_SameSecondTokensDiffer(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c, err := NewCodec(CodecConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Now:           func() time.Time { return fixed },
	})
	require.NoError(t, err)

	r1, err := c.IssueRefresh("u1")
	require.NoError(t, err)
	r2, err := c.IssueRefresh("u1")
	require.NoError(t, err)

	assert.NotEqual(t, r1, r2)
}

func TestVerify_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, time.Minute, time.Hour)

	access, err := c.IssueAccess("u1")
	require.NoError(t, err)
	refresh, err := c.IssueRefresh("u1")
	require.NoError(t, err)

	_, err = c.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	_, err = c.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestVerify_ZeroAndElapsedExpiry(t *testing.T) {
	t.Parallel()

	for _, ttl := range []time.Duration{0, -1 * time.Second} {
		c := newTestCodec(t, ttl, ttl)

		tok, err := c.IssueRefresh("u1")
		require.NoError(t, err)

		_, err = c.Verify(tok, KindRefresh)
		require.Error(t, err, "ttl %s", ttl)
		assert.ErrorIs(t, err, common.ErrInvalidCredential)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	}
}

func TestVerify_ExpiresWithClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewCodec(CodecConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Now:           func() time.Time { return now },
	})
	require.NoError(t, err)

	tok, err := c.IssueAccess("u1")
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = c.Verify(tok, KindAccess)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Verify(tok, KindAccess)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := newTestCodec(t, time.Minute, time.Hour)
	other, err := NewCodec(CodecConfig{
		AccessSecret:  []byte("other-access"),
		RefreshSecret: []byte("other-refresh"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	tok, err := issuer.IssueAccess("u2")
	require.NoError(t, err)

	_, err = other.Verify(tok, KindAccess)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestVerify_MalformedAndForeignTokens(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, time.Minute, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: "access",
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", IssuedAt: jwt.NewNumericDate(time.Now())},
		Type:             "access",
	})
	noExpStr, err := noExp.SignedString([]byte("access-secret"))
	require.NoError(t, err)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: "access",
	})
	noSubStr, err := noSub.SignedString([]byte("access-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":    "not.a.jwt",
		"empty":      "",
		"alg none":   unsigned,
		"no exp":     noExpStr,
		"no subject": noSubStr,
	} {
		_, err := c.Verify(tok, KindAccess)
		if !errors.Is(err, common.ErrInvalidCredential) {
			t.Fatalf("%s: expected ErrInvalidCredential, got %v", name, err)
		}
	}
}

func TestVerify_UnknownKind(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, time.Minute, time.Hour)
	tok, err := c.IssueAccess("u1")
	require.NoError(t, err)

	_, err = c.Verify(tok, Kind(42))
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
	assert.Equal(t, "kind(42)", Kind(42).String())
}
